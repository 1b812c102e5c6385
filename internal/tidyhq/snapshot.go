package tidyhq

import (
	"time"

	"github.com/Perth-Artifactory/tidyproxy/internal/jsonx"
)

// Snapshot is the complete normalized copy of the remote account at one
// instant. It is built wholesale, persisted as one file and never mutated;
// a rebuild produces a new Snapshot.
//
// Invariants: Time is the retrieval instant in seconds since epoch.
// Invoices only contains contacts whose newest invoice is within the
// retention window, each list sorted newest-first.
type Snapshot struct {
	Contacts    []*Contact             `json:"contacts"`
	Groups      *jsonx.Map[*Group]     `json:"groups"`
	Memberships []*Membership          `json:"memberships"`
	Invoices    *jsonx.Map[[]*Invoice] `json:"invoices"`
	Org         *Organization          `json:"org"`
	Time        int64                  `json:"time"`
}

// Age reports how old the snapshot is at the given instant.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(s.Time, 0))
}

// Contact finds a contact by canonical id. Linear scan: the cache holds a
// few thousand contacts at most and is scanned a handful of times per run.
func (s *Snapshot) Contact(id string) (*Contact, bool) {
	for _, c := range s.Contacts {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}
