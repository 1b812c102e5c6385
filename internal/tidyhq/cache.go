package tidyhq

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/filex"
	"github.com/Perth-Artifactory/tidyproxy/internal/jsonx"
	"github.com/Perth-Artifactory/tidyproxy/internal/logging"
)

// InvoiceRetention is how far back a contact's newest invoice may be before
// their whole invoice list is dropped from the snapshot: 18 months of 30
// days, matching the billing cycle the mirror serves.
const InvoiceRetention = 18 * 30 * 24 * time.Hour

// Service owns the snapshot lifecycle: building a fresh one from the remote
// API and deciding when an existing one is still usable.
type Service struct {
	cfg    *config.Config
	client *Client
	log    logging.Logger
	now    func() time.Time
}

func NewService(cfg *config.Config, client *Client, log logging.Logger) *Service {
	return &Service{cfg: cfg, client: client, log: log, now: time.Now}
}

// Build retrieves every resource category from the remote API, derives the
// per-contact invoice index, stamps the snapshot and persists it to the
// cache path. The returned snapshot is the same object that was written.
func (s *Service) Build(ctx context.Context) (*Snapshot, error) {
	s.log.Info(ctx, "retrieving cache from tidyhq")

	contacts, err := s.client.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "got contacts", "count", len(contacts))

	groups, err := s.client.Groups(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "got groups", "count", groups.Len())

	memberships, err := s.client.Memberships(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "got memberships", "count", len(memberships))

	rawInvoices, err := s.client.Invoices(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "got invoices", "count", len(rawInvoices))

	org, err := s.client.Organization(ctx)
	if err != nil {
		return nil, err
	}

	invoices, err := s.indexInvoices(ctx, rawInvoices)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Contacts:    contacts,
		Groups:      groups,
		Memberships: memberships,
		Invoices:    invoices,
		Org:         org,
		Time:        s.now().Unix(),
	}

	s.log.Debug(ctx, "writing cache to file", "path", s.cfg.CachePath)
	if err := filex.WriteJSON(s.cfg.CachePath, snap); err != nil {
		return nil, fmt.Errorf("persist cache: %w", err)
	}

	return snap, nil
}

// indexInvoices groups raw invoices by contact, drops contacts whose newest
// invoice falls outside the retention window and sorts each surviving list
// newest-first.
func (s *Service) indexInvoices(ctx context.Context, raw []*Invoice) (*jsonx.Map[[]*Invoice], error) {
	grouped := jsonx.NewMap[[]*Invoice]()
	newest := make(map[string]time.Time)
	created := make(map[*Invoice]time.Time, len(raw))

	for _, inv := range raw {
		at, err := inv.CreatedAt()
		if err != nil {
			return nil, fmt.Errorf("invoice %s: parse created_at: %w", inv.ID(), err)
		}
		created[inv] = at

		contactID := inv.ContactID()
		list, _ := grouped.Get(contactID)
		grouped.Set(contactID, append(list, inv))

		if at.After(newest[contactID]) {
			newest[contactID] = at
		}
	}

	cutoff := s.now().Add(-InvoiceRetention)
	cleaned := jsonx.NewMap[[]*Invoice]()
	removed := 0

	for _, contactID := range grouped.Keys() {
		if !newest[contactID].After(cutoff) {
			removed++
			continue
		}
		list, _ := grouped.Get(contactID)
		sort.SliceStable(list, func(a, b int) bool {
			return created[list[a]].After(created[list[b]])
		})
		cleaned.Set(contactID, list)
	}

	s.log.Debug(ctx, "trimmed stale invoice lists", "removed", removed, "kept", cleaned.Len())
	return cleaned, nil
}

// Fresh returns a usable snapshot.
//
// Source, in order of priority: the provided snapshot if it is within
// CacheExpiry, the persisted cache file if it parses and is within
// CacheExpiry, otherwise a full rebuild. force skips straight to the
// rebuild. Exactly one of the three happens per call.
func (s *Service) Fresh(ctx context.Context, provided *Snapshot, force bool) (*Snapshot, error) {
	if provided != nil {
		if !force && provided.Age(s.now()) < s.cfg.CacheExpiry {
			return provided, nil
		}
		s.log.Debug(ctx, "provided cache is stale")
	}

	disk := &Snapshot{}
	if err := filex.ReadJSON(s.cfg.CachePath, disk); err != nil {
		// Missing or corrupt cache file: recover with a rebuild.
		s.log.Debug(ctx, "cache file unusable", "err", err)
		return s.Build(ctx)
	}

	if force || disk.Age(s.now()) >= s.cfg.CacheExpiry {
		s.log.Debug(ctx, "cache file is stale")
		return s.Build(ctx)
	}

	s.log.Debug(ctx, "cache file is fresh")
	return disk, nil
}
