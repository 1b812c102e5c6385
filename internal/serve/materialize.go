// Package serve turns one snapshot into the tree of denormalized JSON
// artifacts consumed by static-file-serving processes.
package serve

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/filex"
	"github.com/Perth-Artifactory/tidyproxy/internal/jsonx"
	"github.com/Perth-Artifactory/tidyproxy/internal/logging"
	"github.com/Perth-Artifactory/tidyproxy/internal/tidyhq"
)

// subdirs is the output tree layout, created on every run.
var subdirs = []string{
	"contacts",
	"groups",
	"invoices",
	"memberships",
	"maps",
	"maps/slack",
	"maps/taiga",
	"maps/tidyhq",
}

// Materializer writes every derived representation of a snapshot to a
// target directory. It only reads the snapshot; all derived indexes are
// built into fresh structures, so the snapshot survives unchanged.
type Materializer struct {
	cfg *config.Config
	log logging.Logger
}

func NewMaterializer(cfg *config.Config, log logging.Logger) *Materializer {
	return &Materializer{cfg: cfg, log: log}
}

// Bootstrap creates the output directory skeleton.
func (m *Materializer) Bootstrap(dir string) error {
	for _, sub := range subdirs {
		if err := filex.EnsureDir(filepath.Join(dir, sub)); err != nil {
			return err
		}
	}
	return nil
}

// Write materializes snap into dir. Any write failure is fatal to the run;
// a partially written tree is left behind for the next run to overwrite.
func (m *Materializer) Write(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	if err := m.Bootstrap(dir); err != nil {
		return err
	}

	steps := []func(context.Context, *tidyhq.Snapshot, string) error{
		m.writeContacts,
		m.writeGroups,
		m.writeInvoices,
		m.writeMemberships,
		m.writeOrg,
		m.writeMaps,
		m.writeCacheDump,
	}
	for _, step := range steps {
		if err := step(ctx, snap, dir); err != nil {
			return err
		}
	}
	return nil
}

// writeContacts emits contacts/sorted.json (id → contact) and one file per
// contact.
func (m *Materializer) writeContacts(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	m.log.Info(ctx, "writing contacts")

	sorted := jsonx.NewMap[*tidyhq.Contact]()
	for _, c := range snap.Contacts {
		sorted.Set(c.ID(), c)
	}
	if err := filex.WriteJSON(filepath.Join(dir, "contacts", "sorted.json"), sorted); err != nil {
		return err
	}

	for _, c := range snap.Contacts {
		if err := filex.WriteJSON(filepath.Join(dir, "contacts", c.ID()+".json"), c); err != nil {
			return err
		}
	}
	return nil
}

// writeGroups back-fills each group with the ids of its member contacts,
// then emits groups/sorted.json and one file per group. The member list is
// derived here and merged into copies; it never exists in the snapshot.
func (m *Materializer) writeGroups(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	m.log.Info(ctx, "writing groups")

	members := make(map[string][]any)
	for _, c := range snap.Contacts {
		for _, gid := range c.GroupIDs() {
			members[gid] = append(members[gid], c.RawID())
		}
	}

	out := jsonx.NewMap[*jsonx.Object]()
	for _, gid := range snap.Groups.Keys() {
		g, _ := snap.Groups.Get(gid)
		record := g.Clone()
		if ids, ok := members[gid]; ok {
			record.Set("membership", ids)
		}
		out.Set(gid, record)
	}

	if err := filex.WriteJSON(filepath.Join(dir, "groups", "sorted.json"), out); err != nil {
		return err
	}
	for _, gid := range out.Keys() {
		record, _ := out.Get(gid)
		if err := filex.WriteJSON(filepath.Join(dir, "groups", gid+".json"), record); err != nil {
			return err
		}
	}
	return nil
}

// writeInvoices emits the per-contact index as stored in the snapshot, one
// file per contact, a flattened list of all invoices sorted ascending by
// created_at, and that list re-indexed by invoice id.
func (m *Materializer) writeInvoices(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	m.log.Info(ctx, "writing invoices")

	if err := filex.WriteJSON(filepath.Join(dir, "invoices", "sorted.json"), snap.Invoices); err != nil {
		return err
	}

	var all []*tidyhq.Invoice
	for _, contactID := range snap.Invoices.Keys() {
		list, _ := snap.Invoices.Get(contactID)
		if err := filex.WriteJSON(filepath.Join(dir, "invoices", contactID+".json"), list); err != nil {
			return err
		}
		all = append(all, list...)
	}

	created := make(map[*tidyhq.Invoice]time.Time, len(all))
	for _, inv := range all {
		at, err := inv.CreatedAt()
		if err != nil {
			return fmt.Errorf("invoice %s: parse created_at: %w", inv.ID(), err)
		}
		created[inv] = at
	}
	// Ascending here, opposite of the per-contact newest-first order.
	sort.SliceStable(all, func(a, b int) bool {
		return created[all[a]].Before(created[all[b]])
	})

	if all == nil {
		all = []*tidyhq.Invoice{}
	}
	if err := filex.WriteJSON(filepath.Join(dir, "invoices", "all.json"), all); err != nil {
		return err
	}

	byID := jsonx.NewMap[*tidyhq.Invoice]()
	for _, inv := range all {
		byID.Set(inv.ID(), inv)
	}
	return filex.WriteJSON(filepath.Join(dir, "invoices", "all_sorted.json"), byID)
}

// writeMemberships re-indexes the flat membership list by contact and by
// membership level, and emits one file per contact.
func (m *Materializer) writeMemberships(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	m.log.Info(ctx, "writing memberships")

	byContact := jsonx.NewMap[[]*tidyhq.Membership]()
	byType := jsonx.NewMap[[]*tidyhq.Membership]()

	for _, ms := range snap.Memberships {
		contactID := ms.ContactID()
		list, _ := byContact.Get(contactID)
		byContact.Set(contactID, append(list, ms))

		typeID := ms.LevelID()
		list, _ = byType.Get(typeID)
		byType.Set(typeID, append(list, ms))
	}

	if err := filex.WriteJSON(filepath.Join(dir, "memberships", "sorted_by_contact.json"), byContact); err != nil {
		return err
	}
	if err := filex.WriteJSON(filepath.Join(dir, "memberships", "sorted_by_type.json"), byType); err != nil {
		return err
	}

	for _, contactID := range byContact.Keys() {
		list, _ := byContact.Get(contactID)
		if err := filex.WriteJSON(filepath.Join(dir, "memberships", contactID+".json"), list); err != nil {
			return err
		}
	}
	return nil
}

func (m *Materializer) writeOrg(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	m.log.Info(ctx, "writing org")
	return filex.WriteJSON(filepath.Join(dir, "org.json"), snap.Org)
}

// writeMaps builds the cross-service identity maps. Every contact appears
// in the tidyhq map; the slack and taiga maps only hold contacts with that
// identity set.
func (m *Materializer) writeMaps(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	m.log.Info(ctx, "writing identity maps")

	byTidyhq := jsonx.NewMap[*jsonx.Object]()
	bySlack := jsonx.NewMap[*jsonx.Object]()
	byTaiga := jsonx.NewMap[*jsonx.Object]()

	for _, c := range snap.Contacts {
		tidyhqID := c.ID()
		slack := m.fieldValue(c, "slack")
		taiga := m.fieldValue(c, "taiga")

		entry := jsonx.NewObject()
		entry.Set("slack", slack)
		entry.Set("taiga", taiga)
		byTidyhq.Set(tidyhqID, entry)

		if present(slack) {
			entry := jsonx.NewObject()
			entry.Set("tidyhq", tidyhqID)
			entry.Set("taiga", taiga)
			bySlack.Set(jsonx.KeyString(slack), entry)
		}
		if present(taiga) {
			entry := jsonx.NewObject()
			entry.Set("tidyhq", tidyhqID)
			entry.Set("slack", slack)
			byTaiga.Set(jsonx.KeyString(taiga), entry)
		}
	}

	maps := []struct {
		sub string
		m   *jsonx.Map[*jsonx.Object]
	}{
		{"tidyhq", byTidyhq},
		{"slack", bySlack},
		{"taiga", byTaiga},
	}
	for _, entry := range maps {
		base := filepath.Join(dir, "maps", entry.sub)
		if err := filex.WriteJSON(filepath.Join(base, "all.json"), entry.m); err != nil {
			return err
		}
		for _, key := range entry.m.Keys() {
			record, _ := entry.m.Get(key)
			if err := filex.WriteJSON(filepath.Join(base, key+".json"), record); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeCacheDump copies the raw snapshot into the tree so consumers can
// fetch the whole cache in one request.
func (m *Materializer) writeCacheDump(ctx context.Context, snap *tidyhq.Snapshot, dir string) error {
	return filex.WriteJSON(filepath.Join(dir, "cache.json"), snap)
}

// fieldValue resolves a configured custom field to its bare value; misses
// resolve to nil.
func (m *Materializer) fieldValue(contact *tidyhq.Contact, name string) any {
	field, err := tidyhq.CustomField(m.cfg, contact, name)
	if err != nil {
		return nil
	}
	v, _ := field.Get("value")
	return v
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	default:
		return true
	}
}
