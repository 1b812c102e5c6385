package tidyhq

import (
	"time"

	"github.com/Perth-Artifactory/tidyproxy/internal/jsonx"
)

// CreatedAtLayout is the timestamp format the API uses, ISO 8601 with a
// colonless offset: 2022-12-30T16:36:35+0000.
const CreatedAtLayout = "2006-01-02T15:04:05-0700"

// The record types below wrap the raw API objects without dropping fields:
// every record keeps its full JSON body in document order and exposes typed
// accessors only for the handful of fields the pipeline indexes on.

// Contact is a person in the organisation.
type Contact struct {
	jsonx.Object
}

// ID returns the contact id in canonical string form.
func (c *Contact) ID() string {
	v, _ := c.Get("id")
	return jsonx.KeyString(v)
}

// RawID returns the id as it appears in the source document, for use as a
// value (not a key) in derived artifacts.
func (c *Contact) RawID() any {
	v, _ := c.Get("id")
	return v
}

// GroupIDs returns the canonical ids of the groups the contact belongs to.
func (c *Contact) GroupIDs() []string {
	v, ok := c.Get("groups")
	if !ok {
		return nil
	}
	refs, ok := v.([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		obj, ok := ref.(*jsonx.Object)
		if !ok {
			continue
		}
		id, _ := obj.Get("id")
		ids = append(ids, jsonx.KeyString(id))
	}
	return ids
}

// CustomFields returns the contact's custom-field records.
func (c *Contact) CustomFields() []*jsonx.Object {
	v, ok := c.Get("custom_fields")
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	fields := make([]*jsonx.Object, 0, len(raw))
	for _, f := range raw {
		if obj, ok := f.(*jsonx.Object); ok {
			fields = append(fields, obj)
		}
	}
	return fields
}

// Group is a named collection of contacts. The raw representation has no
// member list; one is derived at materialization time.
type Group struct {
	jsonx.Object
}

func (g *Group) ID() string {
	v, _ := g.Get("id")
	return jsonx.KeyString(v)
}

// Invoice is a billing record tied to a contact.
type Invoice struct {
	jsonx.Object
}

func (i *Invoice) ID() string {
	v, _ := i.Get("id")
	return jsonx.KeyString(v)
}

func (i *Invoice) ContactID() string {
	v, _ := i.Get("contact_id")
	return jsonx.KeyString(v)
}

// CreatedAt parses the invoice creation timestamp.
func (i *Invoice) CreatedAt() (time.Time, error) {
	v, _ := i.Get("created_at")
	return time.Parse(CreatedAtLayout, jsonx.KeyString(v))
}

// Membership links a contact to a membership level.
type Membership struct {
	jsonx.Object
}

func (m *Membership) ContactID() string {
	v, _ := m.Get("contact_id")
	return jsonx.KeyString(v)
}

func (m *Membership) LevelID() string {
	v, _ := m.Get("membership_level_id")
	return jsonx.KeyString(v)
}

// Organization is the singleton account-level record.
type Organization struct {
	jsonx.Object
}
