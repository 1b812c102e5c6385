package tidyhq

import (
	"fmt"

	"github.com/Perth-Artifactory/tidyproxy/internal/common"
	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/jsonx"
)

// CustomField resolves a contact's custom field by the name configured in
// tidyhq.ids. The full field record is returned (id and value); callers
// wanting just the value should read the "value" key.
//
// Misses are reported with common.ErrNotFound and are not fatal.
func CustomField(cfg *config.Config, contact *Contact, name string) (*jsonx.Object, error) {
	fieldID, ok := cfg.FieldIDs[name]
	if !ok || fieldID == "" {
		return nil, fmt.Errorf("custom field name %q has no configured id: %w", name, common.ErrNotFound)
	}
	return CustomFieldByID(contact, fieldID)
}

// CustomFieldByID resolves a contact's custom field by raw field id.
func CustomFieldByID(contact *Contact, fieldID string) (*jsonx.Object, error) {
	if fieldID == "" {
		return nil, fmt.Errorf("empty custom field id: %w", common.ErrNotFound)
	}
	for _, field := range contact.CustomFields() {
		id, _ := field.Get("id")
		if jsonx.KeyString(id) == fieldID {
			return field, nil
		}
	}
	return nil, fmt.Errorf("custom field %s not set for contact %s: %w", fieldID, contact.ID(), common.ErrNotFound)
}
