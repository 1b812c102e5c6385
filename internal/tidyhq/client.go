package tidyhq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Perth-Artifactory/tidyproxy/internal/common"
	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/jsonx"
	"github.com/Perth-Artifactory/tidyproxy/internal/logging"
)

// Category names a remote resource collection.
type Category string

const (
	CategoryContacts     Category = "contacts"
	CategoryGroups       Category = "groups"
	CategoryMemberships  Category = "memberships"
	CategoryInvoices     Category = "invoices"
	CategoryOrganization Category = "organization"
)

// Client issues read queries against the remote API. Requests are
// synchronous with no retry; a transport failure fails the whole run.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logging.Logger
}

func NewClient(cfg *config.Config, log logging.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{},
		log:     log,
	}
}

// get fetches /v1/{category}[/{term}] and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, category Category, term string, out any) error {
	u := fmt.Sprintf("%s/v1/%s", c.baseURL, category)
	if term != "" {
		u += "/" + url.PathEscape(term)
	}

	c.log.Debug(ctx, "querying tidyhq", "category", category, "term", term)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("tidyhq: build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("access_token", c.token)
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tidyhq: could not reach api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tidyhq: %s/%s: unexpected status %s", category, term, resp.Status)
	}

	d := json.NewDecoder(resp.Body)
	d.UseNumber()
	if err := d.Decode(out); err != nil {
		return fmt.Errorf("tidyhq: decode %s response: %w", category, err)
	}
	return nil
}

// Contacts fetches every contact.
func (c *Client) Contacts(ctx context.Context) ([]*Contact, error) {
	var contacts []*Contact
	if err := c.get(ctx, CategoryContacts, "", &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// Groups fetches every group. The API returns a list; it is re-indexed by
// canonical group id so downstream consumers always see groups as a
// mapping.
func (c *Client) Groups(ctx context.Context) (*jsonx.Map[*Group], error) {
	var groups []*Group
	if err := c.get(ctx, CategoryGroups, "", &groups); err != nil {
		return nil, err
	}
	return indexGroups(groups), nil
}

func indexGroups(groups []*Group) *jsonx.Map[*Group] {
	indexed := jsonx.NewMap[*Group]()
	for _, g := range groups {
		indexed.Set(g.ID(), g)
	}
	return indexed
}

// Memberships fetches every membership.
func (c *Client) Memberships(ctx context.Context) ([]*Membership, error) {
	var memberships []*Membership
	if err := c.get(ctx, CategoryMemberships, "", &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// Invoices fetches every invoice, ungrouped.
func (c *Client) Invoices(ctx context.Context) ([]*Invoice, error) {
	var invoices []*Invoice
	if err := c.get(ctx, CategoryInvoices, "", &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// Organization fetches the account-level record.
func (c *Client) Organization(ctx context.Context) (*Organization, error) {
	org := &Organization{}
	if err := c.get(ctx, CategoryOrganization, "", org); err != nil {
		return nil, err
	}
	return org, nil
}

// Contact returns one contact, served from snap when possible. A cache
// miss falls back to a single-record network query.
func (c *Client) Contact(ctx context.Context, id string, snap *Snapshot) (*Contact, error) {
	if snap != nil {
		if contact, ok := snap.Contact(id); ok {
			return contact, nil
		}
		c.log.Debug(ctx, "contact not in cache", "id", id)
	}
	contact := &Contact{}
	if err := c.get(ctx, CategoryContacts, id, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// Group returns one group, served from snap when possible. A cache miss
// falls back to a single-record network query.
func (c *Client) Group(ctx context.Context, id string, snap *Snapshot) (*Group, error) {
	if snap != nil && snap.Groups != nil {
		if group, ok := snap.Groups.Get(id); ok {
			return group, nil
		}
		c.log.Debug(ctx, "group not in cache", "id", id)
	}
	group := &Group{}
	if err := c.get(ctx, CategoryGroups, id, group); err != nil {
		return nil, err
	}
	return group, nil
}

// Query is the generic entry point: category plus optional term, optionally
// served from snap before any network call. Ids are canonicalized to
// strings, so no numeric fallback lookups exist.
func (c *Client) Query(ctx context.Context, category Category, term string, snap *Snapshot) (any, error) {
	switch category {
	case CategoryContacts:
		if term != "" {
			return c.Contact(ctx, term, snap)
		}
		if snap != nil {
			return snap.Contacts, nil
		}
		return c.Contacts(ctx)
	case CategoryGroups:
		if term != "" {
			return c.Group(ctx, term, snap)
		}
		if snap != nil && snap.Groups != nil {
			return snap.Groups, nil
		}
		return c.Groups(ctx)
	case CategoryMemberships:
		if snap != nil {
			return snap.Memberships, nil
		}
		return c.Memberships(ctx)
	case CategoryInvoices:
		if snap != nil && snap.Invoices != nil {
			return snap.Invoices, nil
		}
		return c.Invoices(ctx)
	case CategoryOrganization:
		if snap != nil && snap.Org != nil {
			return snap.Org, nil
		}
		return c.Organization(ctx)
	default:
		return nil, fmt.Errorf("tidyhq: category %q: %w", category, common.ErrNotFound)
	}
}
