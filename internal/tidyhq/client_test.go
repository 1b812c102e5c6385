package tidyhq

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perth-Artifactory/tidyproxy/internal/common"
	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/jsonx"
	"github.com/Perth-Artifactory/tidyproxy/internal/logging"
)

// -------- test helpers --------

const (
	contactsFixture = `[` +
		`{"id":1,"first_name":"Alice","groups":[{"id":5,"label":"Committee"}],"custom_fields":[{"id":"f-slack","value":"U1"},{"id":"f-taiga","value":"T1"}]},` +
		`{"id":2,"first_name":"Bob","groups":[{"id":5,"label":"Committee"}],"custom_fields":[]}` +
		`]`
	groupsFixture      = `[{"id":5,"label":"Committee"},{"id":9,"label":"Band"}]`
	membershipsFixture = `[` +
		`{"id":100,"contact_id":1,"membership_level_id":7},` +
		`{"id":101,"contact_id":2,"membership_level_id":8},` +
		`{"id":102,"contact_id":1,"membership_level_id":8}` +
		`]`
	orgFixture = `{"id":"org-1","name":"Perth Artifactory","domain_prefix":"artifactory"}`
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BaseURL = baseURL
	cfg.Token = "tok-123"
	cfg.FieldIDs = map[string]string{"slack": "f-slack", "taiga": "f-taiga"}
	cfg.CachePath = filepath.Join(t.TempDir(), "cache.json")
	return cfg
}

// fakeAPI serves canned JSON per path and counts hits.
type fakeAPI struct {
	t         *testing.T
	responses map[string]string
	hits      map[string]int
}

func newFakeAPI(t *testing.T, responses map[string]string) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{t: t, responses: responses, hits: make(map[string]int)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "tok-123", r.URL.Query().Get("access_token"))
	f.hits[r.URL.Path]++
	body, ok := f.responses[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	io.WriteString(w, body)
}

func (f *fakeAPI) totalHits() int {
	total := 0
	for _, n := range f.hits {
		total += n
	}
	return total
}

func mustDecode[T any](t *testing.T, src string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(src), &v))
	return v
}

func fixtureSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap := &Snapshot{
		Contacts:    mustDecode[[]*Contact](t, contactsFixture),
		Memberships: mustDecode[[]*Membership](t, membershipsFixture),
		Org:         mustDecode[*Organization](t, orgFixture),
		Time:        0,
	}
	snap.Groups = indexGroups(mustDecode[[]*Group](t, groupsFixture))
	snap.Invoices = jsonx.NewMap[[]*Invoice]()
	return snap
}

// -------- tests --------

func TestClient_Collections(t *testing.T) {
	ctx := context.Background()
	api, srv := newFakeAPI(t, map[string]string{
		"/v1/contacts":     contactsFixture,
		"/v1/groups":       groupsFixture,
		"/v1/memberships":  membershipsFixture,
		"/v1/organization": orgFixture,
	})
	client := NewClient(testConfig(t, srv.URL), testLogger())

	t.Run("contacts", func(t *testing.T) {
		contacts, err := client.Contacts(ctx)
		require.NoError(t, err)
		require.Len(t, contacts, 2)
		assert.Equal(t, "1", contacts[0].ID())
	})

	t.Run("groups re-indexed by id", func(t *testing.T) {
		groups, err := client.Groups(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"5", "9"}, groups.Keys())

		g, ok := groups.Get("5")
		require.True(t, ok)
		label, _ := g.Get("label")
		assert.Equal(t, "Committee", label)
	})

	t.Run("memberships", func(t *testing.T) {
		memberships, err := client.Memberships(ctx)
		require.NoError(t, err)
		require.Len(t, memberships, 3)
		assert.Equal(t, "7", memberships[0].LevelID())
	})

	t.Run("organization", func(t *testing.T) {
		org, err := client.Organization(ctx)
		require.NoError(t, err)
		prefix, _ := org.Get("domain_prefix")
		assert.Equal(t, "artifactory", prefix)
	})

	assert.Zero(t, api.hits["/v1/invoices"])
}

func TestClient_CachedLookups(t *testing.T) {
	ctx := context.Background()

	t.Run("contact served from snapshot, no network", func(t *testing.T) {
		api, srv := newFakeAPI(t, nil)
		client := NewClient(testConfig(t, srv.URL), testLogger())
		snap := fixtureSnapshot(t)

		contact, err := client.Contact(ctx, "2", snap)
		require.NoError(t, err)
		name, _ := contact.Get("first_name")
		assert.Equal(t, "Bob", name)
		assert.Zero(t, api.totalHits())
	})

	t.Run("group served from snapshot, no network", func(t *testing.T) {
		api, srv := newFakeAPI(t, nil)
		client := NewClient(testConfig(t, srv.URL), testLogger())
		snap := fixtureSnapshot(t)

		group, err := client.Group(ctx, "9", snap)
		require.NoError(t, err)
		label, _ := group.Get("label")
		assert.Equal(t, "Band", label)
		assert.Zero(t, api.totalHits())
	})

	t.Run("group cache miss falls back to network", func(t *testing.T) {
		api, srv := newFakeAPI(t, map[string]string{
			"/v1/groups/42": `{"id":42,"label":"Laser"}`,
		})
		client := NewClient(testConfig(t, srv.URL), testLogger())
		snap := fixtureSnapshot(t)

		group, err := client.Group(ctx, "42", snap)
		require.NoError(t, err)
		assert.Equal(t, "42", group.ID())
		assert.Equal(t, 1, api.hits["/v1/groups/42"])
	})

	t.Run("contact cache miss falls back to network", func(t *testing.T) {
		api, srv := newFakeAPI(t, map[string]string{
			"/v1/contacts/77": `{"id":77,"first_name":"Carol"}`,
		})
		client := NewClient(testConfig(t, srv.URL), testLogger())
		snap := fixtureSnapshot(t)

		contact, err := client.Contact(ctx, "77", snap)
		require.NoError(t, err)
		assert.Equal(t, "77", contact.ID())
		assert.Equal(t, 1, api.hits["/v1/contacts/77"])
	})
}

func TestClient_Query(t *testing.T) {
	ctx := context.Background()
	api, srv := newFakeAPI(t, map[string]string{"/v1/invoices": `[]`})
	client := NewClient(testConfig(t, srv.URL), testLogger())
	snap := fixtureSnapshot(t)

	t.Run("collection from cache", func(t *testing.T) {
		got, err := client.Query(ctx, CategoryContacts, "", snap)
		require.NoError(t, err)
		assert.Equal(t, snap.Contacts, got)
		assert.Zero(t, api.totalHits())
	})

	t.Run("organization from cache", func(t *testing.T) {
		got, err := client.Query(ctx, CategoryOrganization, "", snap)
		require.NoError(t, err)
		assert.Equal(t, snap.Org, got)
	})

	t.Run("collection without cache hits network", func(t *testing.T) {
		_, err := client.Query(ctx, CategoryInvoices, "", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, api.hits["/v1/invoices"])
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := client.Query(ctx, Category("widgets"), "", snap)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestClient_TransportErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable server", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		client := NewClient(testConfig(t, srv.URL), testLogger())
		_, err := client.Contacts(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not reach")
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		client := NewClient(testConfig(t, srv.URL), testLogger())
		_, err := client.Contacts(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status")
	})

	t.Run("non-JSON body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "<html>maintenance</html>")
		}))
		t.Cleanup(srv.Close)

		client := NewClient(testConfig(t, srv.URL), testLogger())
		_, err := client.Contacts(ctx)
		require.Error(t, err)
	})
}
