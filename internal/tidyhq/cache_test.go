package tidyhq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perth-Artifactory/tidyproxy/internal/filex"
)

func invoiceFixture(id, contactID string, age time.Duration) string {
	createdAt := time.Now().Add(-age).UTC().Format(CreatedAtLayout)
	return fmt.Sprintf(`{"id":%s,"contact_id":%s,"created_at":%q,"amount":"25.00"}`, id, contactID, createdAt)
}

func day(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func buildFixtures(t *testing.T, invoices ...string) map[string]string {
	t.Helper()
	list := "[]"
	if len(invoices) > 0 {
		list = "["
		for i, inv := range invoices {
			if i > 0 {
				list += ","
			}
			list += inv
		}
		list += "]"
	}
	return map[string]string{
		"/v1/contacts":     contactsFixture,
		"/v1/groups":       groupsFixture,
		"/v1/memberships":  membershipsFixture,
		"/v1/invoices":     list,
		"/v1/organization": orgFixture,
	}
}

func TestService_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("drops contacts with no recent invoices", func(t *testing.T) {
		// Contact 1's newest invoice is 600 days old, contact 2's is 10
		// days old. Only contact 2 survives the trim.
		api, srv := newFakeAPI(t, buildFixtures(t,
			invoiceFixture("1000", "1", day(600)),
			invoiceFixture("1001", "1", day(700)),
			invoiceFixture("1002", "2", day(10)),
		))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		snap, err := svc.Build(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{"2"}, snap.Invoices.Keys())
		_, ok := snap.Invoices.Get("1")
		assert.False(t, ok)
		assert.Equal(t, 1, api.hits["/v1/invoices"])
	})

	t.Run("per-contact lists are newest-first", func(t *testing.T) {
		_, srv := newFakeAPI(t, buildFixtures(t,
			invoiceFixture("1000", "1", day(30)),
			invoiceFixture("1001", "1", day(5)),
			invoiceFixture("1002", "1", day(90)),
		))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		snap, err := svc.Build(ctx)
		require.NoError(t, err)

		list, ok := snap.Invoices.Get("1")
		require.True(t, ok)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"1001", "1000", "1002"}, []string{list[0].ID(), list[1].ID(), list[2].ID()})

		var prev time.Time
		for i, inv := range list {
			at, err := inv.CreatedAt()
			require.NoError(t, err)
			if i > 0 {
				assert.False(t, at.After(prev), "created_at must be non-increasing")
			}
			prev = at
		}
	})

	t.Run("stamps retrieval time and persists the same snapshot", func(t *testing.T) {
		_, srv := newFakeAPI(t, buildFixtures(t, invoiceFixture("1000", "1", day(1))))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		start := time.Now().Unix()
		snap, err := svc.Build(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.Time, start)

		persisted := &Snapshot{}
		require.NoError(t, filex.ReadJSON(cfg.CachePath, persisted))

		want, err := json.Marshal(snap)
		require.NoError(t, err)
		got, err := json.Marshal(persisted)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), "cache file must round-trip the built snapshot")
	})

	t.Run("bad created_at aborts the build", func(t *testing.T) {
		_, srv := newFakeAPI(t, buildFixtures(t,
			`{"id":1000,"contact_id":1,"created_at":"not-a-date"}`,
		))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		_, err := svc.Build(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "created_at")
	})

	t.Run("transport failure aborts the build", func(t *testing.T) {
		_, srv := newFakeAPI(t, nil) // every path 404s
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		_, err := svc.Build(ctx)
		require.Error(t, err)

		_, statErr := os.Stat(cfg.CachePath)
		assert.ErrorIs(t, statErr, os.ErrNotExist, "no cache file on failed build")
	})
}

func TestService_Fresh(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh provided snapshot returned unchanged with zero I/O", func(t *testing.T) {
		// No server and no cache file: any network or disk activity would
		// fail the call.
		cfg := testConfig(t, "http://127.0.0.1:1")
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		provided := fixtureSnapshot(t)
		provided.Time = time.Now().Add(-time.Hour).Unix()

		got, err := svc.Fresh(ctx, provided, false)
		require.NoError(t, err)
		assert.Same(t, provided, got)
	})

	t.Run("stale provided snapshot falls back to fresh disk cache", func(t *testing.T) {
		api, srv := newFakeAPI(t, buildFixtures(t))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		disk := fixtureSnapshot(t)
		disk.Time = time.Now().Unix()
		require.NoError(t, filex.WriteJSON(cfg.CachePath, disk))

		provided := fixtureSnapshot(t)
		provided.Time = time.Now().Add(-48 * time.Hour).Unix()

		got, err := svc.Fresh(ctx, provided, false)
		require.NoError(t, err)
		assert.NotSame(t, provided, got)
		assert.Equal(t, disk.Time, got.Time)
		assert.Zero(t, api.totalHits())
	})

	t.Run("stale everywhere triggers exactly one rebuild", func(t *testing.T) {
		api, srv := newFakeAPI(t, buildFixtures(t))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		disk := fixtureSnapshot(t)
		disk.Time = time.Now().Add(-48 * time.Hour).Unix()
		require.NoError(t, filex.WriteJSON(cfg.CachePath, disk))

		start := time.Now().Unix()
		got, err := svc.Fresh(ctx, nil, false)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Time, start)
		assert.Equal(t, 1, api.hits["/v1/contacts"])
	})

	t.Run("missing cache file triggers rebuild", func(t *testing.T) {
		api, srv := newFakeAPI(t, buildFixtures(t))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		_, err := svc.Fresh(ctx, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 1, api.hits["/v1/contacts"])
	})

	t.Run("corrupt cache file triggers rebuild", func(t *testing.T) {
		api, srv := newFakeAPI(t, buildFixtures(t))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		require.NoError(t, os.WriteFile(cfg.CachePath, []byte("{definitely not json"), 0o660))

		got, err := svc.Fresh(ctx, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 1, api.hits["/v1/contacts"])
		assert.NotZero(t, got.Time)
	})

	t.Run("force rebuilds even when everything is fresh", func(t *testing.T) {
		api, srv := newFakeAPI(t, buildFixtures(t))
		cfg := testConfig(t, srv.URL)
		svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

		provided := fixtureSnapshot(t)
		provided.Time = time.Now().Unix()
		require.NoError(t, filex.WriteJSON(cfg.CachePath, provided))

		_, err := svc.Fresh(ctx, provided, true)
		require.NoError(t, err)
		assert.Equal(t, 1, api.hits["/v1/contacts"])
	})
}

func TestSnapshot_RoundTrip(t *testing.T) {
	// A snapshot persisted and reloaded must be structurally identical,
	// down to key order inside records.
	_, srv := newFakeAPI(t, buildFixtures(t,
		invoiceFixture("1000", "1", day(3)),
		invoiceFixture("1001", "2", day(7)),
	))
	cfg := testConfig(t, srv.URL)
	svc := NewService(cfg, NewClient(cfg, testLogger()), testLogger())

	snap, err := svc.Build(context.Background())
	require.NoError(t, err)

	reloaded, err := svc.Fresh(context.Background(), nil, false)
	require.NoError(t, err)

	want, err := json.Marshal(snap)
	require.NoError(t, err)
	got, err := json.Marshal(reloaded)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}
