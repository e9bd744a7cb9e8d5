package authaudit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestOpen_CreatesAndMigratesDatabase(t *testing.T) {
	store := newTestStore(t)

	events, err := store.Recent(context.Background(), "example.com", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(context.Background(), Event{
		Host: "example.com", Method: "cookie", Kind: "login", Outcome: "success",
		OccurredAt: base,
	}))
	require.NoError(t, store.Record(context.Background(), Event{
		Host: "example.com", Method: "cookie", Kind: "logout", Outcome: "success",
		OccurredAt: base.Add(time.Minute),
	}))
	require.NoError(t, store.Record(context.Background(), Event{
		Host: "other.com", Method: "oauth", Kind: "login", Outcome: "failure",
		OccurredAt: base,
	}))

	events, err := store.Recent(context.Background(), "example.com", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// newest first
	assert.Equal(t, "logout", events[0].Kind)
	assert.Equal(t, "login", events[1].Kind)

	for _, e := range events {
		assert.Equal(t, "example.com", e.Host)
	}
}

func TestStore_Recent_RespectsLimit(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(context.Background(), Event{
			Host: "example.com", Method: "cookie", Kind: "login", Outcome: "success",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := store.Recent(context.Background(), "example.com", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestStore_Recent_UnknownHostReturnsEmpty(t *testing.T) {
	store := newTestStore(t)

	events, err := store.Recent(context.Background(), "nowhere.example", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}
