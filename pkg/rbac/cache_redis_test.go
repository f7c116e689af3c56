package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStoreTest(t *testing.T) (*RedisSnapshotStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := DialRedisSnapshotStore(context.Background(), mr.Addr(), "", time.Minute)
	if err != nil {
		t.Fatalf("Failed to dial redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestRedisSnapshotStoreRoundTrip(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	ctx := context.Background()

	snap := &Snapshot{
		Contexts: map[string][]string{
			"global":    {"view_projects"},
			"project_5": {"edit_projects", "view_projects"},
		},
		Roles:      RoleTracker{Global: []string{"viewer"}, Projects: map[int64]string{5: "editor"}},
		ComputedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Put(ctx, 10, snap))

	got, err := store.Get(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.Contexts, got.Contexts)
	assert.Equal(t, "editor", got.Roles.Projects[5])
	assert.True(t, snap.ComputedAt.Equal(got.ComputedAt))
}

func TestRedisSnapshotStoreMiss(t *testing.T) {
	store, _ := setupRedisStoreTest(t)

	got, err := store.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSnapshotStoreDelete(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	ctx := context.Background()

	snap := &Snapshot{Contexts: map[string][]string{"global": {}}, ComputedAt: time.Now()}
	require.NoError(t, store.Put(ctx, 10, snap))
	require.NoError(t, store.Delete(ctx, 10))

	got, err := store.Get(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSnapshotStoreKeyExpiry(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	ctx := context.Background()

	snap := &Snapshot{Contexts: map[string][]string{"global": {}}, ComputedAt: time.Now()}
	require.NoError(t, store.Put(ctx, 10, snap))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, got, "expired keys must read as a miss")
}
