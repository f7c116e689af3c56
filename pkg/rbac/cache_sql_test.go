package rbac

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLSnapshotStoreRoundTrip(t *testing.T) {
	db := NewTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	user := MustCreateUser(t, store, "alice", nil, false)
	snapStore := NewSQLSnapshotStore(db)

	snap := &Snapshot{
		Contexts: map[string][]string{
			"global":    {"view_projects"},
			"project_5": {"edit_projects"},
		},
		Roles:      RoleTracker{Projects: map[int64]string{5: "editor"}},
		ComputedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, snapStore.Put(ctx, user.ID, snap))

	got, err := snapStore.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.Contexts, got.Contexts)
	assert.True(t, snap.ComputedAt.Equal(got.ComputedAt))
}

func TestSQLSnapshotStoreMissStates(t *testing.T) {
	db := NewTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	snapStore := NewSQLSnapshotStore(db)

	// Missing user is a miss, not an error.
	got, err := snapStore.Get(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Existing user with no snapshot is a miss.
	user := MustCreateUser(t, store, "bob", nil, false)
	got, err = snapStore.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// A corrupt blob is a miss, never an error.
	_, err = db.Exec(`UPDATE users SET cached_permissions = 'not json', permissions_cached_at = $1 WHERE id = $2`,
		time.Now(), user.ID)
	require.NoError(t, err)
	got, err = snapStore.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLSnapshotStorePutUnknownUser(t *testing.T) {
	db := NewTestDB(t)
	snapStore := NewSQLSnapshotStore(db)

	snap := &Snapshot{Contexts: map[string][]string{}, ComputedAt: time.Now()}
	err := snapStore.Put(context.Background(), 424242, snap)
	assert.Error(t, err)
}

func TestSQLSnapshotStoreDelete(t *testing.T) {
	db := NewTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	user := MustCreateUser(t, store, "carol", nil, false)
	snapStore := NewSQLSnapshotStore(db)
	snap := &Snapshot{Contexts: map[string][]string{"global": {}}, ComputedAt: time.Now()}
	require.NoError(t, snapStore.Put(ctx, user.ID, snap))
	require.NoError(t, snapStore.Delete(ctx, user.ID))

	got, err := snapStore.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLSnapshotStorePurgeExpired(t *testing.T) {
	db := NewTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	snapStore := NewSQLSnapshotStore(db)

	stale := MustCreateUser(t, store, "stale", nil, false)
	fresh := MustCreateUser(t, store, "fresh", nil, false)

	old := &Snapshot{Contexts: map[string][]string{"global": {}}, ComputedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, snapStore.Put(ctx, stale.ID, old))
	current := &Snapshot{Contexts: map[string][]string{"global": {}}, ComputedAt: time.Now()}
	require.NoError(t, snapStore.Put(ctx, fresh.ID, current))

	purged, err := snapStore.PurgeExpired(ctx, time.Now().Add(-DefaultCacheTTL))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	got, err := snapStore.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = snapStore.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLSnapshotStoreGetQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT cached_permissions").WillReturnError(assert.AnError)

	snapStore := NewSQLSnapshotStore(db)
	_, err = snapStore.Get(context.Background(), 10)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
