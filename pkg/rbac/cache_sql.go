package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLSnapshotStore keeps each user's snapshot on the user row itself
// (cached_permissions blob plus permissions_cached_at stamp). It is the
// default backend and the one swept by the janitor.
type SQLSnapshotStore struct {
	db *sql.DB
}

// NewSQLSnapshotStore creates a store over the users table
func NewSQLSnapshotStore(db *sql.DB) *SQLSnapshotStore {
	return &SQLSnapshotStore{db: db}
}

// Get loads the user's snapshot. Missing user, null blob and null stamp
// all count as a miss.
func (s *SQLSnapshotStore) Get(ctx context.Context, userID int64) (*Snapshot, error) {
	query := `SELECT cached_permissions, permissions_cached_at FROM users WHERE id = $1`

	var blob sql.NullString
	var cachedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&blob, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load permission snapshot: %w", err)
	}
	if !blob.Valid || !cachedAt.Valid {
		return nil, nil
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(blob.String), &snap); err != nil {
		// A corrupt blob is treated as a miss; the next explicit
		// rebuild overwrites it.
		return nil, nil
	}
	snap.ComputedAt = cachedAt.Time
	return &snap, nil
}

// Put stores the snapshot and stamps permissions_cached_at
func (s *SQLSnapshotStore) Put(ctx context.Context, userID int64, snap *Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal permission snapshot: %w", err)
	}

	query := `UPDATE users SET cached_permissions = $1, permissions_cached_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, string(blob), snap.ComputedAt, userID)
	if err != nil {
		return fmt.Errorf("failed to store permission snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}
	return nil
}

// Delete nulls out the snapshot and its stamp
func (s *SQLSnapshotStore) Delete(ctx context.Context, userID int64) error {
	query := `UPDATE users SET cached_permissions = NULL, permissions_cached_at = NULL WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear permission snapshot: %w", err)
	}
	return nil
}

// PurgeExpired nulls out every snapshot stamped before the cutoff and
// returns how many rows were touched. Called by the janitor; a stale
// snapshot already reads as a miss, so the sweep only reclaims space.
func (s *SQLSnapshotStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE users
		SET cached_permissions = NULL, permissions_cached_at = NULL
		WHERE permissions_cached_at IS NOT NULL AND permissions_cached_at < $1
	`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge permission snapshots: %w", err)
	}
	return result.RowsAffected()
}
