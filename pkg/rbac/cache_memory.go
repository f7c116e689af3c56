package rbac

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// defaultMemoryCacheSize bounds the number of per-user snapshots held
// in memory when the caller does not configure one.
const defaultMemoryCacheSize = 4096

// MemorySnapshotStore is an in-process SnapshotStore backed by an
// expirable LRU. Eviction by the LRU is just early reclamation; the
// logical TTL is still enforced by SnapshotCache against ComputedAt.
type MemorySnapshotStore struct {
	cache *lru.LRU[int64, *Snapshot]
}

// NewMemorySnapshotStore creates a store holding up to maxEntries
// snapshots, each evicted after ttl.
func NewMemorySnapshotStore(maxEntries int, ttl time.Duration) *MemorySnapshotStore {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemorySnapshotStore{
		cache: lru.NewLRU[int64, *Snapshot](maxEntries, nil, ttl),
	}
}

// Get returns the user's snapshot or (nil, nil) on a miss
func (s *MemorySnapshotStore) Get(_ context.Context, userID int64) (*Snapshot, error) {
	snap, ok := s.cache.Get(userID)
	if !ok {
		return nil, nil
	}
	return snap, nil
}

// Put stores the snapshot
func (s *MemorySnapshotStore) Put(_ context.Context, userID int64, snap *Snapshot) error {
	s.cache.Add(userID, snap)
	return nil
}

// Delete drops the snapshot
func (s *MemorySnapshotStore) Delete(_ context.Context, userID int64) error {
	s.cache.Remove(userID)
	return nil
}
