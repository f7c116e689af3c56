package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSnapshotStore is a SnapshotStore for deployments where several
// instances should share one snapshot per user. Payloads are JSON;
// Redis key expiry mirrors the logical TTL so stale entries age out on
// their own.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotStore wraps an existing client. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisSnapshotStore{client: client, ttl: ttl}
}

// DialRedisSnapshotStore connects to addr and verifies the connection
func DialRedisSnapshotStore(ctx context.Context, addr, password string, ttl time.Duration) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisSnapshotStore(client, ttl), nil
}

func snapshotKey(userID int64) string {
	return fmt.Sprintf("rbac:permissions:%d", userID)
}

// Get loads the user's snapshot or (nil, nil) on a miss
func (s *RedisSnapshotStore) Get(ctx context.Context, userID int64) (*Snapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load permission snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, nil
	}
	return &snap, nil
}

// Put stores the snapshot under the configured expiry
func (s *RedisSnapshotStore) Put(ctx context.Context, userID int64, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal permission snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(userID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store permission snapshot: %w", err)
	}
	return nil
}

// Delete drops the snapshot
func (s *RedisSnapshotStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, snapshotKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear permission snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
