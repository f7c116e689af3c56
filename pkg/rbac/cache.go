package rbac

import (
	"context"
	"sort"
	"time"
)

// DefaultCacheTTL bounds how long a computed permission snapshot may be
// served before it counts as a miss.
const DefaultCacheTTL = 15 * time.Minute

// RoleTracker records which role slugs contributed to a snapshot,
// grouped by the category the assignment landed in.
type RoleTracker struct {
	Global       []string         `json:"global"`
	Organization []string         `json:"organization"`
	Projects     map[int64]string `json:"projects"`
}

// Snapshot is a per-user materialization of permission slugs keyed by
// context ("global", "project_5", "organization_12", ...). A context
// key that was never populated is a cache miss for that scope, not a
// denial.
type Snapshot struct {
	Contexts   map[string][]string `json:"contexts"`
	Roles      RoleTracker         `json:"roles"`
	ComputedAt time.Time           `json:"computed_at"`
}

// Lookup returns the slug set stored for the context key, or nil if the
// key was never computed.
func (s *Snapshot) Lookup(contextKey string) []string {
	if s == nil || s.Contexts == nil {
		return nil
	}
	return s.Contexts[contextKey]
}

// Contains reports whether the context bucket holds the slug
func (s *Snapshot) Contains(contextKey, slug string) bool {
	for _, have := range s.Lookup(contextKey) {
		if have == slug {
			return true
		}
	}
	return false
}

// SnapshotStore persists per-user snapshots. Get returns (nil, nil) on
// a miss. Implementations: SQLSnapshotStore (user row, the system of
// record), MemorySnapshotStore (expirable LRU) and RedisSnapshotStore.
type SnapshotStore interface {
	Get(ctx context.Context, userID int64) (*Snapshot, error)
	Put(ctx context.Context, userID int64, snap *Snapshot) error
	Delete(ctx context.Context, userID int64) error
}

// SnapshotCache wraps a SnapshotStore with the TTL policy and the
// snapshot build algorithm.
type SnapshotCache struct {
	store SnapshotStore
	ttl   time.Duration
	now   func() time.Time
}

// NewSnapshotCache creates a cache with the given backing store. A
// non-positive ttl falls back to DefaultCacheTTL.
func NewSnapshotCache(store SnapshotStore, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SnapshotCache{store: store, ttl: ttl, now: time.Now}
}

// TTL returns the configured snapshot lifetime
func (c *SnapshotCache) TTL() time.Duration { return c.ttl }

// BuildSnapshot computes a snapshot from the user's loaded assignments.
// Each active assignment is bucketed by precedence project -> program
// -> portfolio -> the user's own organization -> global, its role's
// permission slugs merged into the bucket, and the bucket arrays
// de-duplicated afterwards. Pure; does not touch the store.
func (c *SnapshotCache) BuildSnapshot(user *User, assignments []RoleAssignment) *Snapshot {
	snap := &Snapshot{
		Contexts: make(map[string][]string),
		Roles: RoleTracker{
			Global:       []string{},
			Organization: []string{},
			Projects:     make(map[int64]string),
		},
		ComputedAt: c.now(),
	}

	for _, a := range assignments {
		if !a.Active || a.Role == nil {
			continue
		}

		var key string
		switch {
		case a.ProjectID != nil:
			key = ProjectScope(*a.ProjectID).ContextKey()
			snap.Roles.Projects[*a.ProjectID] = a.Role.Slug
		case a.ProgramID != nil:
			key = ProgramScope(*a.ProgramID).ContextKey()
		case a.PortfolioID != nil:
			key = PortfolioScope(*a.PortfolioID).ContextKey()
		case user.OrganizationID != nil:
			key = OrganizationScope(*user.OrganizationID).ContextKey()
			snap.Roles.Organization = append(snap.Roles.Organization, a.Role.Slug)
		default:
			key = GlobalScope().ContextKey()
			snap.Roles.Global = append(snap.Roles.Global, a.Role.Slug)
		}

		for _, p := range a.Role.Permissions {
			if p.Active {
				snap.Contexts[key] = append(snap.Contexts[key], p.Slug)
			}
		}
		if _, ok := snap.Contexts[key]; !ok {
			// A role with no active permissions still marks the
			// context as computed.
			snap.Contexts[key] = []string{}
		}
	}

	for key, slugs := range snap.Contexts {
		snap.Contexts[key] = dedupeSlugs(slugs)
	}
	snap.Roles.Global = dedupeSlugs(snap.Roles.Global)
	snap.Roles.Organization = dedupeSlugs(snap.Roles.Organization)

	return snap
}

// Cache builds and persists the snapshot for the user
func (c *SnapshotCache) Cache(ctx context.Context, user *User, assignments []RoleAssignment) error {
	return c.store.Put(ctx, user.ID, c.BuildSnapshot(user, assignments))
}

// Cached returns the slug set for a context key, or nil when there is
// no snapshot, the snapshot is older than the TTL, or the key was never
// populated. A nil result means the caller must fall back to the full
// evaluation path.
func (c *SnapshotCache) Cached(ctx context.Context, userID int64, contextKey string) ([]string, error) {
	snap, err := c.snapshot(ctx, userID)
	if err != nil || snap == nil {
		return nil, err
	}
	return snap.Lookup(contextKey), nil
}

// snapshot is unexported plumbing shared by Cached and the fast path;
// it applies the TTL check.
func (c *SnapshotCache) snapshot(ctx context.Context, userID int64) (*Snapshot, error) {
	snap, err := c.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap == nil || c.now().Sub(snap.ComputedAt) > c.ttl {
		return nil, nil
	}
	return snap, nil
}

// Clear drops the user's snapshot. Must be called synchronously after
// any mutation of the user's role assignments or team activation state.
func (c *SnapshotCache) Clear(ctx context.Context, userID int64) error {
	return c.store.Delete(ctx, userID)
}

// dedupeSlugs returns a sorted, duplicate-free copy
func dedupeSlugs(slugs []string) []string {
	seen := make(map[string]struct{}, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
