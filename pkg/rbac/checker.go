package rbac

import (
	"context"
	"fmt"
)

// RoleSource loads the data the evaluator needs. *Store implements it;
// tests supply fixtures.
type RoleSource interface {
	// UserAssignments returns the user's role assignments with each
	// Role and its permission set loaded.
	UserAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error)

	// ListPermissions returns every permission in the system.
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// Checker answers permission questions for users. It is request-scoped
// and synchronous; the only state it touches is the role source and,
// when configured, the snapshot cache.
type Checker struct {
	source RoleSource
	cache  *SnapshotCache

	// Optional observers for the cache-aware path
	onCacheHit  func()
	onCacheMiss func()
}

// NewChecker creates a checker. cache may be nil, in which case
// HasPermissionInContext always takes the full evaluation path.
func NewChecker(source RoleSource, cache *SnapshotCache) *Checker {
	return &Checker{source: source, cache: cache}
}

// HasPermission reports whether the user holds the permission slug
// under the given scope. System admins bypass every other rule,
// including scope filtering and slug existence. An unknown slug is an
// ordinary denial, never an error.
func (c *Checker) HasPermission(ctx context.Context, user *User, slug string, scope Scope) (bool, error) {
	if user.IsSystemAdmin {
		return true, nil
	}

	assignments, err := c.source.UserAssignments(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load role assignments: %w", err)
	}

	relevant, err := RelevantAssignments(assignments, scope)
	if err != nil {
		return false, err
	}

	for _, a := range relevant {
		if a.Role != nil && a.Role.HasPermissionSlug(slug) {
			return true, nil
		}
	}
	return false, nil
}

// HasRole reports whether any of the user's active assignments,
// regardless of scope, references a role with the slug.
func (c *Checker) HasRole(ctx context.Context, user *User, roleSlug string) (bool, error) {
	assignments, err := c.source.UserAssignments(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load role assignments: %w", err)
	}
	for _, a := range assignments {
		if a.Active && a.Role != nil && a.Role.Slug == roleSlug {
			return true, nil
		}
	}
	return false, nil
}

// AllPermissions returns the de-duplicated union of permissions across
// all of the user's roles regardless of scope. System admins get every
// permission in the system.
func (c *Checker) AllPermissions(ctx context.Context, user *User) ([]Permission, error) {
	if user.IsSystemAdmin {
		return c.source.ListPermissions(ctx)
	}

	assignments, err := c.source.UserAssignments(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role assignments: %w", err)
	}

	seen := make(map[int64]struct{})
	var permissions []Permission
	for _, a := range assignments {
		if !a.Active || a.Role == nil {
			continue
		}
		for _, p := range a.Role.Permissions {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			permissions = append(permissions, p)
		}
	}
	return permissions, nil
}

// HasPermissionInContext is the cache-aware variant of HasPermission.
// On a cache hit the answer comes from the snapshot bucket for the
// scope's context key; with checkHierarchy set, the global bucket and
// the bucket of the user's own organization are consulted as well,
// since roles held there apply in every narrower context. On a cache
// miss it falls through to the full evaluator and does NOT repopulate
// the snapshot; only an explicit CachePermissions call does that.
func (c *Checker) HasPermissionInContext(ctx context.Context, user *User, slug string, scope Scope, checkHierarchy bool) (bool, error) {
	if user.IsSystemAdmin {
		return true, nil
	}
	if !scope.valid() {
		return false, fmt.Errorf("%w: kind %q id %d", ErrInvalidScope, scope.Kind, scope.ID)
	}
	if c.cache == nil {
		return c.HasPermission(ctx, user, slug, scope)
	}

	snap, err := c.cache.snapshot(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if snap == nil || snap.Lookup(scope.ContextKey()) == nil {
		// No snapshot, expired, or this scope was never computed.
		if c.onCacheMiss != nil {
			c.onCacheMiss()
		}
		return c.HasPermission(ctx, user, slug, scope)
	}
	if c.onCacheHit != nil {
		c.onCacheHit()
	}

	if snap.Contains(scope.ContextKey(), slug) {
		return true, nil
	}
	if checkHierarchy {
		if snap.Contains(GlobalScope().ContextKey(), slug) {
			return true, nil
		}
		if user.OrganizationID != nil &&
			snap.Contains(OrganizationScope(*user.OrganizationID).ContextKey(), slug) {
			return true, nil
		}
	}
	return false, nil
}

// CachePermissions recomputes and persists the user's snapshot
func (c *Checker) CachePermissions(ctx context.Context, user *User) error {
	if c.cache == nil {
		return nil
	}
	assignments, err := c.source.UserAssignments(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load role assignments: %w", err)
	}
	return c.cache.Cache(ctx, user, assignments)
}

// ClearPermissionsCache drops the user's snapshot
func (c *Checker) ClearPermissionsCache(ctx context.Context, userID int64) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx, userID)
}
