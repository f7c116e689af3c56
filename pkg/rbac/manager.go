package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/planwise/planwise/pkg/audit"
	"github.com/planwise/planwise/pkg/observability"
)

// CacheBackend names a snapshot store implementation
type CacheBackend string

const (
	CacheBackendSQL    CacheBackend = "sql"
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendRedis  CacheBackend = "redis"
)

// Config controls how the Manager wires the engine together
type Config struct {
	CacheTTL      time.Duration
	CacheBackend  CacheBackend
	MemorySize    int
	RedisAddr     string
	RedisPassword string
}

// DefaultConfig returns the SQL-backed setup with the standard TTL
func DefaultConfig() Config {
	return Config{
		CacheTTL:     DefaultCacheTTL,
		CacheBackend: CacheBackendSQL,
	}
}

// Manager is the top-level entry point. It owns the store, checker and
// snapshot cache and keeps cache invalidation tied to assignment
// writes so callers cannot forget it.
type Manager struct {
	store   *Store
	checker *Checker
	cache   *SnapshotCache
	sqlSnap *SQLSnapshotStore
	logger  *observability.Logger
	metrics *observability.Metrics
	auditor audit.Logger
}

// NewManager wires the engine over the database using cfg. logger,
// metrics and auditor may be nil; no-op implementations are
// substituted.
func NewManager(ctx context.Context, db *sql.DB, cfg Config, logger *observability.Logger, metrics *observability.Metrics, auditor audit.Logger) (*Manager, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	if auditor == nil {
		auditor = audit.NopLogger{}
	}

	m := &Manager{
		store:   NewStore(db),
		logger:  logger,
		metrics: metrics,
		auditor: auditor,
	}

	var store SnapshotStore
	switch cfg.CacheBackend {
	case CacheBackendMemory:
		store = NewMemorySnapshotStore(cfg.MemorySize, cfg.CacheTTL)
	case CacheBackendRedis:
		redisStore, err := DialRedisSnapshotStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case CacheBackendSQL, "":
		m.sqlSnap = NewSQLSnapshotStore(db)
		store = m.sqlSnap
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}

	m.cache = NewSnapshotCache(store, cfg.CacheTTL)
	m.checker = NewChecker(m.store, m.cache)
	m.checker.onCacheHit = metrics.CacheHitsTotal.Inc
	m.checker.onCacheMiss = metrics.CacheMissesTotal.Inc
	return m, nil
}

// Initialize runs migrations and seeds the default actions, resources,
// permissions and built-in roles. Safe to call on every startup.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := RunMigrations(ctx, m.store.sqlDB); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if err := Seed(ctx, m.store); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	m.logger.Info("permission engine initialized")
	return nil
}

// Store exposes the persistence layer
func (m *Manager) Store() *Store { return m.store }

// Checker exposes the permission evaluator
func (m *Manager) Checker() *Checker { return m.checker }

// Cache exposes the snapshot cache
func (m *Manager) Cache() *SnapshotCache { return m.cache }

// SQLSnapshots returns the SQL snapshot store when that backend is
// active, nil otherwise. The janitor only sweeps this backend.
func (m *Manager) SQLSnapshots() *SQLSnapshotStore { return m.sqlSnap }

// HasPermissionInContext answers a cache-aware permission check and
// records the outcome.
func (m *Manager) HasPermissionInContext(ctx context.Context, user *User, slug string, scope Scope, checkHierarchy bool) (bool, error) {
	start := time.Now()
	allowed, err := m.checker.HasPermissionInContext(ctx, user, slug, scope, checkHierarchy)
	if err != nil {
		return false, err
	}
	m.metrics.PermissionCheckSeconds.Observe(time.Since(start).Seconds())
	m.metrics.RecordCheck(allowed)
	if !allowed {
		event := audit.NewEvent(audit.EventTypeAccessDenied, audit.EventStatusDenied)
		event.SubjectID = &user.ID
		event.Message = fmt.Sprintf("%s denied in %s", slug, scope.ContextKey())
		m.auditor.Log(ctx, event)
	}
	return allowed, nil
}

// AssignRole persists the assignment and clears the user's snapshot
func (m *Manager) AssignRole(ctx context.Context, assignment *RoleAssignment) error {
	if err := m.store.AssignRole(ctx, assignment); err != nil {
		return err
	}
	m.invalidate(ctx, assignment.UserID)

	event := audit.NewEvent(audit.EventTypeRoleGrant, audit.EventStatusSuccess)
	event.ActorID = assignment.GrantedBy
	event.SubjectID = &assignment.UserID
	event.ResourceType = "role"
	event.ResourceID = fmt.Sprintf("%d", assignment.RoleID)
	m.auditor.Log(ctx, event)
	return nil
}

// RevokeAssignment deletes the assignment and clears the affected
// user's snapshot.
func (m *Manager) RevokeAssignment(ctx context.Context, assignmentID int64) error {
	userID, err := m.store.RevokeAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	m.invalidate(ctx, userID)

	event := audit.NewEvent(audit.EventTypeRoleRevoke, audit.EventStatusSuccess)
	event.SubjectID = &userID
	event.ResourceType = "assignment"
	event.ResourceID = fmt.Sprintf("%d", assignmentID)
	m.auditor.Log(ctx, event)
	return nil
}

// SetAssignmentActive toggles the assignment and clears the affected
// user's snapshot. Team deactivation and reactivation both go through
// here.
func (m *Manager) SetAssignmentActive(ctx context.Context, assignmentID int64, active bool) error {
	userID, err := m.store.SetAssignmentActive(ctx, assignmentID, active)
	if err != nil {
		return err
	}
	m.invalidate(ctx, userID)
	return nil
}

// CachePermissions rebuilds the user's snapshot
func (m *Manager) CachePermissions(ctx context.Context, user *User) error {
	if err := m.checker.CachePermissions(ctx, user); err != nil {
		return err
	}
	m.metrics.CacheRebuildsTotal.Inc()

	event := audit.NewEvent(audit.EventTypeCacheRebuild, audit.EventStatusSuccess)
	event.SubjectID = &user.ID
	m.auditor.Log(ctx, event)
	return nil
}

// ClearPermissionsCache drops the user's snapshot
func (m *Manager) ClearPermissionsCache(ctx context.Context, userID int64) error {
	if err := m.checker.ClearPermissionsCache(ctx, userID); err != nil {
		return err
	}
	m.metrics.CacheInvalidations.Inc()

	event := audit.NewEvent(audit.EventTypeCacheClear, audit.EventStatusSuccess)
	event.SubjectID = &userID
	m.auditor.Log(ctx, event)
	return nil
}

func (m *Manager) invalidate(ctx context.Context, userID int64) {
	if err := m.cache.Clear(ctx, userID); err != nil {
		// The snapshot TTL bounds how long a stale grant survives;
		// log and move on rather than failing the write.
		m.logger.WithError(err).Warn("failed to invalidate permission snapshot", "user_id", userID)
		return
	}
	m.metrics.CacheInvalidations.Inc()
}
