package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// querier is satisfied by *sql.DB and *sql.Tx so store methods can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store handles persistence for the permission engine
type Store struct {
	db    querier
	sqlDB *sql.DB
}

// NewStore creates a store over the database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, sqlDB: db}
}

// WithTx returns a store whose operations run inside tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx, sqlDB: s.sqlDB}
}

// InTx runs fn against a transaction-bound store, committing on nil and
// rolling back otherwise. Seed-time bulk attaches go through here so a
// partially-applied role definition is never observable.
func (s *Store) InTx(ctx context.Context, fn func(*Store) error) error {
	if _, ok := s.db.(*sql.DB); !ok {
		// Already transaction-bound; run in the enclosing transaction.
		return fn(s)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if err := fn(s.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateOrganization inserts a tenant
func (s *Store) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Status == "" {
		org.Status = OrgStatusActive
	}
	query := `
		INSERT INTO organizations (name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	now := time.Now()
	err := s.db.QueryRowContext(ctx, query, org.Name, org.Status, now, now).Scan(&org.ID)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// GetOrganization retrieves a tenant by id
func (s *Store) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `SELECT id, name, status, created_at, updated_at FROM organizations WHERE id = $1`

	var org Organization
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Status, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// CreateUser inserts a user
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, email, organization_id, is_system_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.OrganizationID, user.IsSystemAdmin, now, now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `SELECT id, username, email, organization_id, is_system_admin FROM users WHERE id = $1`

	var user User
	var email sql.NullString
	var orgID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &email, &orgID, &user.IsSystemAdmin,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if email.Valid {
		user.Email = email.String
	}
	if orgID.Valid {
		oid := orgID.Int64
		user.OrganizationID = &oid
	}
	return &user, nil
}

// CreatePortfolio inserts a portfolio
func (s *Store) CreatePortfolio(ctx context.Context, p *Portfolio) error {
	query := `INSERT INTO portfolios (name, start_date, end_date) VALUES ($1, $2, $3) RETURNING id`
	if err := s.db.QueryRowContext(ctx, query, p.Name, p.StartDate, p.EndDate).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// CreateProgram inserts a program
func (s *Store) CreateProgram(ctx context.Context, p *Program) error {
	query := `INSERT INTO programs (portfolio_id, name, start_date, end_date) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := s.db.QueryRowContext(ctx, query, p.PortfolioID, p.Name, p.StartDate, p.EndDate).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create program: %w", err)
	}
	return nil
}

// CreateProject inserts a project
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	query := `INSERT INTO projects (program_id, name, start_date, end_date) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := s.db.QueryRowContext(ctx, query, p.ProgramID, p.Name, p.StartDate, p.EndDate).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	query := `SELECT id, program_id, name, start_date, end_date FROM projects WHERE id = $1`

	var p Project
	var programID sql.NullInt64
	var start, end sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &programID, &p.Name, &start, &end)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if programID.Valid {
		pid := programID.Int64
		p.ProgramID = &pid
	}
	if start.Valid {
		t := start.Time
		p.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		p.EndDate = &t
	}
	return &p, nil
}

// CreateAction inserts an action verb
func (s *Store) CreateAction(ctx context.Context, a *Action) error {
	query := `INSERT INTO actions (slug, name) VALUES ($1, $2) RETURNING id`
	if err := s.db.QueryRowContext(ctx, query, a.Slug, a.Name).Scan(&a.ID); err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}
	return nil
}

// FindActionBySlug returns the action, or (nil, nil) when absent
func (s *Store) FindActionBySlug(ctx context.Context, slug string) (*Action, error) {
	query := `SELECT id, slug, name FROM actions WHERE slug = $1`

	var a Action
	err := s.db.QueryRowContext(ctx, query, slug).Scan(&a.ID, &a.Slug, &a.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find action: %w", err)
	}
	return &a, nil
}

// CreateResource inserts a protectable resource
func (s *Store) CreateResource(ctx context.Context, r *AclResource) error {
	query := `INSERT INTO acl_resources (slug, name) VALUES ($1, $2) RETURNING id`
	if err := s.db.QueryRowContext(ctx, query, r.Slug, r.Name).Scan(&r.ID); err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

// FindResourceBySlug returns the resource, or (nil, nil) when absent
func (s *Store) FindResourceBySlug(ctx context.Context, slug string) (*AclResource, error) {
	query := `SELECT id, slug, name FROM acl_resources WHERE slug = $1`

	var r AclResource
	err := s.db.QueryRowContext(ctx, query, slug).Scan(&r.ID, &r.Slug, &r.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return &r, nil
}

// AllowAction records that the action applies to the resource
func (s *Store) AllowAction(ctx context.Context, resourceID, actionID int64) error {
	allowed, err := s.ResourceAllowsAction(ctx, resourceID, actionID)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}
	query := `INSERT INTO acl_resource_actions (resource_id, action_id) VALUES ($1, $2)`
	if _, err := s.db.ExecContext(ctx, query, resourceID, actionID); err != nil {
		return fmt.Errorf("failed to allow action: %w", err)
	}
	return nil
}

// ResourceAllowsAction reports whether the pairing exists
func (s *Store) ResourceAllowsAction(ctx context.Context, resourceID, actionID int64) (bool, error) {
	query := `SELECT COUNT(1) FROM acl_resource_actions WHERE resource_id = $1 AND action_id = $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, resourceID, actionID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check resource action: %w", err)
	}
	return count > 0, nil
}

// CreatePermission inserts a permission row
func (s *Store) CreatePermission(ctx context.Context, p *Permission) error {
	query := `
		INSERT INTO permissions (resource_id, action_id, slug, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, p.ResourceID, p.ActionID, p.Slug, p.Active).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

// FindPermissionBySlug returns the permission, or (nil, nil) when absent
func (s *Store) FindPermissionBySlug(ctx context.Context, slug string) (*Permission, error) {
	query := `SELECT id, resource_id, action_id, slug, active FROM permissions WHERE slug = $1`

	var p Permission
	err := s.db.QueryRowContext(ctx, query, slug).Scan(&p.ID, &p.ResourceID, &p.ActionID, &p.Slug, &p.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find permission: %w", err)
	}
	return &p, nil
}

// ListPermissions returns every permission ordered by slug
func (s *Store) ListPermissions(ctx context.Context) ([]Permission, error) {
	query := `SELECT id, resource_id, action_id, slug, active FROM permissions ORDER BY slug ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ResourceID, &p.ActionID, &p.Slug, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

// CreateRole inserts a role and attaches its permission set
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (slug, name, description, scope, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		role.Slug, role.Name, role.Description, role.Scope, role.OrganizationID, now, now,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now

	for i := range role.Permissions {
		if err := s.GrantPermission(ctx, role, &role.Permissions[i]); err != nil {
			return err
		}
	}
	return nil
}

// FindRoleBySlug returns the role with its permissions loaded, or
// (nil, nil) when absent.
func (s *Store) FindRoleBySlug(ctx context.Context, slug string) (*Role, error) {
	query := `
		SELECT id, slug, name, description, scope, organization_id, created_at, updated_at
		FROM roles
		WHERE slug = $1
	`
	role, err := s.scanRoleRow(s.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}
	role.Permissions, err = s.rolePermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole retrieves a role by id with its permissions loaded
func (s *Store) GetRole(ctx context.Context, id int64) (*Role, error) {
	query := `
		SELECT id, slug, name, description, scope, organization_id, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	role, err := s.scanRoleRow(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	role.Permissions, err = s.rolePermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles returns all roles with their permission sets
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, slug, name, description, scope, organization_id, created_at, updated_at
		FROM roles
		ORDER BY slug ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := s.scanRoleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range roles {
		roles[i].Permissions, err = s.rolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return roles, nil
}

// DeleteRole removes a role; assignments cascade in the schema
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for role scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanRoleRow(row scanner) (*Role, error) {
	var role Role
	var description sql.NullString
	var orgID sql.NullInt64
	err := row.Scan(
		&role.ID, &role.Slug, &role.Name, &description, &role.Scope,
		&orgID, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		role.Description = description.String
	}
	if orgID.Valid {
		oid := orgID.Int64
		role.OrganizationID = &oid
	}
	return &role, nil
}

// rolePermissions loads the materialized permission set for a role
func (s *Store) rolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	query := `
		SELECT p.id, p.resource_id, p.action_id, p.slug, p.active
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.slug ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ResourceID, &p.ActionID, &p.Slug, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

// ResolvePermissionRefs maps a mixed list of *Permission, Permission
// and slug strings to permission rows. Slugs that resolve to nothing
// are silently skipped.
func (s *Store) ResolvePermissionRefs(ctx context.Context, refs []interface{}) ([]Permission, error) {
	var permissions []Permission
	for _, ref := range refs {
		switch v := ref.(type) {
		case Permission:
			permissions = append(permissions, v)
		case *Permission:
			if v != nil {
				permissions = append(permissions, *v)
			}
		case string:
			p, err := s.FindPermissionBySlug(ctx, v)
			if err != nil {
				return nil, err
			}
			if p != nil {
				permissions = append(permissions, *p)
			}
		default:
			return nil, fmt.Errorf("unsupported permission reference type %T", ref)
		}
	}
	return permissions, nil
}

// GrantPermission attaches a permission to a role. Attaching a
// permission the role already has is a no-op, so repeated grants are
// idempotent.
func (s *Store) GrantPermission(ctx context.Context, role *Role, ref interface{}) error {
	resolved, err := s.ResolvePermissionRefs(ctx, []interface{}{ref})
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}
	p := resolved[0]

	has, err := s.RoleHasPermission(ctx, role.ID, p.Slug)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	query := `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`
	if _, err := s.db.ExecContext(ctx, query, role.ID, p.ID); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

// RevokePermission detaches a permission from a role; detaching an
// absent permission is a no-op.
func (s *Store) RevokePermission(ctx context.Context, role *Role, ref interface{}) error {
	resolved, err := s.ResolvePermissionRefs(ctx, []interface{}{ref})
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}

	query := `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`
	if _, err := s.db.ExecContext(ctx, query, role.ID, resolved[0].ID); err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return nil
}

// SyncPermissions replaces the role's permission set atomically
func (s *Store) SyncPermissions(ctx context.Context, role *Role, refs []interface{}) error {
	return s.InTx(ctx, func(tx *Store) error {
		resolved, err := tx.ResolvePermissionRefs(ctx, refs)
		if err != nil {
			return err
		}
		if _, err := tx.db.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
			return fmt.Errorf("failed to detach permissions: %w", err)
		}
		seen := make(map[int64]struct{}, len(resolved))
		for _, p := range resolved {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			query := `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`
			if _, err := tx.db.ExecContext(ctx, query, role.ID, p.ID); err != nil {
				return fmt.Errorf("failed to attach permission: %w", err)
			}
		}
		return nil
	})
}

// RoleHasPermission reports whether the role already carries the slug
func (s *Store) RoleHasPermission(ctx context.Context, roleID int64, slug string) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND p.slug = $2
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, roleID, slug).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check role permission: %w", err)
	}
	return count > 0, nil
}

// AssignRole persists a role assignment after validating the scope
// invariants against the referenced role. The caller is responsible
// for clearing the user's permission snapshot afterwards.
func (s *Store) AssignRole(ctx context.Context, assignment *RoleAssignment) error {
	role, err := s.GetRole(ctx, assignment.RoleID)
	if err != nil {
		return err
	}
	if err := assignment.Validate(role); err != nil {
		return err
	}

	query := `
		INSERT INTO user_roles (user_id, role_id, portfolio_id, program_id, project_id, active, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		assignment.UserID, assignment.RoleID,
		assignment.PortfolioID, assignment.ProgramID, assignment.ProjectID,
		assignment.Active, assignment.GrantedBy, now,
	).Scan(&assignment.ID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	assignment.GrantedAt = now
	assignment.Role = role
	return nil
}

// RevokeAssignment deletes an assignment and returns the affected user
// so the caller can invalidate that user's snapshot.
func (s *Store) RevokeAssignment(ctx context.Context, assignmentID int64) (int64, error) {
	var userID int64
	query := `DELETE FROM user_roles WHERE id = $1 RETURNING user_id`
	err := s.db.QueryRowContext(ctx, query, assignmentID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("assignment not found: %d", assignmentID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to revoke assignment: %w", err)
	}
	return userID, nil
}

// SetAssignmentActive toggles an assignment (team activation or
// deactivation) and returns the affected user.
func (s *Store) SetAssignmentActive(ctx context.Context, assignmentID int64, active bool) (int64, error) {
	var userID int64
	query := `UPDATE user_roles SET active = $1 WHERE id = $2 RETURNING user_id`
	err := s.db.QueryRowContext(ctx, query, active, assignmentID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("assignment not found: %d", assignmentID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update assignment: %w", err)
	}
	return userID, nil
}

// UserAssignments loads a user's role assignments with each role and
// its permission set attached.
func (s *Store) UserAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	query := `
		SELECT id, user_id, role_id, portfolio_id, program_id, project_id, active, granted_by, granted_at
		FROM user_roles
		WHERE user_id = $1
		ORDER BY granted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()

	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var portfolioID, programID, projectID, grantedBy sql.NullInt64
		err := rows.Scan(
			&a.ID, &a.UserID, &a.RoleID,
			&portfolioID, &programID, &projectID,
			&a.Active, &grantedBy, &a.GrantedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if portfolioID.Valid {
			v := portfolioID.Int64
			a.PortfolioID = &v
		}
		if programID.Valid {
			v := programID.Int64
			a.ProgramID = &v
		}
		if projectID.Valid {
			v := projectID.Int64
			a.ProjectID = &v
		}
		if grantedBy.Valid {
			v := grantedBy.Int64
			a.GrantedBy = &v
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Roles are few; load each once and share across assignments.
	rolesByID := make(map[int64]*Role)
	for i := range assignments {
		role, ok := rolesByID[assignments[i].RoleID]
		if !ok {
			role, err = s.GetRole(ctx, assignments[i].RoleID)
			if err != nil {
				return nil, err
			}
			rolesByID[assignments[i].RoleID] = role
		}
		assignments[i].Role = role
	}
	return assignments, nil
}

// CreateProjectMembership validates and persists a membership row in a
// single transaction so the uniqueness rule cannot race a concurrent
// insert past validation within the same store.
func (s *Store) CreateProjectMembership(ctx context.Context, m *ProjectMembership) error {
	return s.InTx(ctx, func(tx *Store) error {
		project, err := tx.GetProject(ctx, m.ProjectID)
		if err != nil {
			return err
		}
		existing, err := tx.ProjectMemberships(ctx, m.ProjectID)
		if err != nil {
			return err
		}
		if err := ValidateMembership(m, project, existing); err != nil {
			return err
		}

		query := `
			INSERT INTO project_organizations (project_id, organization_id, role, is_primary, description, start_date, end_date, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		now := time.Now()
		err = tx.db.QueryRowContext(ctx, query,
			m.ProjectID, m.OrganizationID, m.Role, m.IsPrimary,
			m.Description, m.StartDate, m.EndDate, m.Active, now,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("failed to create project membership: %w", err)
		}
		m.CreatedAt = now
		return nil
	})
}

// ProjectMemberships returns every membership row for a project
func (s *Store) ProjectMemberships(ctx context.Context, projectID int64) ([]ProjectMembership, error) {
	query := `
		SELECT id, project_id, organization_id, role, is_primary, description, start_date, end_date, active, created_at
		FROM project_organizations
		WHERE project_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project memberships: %w", err)
	}
	defer rows.Close()

	var memberships []ProjectMembership
	for rows.Next() {
		var m ProjectMembership
		var description sql.NullString
		var start, end sql.NullTime
		err := rows.Scan(
			&m.ID, &m.ProjectID, &m.OrganizationID, &m.Role, &m.IsPrimary,
			&description, &start, &end, &m.Active, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project membership: %w", err)
		}
		if description.Valid {
			m.Description = description.String
		}
		if start.Valid {
			t := start.Time
			m.StartDate = &t
		}
		if end.Valid {
			t := end.Time
			m.EndDate = &t
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// SetMembershipActive toggles a membership row
func (s *Store) SetMembershipActive(ctx context.Context, membershipID int64, active bool) error {
	query := `UPDATE project_organizations SET active = $1 WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, active, membershipID)
	if err != nil {
		return fmt.Errorf("failed to update project membership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project membership not found: %d", membershipID)
	}
	return nil
}
