package rbac

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testSchema is the engine schema rendered for sqlite, which the unit
// tests run against. Production migrations target PostgreSQL; the two
// must be kept in step by hand.
const testSchema = `
	CREATE TABLE organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		organization_id INTEGER REFERENCES organizations(id) ON DELETE SET NULL,
		is_system_admin BOOLEAN NOT NULL DEFAULT FALSE,
		cached_permissions TEXT,
		permissions_cached_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE portfolios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		start_date TIMESTAMP,
		end_date TIMESTAMP
	);

	CREATE TABLE programs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id INTEGER REFERENCES portfolios(id) ON DELETE SET NULL,
		name TEXT NOT NULL,
		start_date TIMESTAMP,
		end_date TIMESTAMP
	);

	CREATE TABLE projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		program_id INTEGER REFERENCES programs(id) ON DELETE SET NULL,
		name TEXT NOT NULL,
		start_date TIMESTAMP,
		end_date TIMESTAMP
	);

	CREATE TABLE actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE acl_resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE acl_resource_actions (
		resource_id INTEGER NOT NULL REFERENCES acl_resources(id) ON DELETE CASCADE,
		action_id INTEGER NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
		PRIMARY KEY (resource_id, action_id)
	);

	CREATE TABLE permissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		resource_id INTEGER NOT NULL REFERENCES acl_resources(id) ON DELETE CASCADE,
		action_id INTEGER NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
		slug TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE(resource_id, action_id)
	);

	CREATE TABLE roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		scope TEXT NOT NULL,
		organization_id INTEGER REFERENCES organizations(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(slug, organization_id)
	);

	CREATE TABLE role_permissions (
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		permission_id INTEGER NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
		PRIMARY KEY (role_id, permission_id)
	);

	CREATE TABLE user_roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		portfolio_id INTEGER REFERENCES portfolios(id) ON DELETE CASCADE,
		program_id INTEGER REFERENCES programs(id) ON DELETE CASCADE,
		project_id INTEGER REFERENCES projects(id) ON DELETE CASCADE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		granted_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
		granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE project_organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		description TEXT,
		start_date TIMESTAMP,
		end_date TIMESTAMP,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

// NewTestDB opens an in-memory sqlite database with the engine schema
// applied. The pool is clamped to one connection so the memory database
// is shared across queries; the database is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_fk=1")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("failed to apply test schema: %v", err)
	}
	return db
}

// NewTestStore opens a test database and wraps it in a Store
func NewTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewTestDB(t))
}

// MustCreateUser inserts a user fixture
func MustCreateUser(t *testing.T, store *Store, username string, orgID *int64, admin bool) *User {
	t.Helper()
	user := &User{Username: username, OrganizationID: orgID, IsSystemAdmin: admin}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}

// MustCreateRole inserts a role fixture with permissions built from the
// given slugs. Each slug gets a backing action/resource row on demand,
// so fixtures do not depend on the seed catalog.
func MustCreateRole(t *testing.T, store *Store, slug string, scope RoleScope, permSlugs ...string) *Role {
	t.Helper()
	ctx := context.Background()

	var permissions []Permission
	for _, ps := range permSlugs {
		existing, err := store.FindPermissionBySlug(ctx, ps)
		if err != nil {
			t.Fatalf("failed to look up permission %q: %v", ps, err)
		}
		if existing != nil {
			permissions = append(permissions, *existing)
			continue
		}

		action := &Action{Slug: "action_for_" + ps, Name: ps}
		if err := store.CreateAction(ctx, action); err != nil {
			t.Fatalf("failed to create action for %q: %v", ps, err)
		}
		resource := &AclResource{Slug: "resource_for_" + ps, Name: ps}
		if err := store.CreateResource(ctx, resource); err != nil {
			t.Fatalf("failed to create resource for %q: %v", ps, err)
		}
		p := &Permission{ResourceID: resource.ID, ActionID: action.ID, Slug: ps, Active: true}
		if err := store.CreatePermission(ctx, p); err != nil {
			t.Fatalf("failed to create permission %q: %v", ps, err)
		}
		permissions = append(permissions, *p)
	}

	role := &Role{Slug: slug, Name: slug, Scope: scope, Permissions: permissions}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("failed to create role %q: %v", slug, err)
	}
	return role
}

// MustCreateProject inserts a project fixture with optional bounds
func MustCreateProject(t *testing.T, store *Store, name string, start, end *time.Time) *Project {
	t.Helper()
	project := &Project{Name: name, StartDate: start, EndDate: end}
	if err := store.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("failed to create project %q: %v", name, err)
	}
	return project
}

// MustAssign grants the role to the user and fails the test on error
func MustAssign(t *testing.T, store *Store, assignment *RoleAssignment) *RoleAssignment {
	t.Helper()
	if err := store.AssignRole(context.Background(), assignment); err != nil {
		t.Fatalf("failed to assign role: %v", err)
	}
	return assignment
}
