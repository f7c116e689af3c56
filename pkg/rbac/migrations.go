package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the engine's schema in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations and users",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(255),
					organization_id BIGINT REFERENCES organizations(id) ON DELETE SET NULL,
					is_system_admin BOOLEAN NOT NULL DEFAULT FALSE,
					cached_permissions TEXT,
					permissions_cached_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_organization_id ON users(organization_id);
				CREATE INDEX idx_users_permissions_cached_at ON users(permissions_cached_at);
			`,
		},
		{
			Version:     2,
			Description: "Create portfolio/program/project hierarchy",
			SQL: `
				CREATE TABLE IF NOT EXISTS portfolios (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					start_date TIMESTAMP,
					end_date TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS programs (
					id BIGSERIAL PRIMARY KEY,
					portfolio_id BIGINT REFERENCES portfolios(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					start_date TIMESTAMP,
					end_date TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					program_id BIGINT REFERENCES programs(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					start_date TIMESTAMP,
					end_date TIMESTAMP
				);

				CREATE INDEX idx_programs_portfolio_id ON programs(portfolio_id);
				CREATE INDEX idx_projects_program_id ON projects(program_id);
			`,
		},
		{
			Version:     3,
			Description: "Create actions, resources and permissions",
			SQL: `
				CREATE TABLE IF NOT EXISTS actions (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(100) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL
				);

				CREATE TABLE IF NOT EXISTS acl_resources (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(100) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL
				);

				CREATE TABLE IF NOT EXISTS acl_resource_actions (
					resource_id BIGINT NOT NULL REFERENCES acl_resources(id) ON DELETE CASCADE,
					action_id BIGINT NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
					PRIMARY KEY (resource_id, action_id)
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					resource_id BIGINT NOT NULL REFERENCES acl_resources(id) ON DELETE CASCADE,
					action_id BIGINT NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
					slug VARCHAR(200) NOT NULL UNIQUE,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					UNIQUE(resource_id, action_id)
				);

				CREATE INDEX idx_permissions_slug ON permissions(slug);
			`,
		},
		{
			Version:     4,
			Description: "Create roles and role_permissions",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(100) NOT NULL,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					scope VARCHAR(20) NOT NULL,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(slug, organization_id)
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX idx_roles_slug ON roles(slug);
				CREATE INDEX idx_roles_organization_id ON roles(organization_id);
			`,
		},
		{
			Version:     5,
			Description: "Create user_roles",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_roles (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					portfolio_id BIGINT REFERENCES portfolios(id) ON DELETE CASCADE,
					program_id BIGINT REFERENCES programs(id) ON DELETE CASCADE,
					project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					granted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_user_roles_user_id ON user_roles(user_id);
				CREATE INDEX idx_user_roles_role_id ON user_roles(role_id);
				CREATE INDEX idx_user_roles_project_id ON user_roles(project_id);
				CREATE INDEX idx_user_roles_program_id ON user_roles(program_id);
				CREATE INDEX idx_user_roles_portfolio_id ON user_roles(portfolio_id);
			`,
		},
		{
			Version:     6,
			Description: "Create project_organizations",
			SQL: `
				CREATE TABLE IF NOT EXISTS project_organizations (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role VARCHAR(50) NOT NULL,
					is_primary BOOLEAN NOT NULL DEFAULT FALSE,
					description TEXT,
					start_date TIMESTAMP,
					end_date TIMESTAMP,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_project_organizations_project_id ON project_organizations(project_id);
				CREATE INDEX idx_project_organizations_organization_id ON project_organizations(organization_id);
			`,
		},
	}
}

// RunMigrations applies every pending migration, each inside its own
// transaction.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM rbac_migrations ORDER BY version`)
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)`,
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}
	return nil
}
