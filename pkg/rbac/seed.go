package rbac

import (
	"context"
)

// SeedAction pairs a slug with its display name
type SeedAction struct {
	Slug string
	Name string
}

// SeedResource declares a protectable resource and the actions that
// apply to it.
type SeedResource struct {
	Slug    string
	Name    string
	Actions []string
}

// SeedRole declares a built-in role through slug patterns. Include is
// applied first, then Exclude is subtracted.
type SeedRole struct {
	Slug        string
	Name        string
	Description string
	Scope       RoleScope
	Include     []string
	Exclude     []string
}

// DefaultActions returns the verbs the platform ships with
func DefaultActions() []SeedAction {
	return []SeedAction{
		{Slug: "view", Name: "View"},
		{Slug: "create", Name: "Create"},
		{Slug: "edit", Name: "Edit"},
		{Slug: "delete", Name: "Delete"},
		{Slug: "export", Name: "Export"},
		{Slug: "approve", Name: "Approve"},
	}
}

// DefaultResources returns the protectable nouns and their applicable
// actions. Not every verb makes sense for every noun; the pairings here
// are the only ones BuildPermission will accept.
func DefaultResources() []SeedResource {
	crud := []string{"view", "create", "edit", "delete"}
	return []SeedResource{
		{Slug: "portfolios", Name: "Portfolios", Actions: crud},
		{Slug: "programs", Name: "Programs", Actions: crud},
		{Slug: "projects", Name: "Projects", Actions: append(crud, "export")},
		{Slug: "tasks", Name: "Tasks", Actions: append(crud, "approve")},
		{Slug: "budgets", Name: "Budgets", Actions: append(crud, "export", "approve")},
		{Slug: "risks", Name: "Risks", Actions: append(crud, "export")},
		{Slug: "organizations", Name: "Organizations", Actions: crud},
		{Slug: "users", Name: "Users", Actions: crud},
		{Slug: "roles", Name: "Roles", Actions: crud},
		{Slug: "reports", Name: "Reports", Actions: []string{"view", "export"}},
	}
}

// BuiltinRoles returns the roles seeded on first start
func BuiltinRoles() []SeedRole {
	return []SeedRole{
		{
			Slug:        "viewer",
			Name:        "Viewer",
			Description: "Read-only access across the platform",
			Scope:       RoleScopeGlobal,
			Include:     []string{"view_*"},
		},
		{
			Slug:        "auditor",
			Name:        "Auditor",
			Description: "Read and export everything, change nothing",
			Scope:       RoleScopeGlobal,
			Include:     []string{"view_*", "export_*"},
		},
		{
			Slug:        "org_admin",
			Name:        "Organization Admin",
			Description: "Manage everything inside one tenant",
			Scope:       RoleScopeOrganization,
			Include:     []string{"*"},
			Exclude:     []string{"*_organizations"},
		},
		{
			Slug:        "project_manager",
			Name:        "Project Manager",
			Description: "Full control of a project and its artifacts",
			Scope:       RoleScopeProject,
			Include:     []string{"*_projects", "*_tasks", "*_budgets", "*_risks", "view_reports", "export_reports"},
		},
		{
			Slug:        "project_editor",
			Name:        "Project Editor",
			Description: "Work on project artifacts without destructive or approval rights",
			Scope:       RoleScopeProject,
			Include:     []string{"*_projects", "*_tasks", "*_risks"},
			Exclude:     []string{"delete_*", "approve_*"},
		},
	}
}

// BuildPermission constructs the permission row for a resource/action
// slug pair. A missing resource, missing action or a pairing the
// resource does not allow is a ConfigurationError; this runs at
// provisioning time only.
func BuildPermission(ctx context.Context, store *Store, resourceSlug, actionSlug string) (*Permission, error) {
	resource, err := store.FindResourceBySlug(ctx, resourceSlug)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, &ConfigurationError{Resource: resourceSlug, Action: actionSlug, Reason: "unknown resource"}
	}
	action, err := store.FindActionBySlug(ctx, actionSlug)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, &ConfigurationError{Resource: resourceSlug, Action: actionSlug, Reason: "unknown action"}
	}
	allowed, err := store.ResourceAllowsAction(ctx, resource.ID, action.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &ConfigurationError{Resource: resourceSlug, Action: actionSlug, Reason: "action not applicable to resource"}
	}

	return &Permission{
		ResourceID: resource.ID,
		ActionID:   action.ID,
		Slug:       PermissionSlug(actionSlug, resourceSlug),
		Active:     true,
	}, nil
}

// Seed provisions the default actions, resources, permission matrix and
// built-in roles in one transaction. Rows that already exist are left
// alone, so repeated runs are safe.
func Seed(ctx context.Context, store *Store) error {
	return store.InTx(ctx, func(tx *Store) error {
		for _, sa := range DefaultActions() {
			existing, err := tx.FindActionBySlug(ctx, sa.Slug)
			if err != nil {
				return err
			}
			if existing == nil {
				if err := tx.CreateAction(ctx, &Action{Slug: sa.Slug, Name: sa.Name}); err != nil {
					return err
				}
			}
		}

		for _, sr := range DefaultResources() {
			resource, err := tx.FindResourceBySlug(ctx, sr.Slug)
			if err != nil {
				return err
			}
			if resource == nil {
				resource = &AclResource{Slug: sr.Slug, Name: sr.Name}
				if err := tx.CreateResource(ctx, resource); err != nil {
					return err
				}
			}
			for _, actionSlug := range sr.Actions {
				action, err := tx.FindActionBySlug(ctx, actionSlug)
				if err != nil {
					return err
				}
				if action == nil {
					return &ConfigurationError{Resource: sr.Slug, Action: actionSlug, Reason: "unknown action"}
				}
				if err := tx.AllowAction(ctx, resource.ID, action.ID); err != nil {
					return err
				}

				slug := PermissionSlug(actionSlug, sr.Slug)
				existing, err := tx.FindPermissionBySlug(ctx, slug)
				if err != nil {
					return err
				}
				if existing != nil {
					continue
				}
				permission, err := BuildPermission(ctx, tx, sr.Slug, actionSlug)
				if err != nil {
					return err
				}
				if err := tx.CreatePermission(ctx, permission); err != nil {
					return err
				}
			}
		}

		all, err := tx.ListPermissions(ctx)
		if err != nil {
			return err
		}
		for _, sr := range BuiltinRoles() {
			existing, err := tx.FindRoleBySlug(ctx, sr.Slug)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			role := &Role{
				Slug:        sr.Slug,
				Name:        sr.Name,
				Description: sr.Description,
				Scope:       sr.Scope,
				Permissions: ExpandPatterns(all, sr.Include, sr.Exclude),
			}
			if err := tx.CreateRole(ctx, role); err != nil {
				return err
			}
		}
		return nil
	})
}
