package rbac

import (
	"time"
)

// OrganizationStatus represents the lifecycle state of a tenant
type OrganizationStatus string

const (
	OrgStatusActive   OrganizationStatus = "active"
	OrgStatusInactive OrganizationStatus = "inactive"
	OrgStatusArchived OrganizationStatus = "archived"
)

// Organization represents a tenant
type Organization struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Status    OrganizationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Portfolio is the top level of the planning hierarchy
type Portfolio struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Program groups projects under an optional portfolio
type Program struct {
	ID          int64      `json:"id"`
	PortfolioID *int64     `json:"portfolio_id,omitempty"`
	Name        string     `json:"name"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// Project is the finest-grained scope unit. It may stand alone or
// belong to a program. Within this package it only acts as a scope
// identifier and as the bounding box for membership date validation.
type Project struct {
	ID        int64      `json:"id"`
	ProgramID *int64     `json:"program_id,omitempty"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Action is a verb that can be applied to a resource (view, create, ...)
type Action struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// AclResource is a protectable noun ("projects", "budgets"). The set of
// actions valid for it is maintained through the acl_resource_actions
// junction table.
type AclResource struct {
	ID      int64    `json:"id"`
	Slug    string   `json:"slug"`
	Name    string   `json:"name"`
	Actions []Action `json:"actions,omitempty"`
}

// Permission pairs one resource with one action under a unique slug
type Permission struct {
	ID         int64  `json:"id"`
	ResourceID int64  `json:"resource_id"`
	ActionID   int64  `json:"action_id"`
	Slug       string `json:"slug"`
	Active     bool   `json:"active"`
}

// PermissionSlug builds the canonical slug for an action/resource pair,
// e.g. ("view", "projects") -> "view_projects".
func PermissionSlug(actionSlug, resourceSlug string) string {
	return actionSlug + "_" + resourceSlug
}

// RoleScope declares the granularity at which a role is meaningful
type RoleScope string

const (
	RoleScopeGlobal       RoleScope = "global"
	RoleScopeOrganization RoleScope = "organization"
	RoleScopeProject      RoleScope = "project"
)

// Role is a named bundle of permissions. OrganizationID, when set,
// restricts the role to a single tenant.
type Role struct {
	ID             int64        `json:"id"`
	Slug           string       `json:"slug"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Scope          RoleScope    `json:"scope"`
	OrganizationID *int64       `json:"organization_id,omitempty"`
	Permissions    []Permission `json:"permissions"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasPermissionSlug reports whether the role's materialized permission
// set contains the slug. Inactive permissions do not grant.
func (r *Role) HasPermissionSlug(slug string) bool {
	for _, p := range r.Permissions {
		if p.Slug == slug && p.Active {
			return true
		}
	}
	return false
}

// RoleAssignment links a user to a role. At most one of PortfolioID,
// ProgramID and ProjectID may be set; all-nil means the assignment is
// global. Deactivated assignments are kept for history but never grant.
type RoleAssignment struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	RoleID      int64      `json:"role_id"`
	PortfolioID *int64     `json:"portfolio_id,omitempty"`
	ProgramID   *int64     `json:"program_id,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	Active      bool       `json:"active"`
	GrantedBy   *int64     `json:"granted_by,omitempty"`
	GrantedAt   time.Time  `json:"granted_at"`
	Role        *Role      `json:"role,omitempty"`
}

// IsGlobal reports whether all three scope columns are nil
func (a *RoleAssignment) IsGlobal() bool {
	return a.PortfolioID == nil && a.ProgramID == nil && a.ProjectID == nil
}

// scopeColumnCount returns how many scope columns are set
func (a *RoleAssignment) scopeColumnCount() int {
	n := 0
	if a.PortfolioID != nil {
		n++
	}
	if a.ProgramID != nil {
		n++
	}
	if a.ProjectID != nil {
		n++
	}
	return n
}

// Validate enforces the structural invariants between an assignment and
// the role it references. role may be nil when only the column-count
// invariant can be checked.
func (a *RoleAssignment) Validate(role *Role) error {
	if a.scopeColumnCount() > 1 {
		return &ValidationError{
			Field:   "scope",
			Rule:    "single_scope_column",
			Message: "at most one of portfolio_id, program_id, project_id may be set",
		}
	}
	if role == nil {
		return nil
	}
	switch role.Scope {
	case RoleScopeGlobal:
		if !a.IsGlobal() {
			return &ValidationError{
				Field:   "scope",
				Rule:    "global_role_unscoped",
				Message: "a global role must be assigned without scope columns",
			}
		}
	case RoleScopeProject:
		if a.IsGlobal() {
			return &ValidationError{
				Field:   "project_id",
				Rule:    "project_role_scoped",
				Message: "a project role must be assigned to a portfolio, program or project",
			}
		}
	}
	return nil
}

// User carries the fields the permission engine needs. The full profile
// lives in the surrounding application.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
	IsSystemAdmin  bool   `json:"is_system_admin"`
}
