package rbac

import (
	"time"
)

// Project-participation roles used by the membership rules. These are
// domain roles on the project/organization join, not RBAC roles.
const (
	MembershipRoleMOA           = "moa"
	MembershipRoleMOE           = "moe"
	MembershipRoleSponsor       = "sponsor"
	MembershipRoleSubcontractor = "subcontractor"
)

// primaryAllowedRoles lists the membership roles that may carry the
// primary flag.
var primaryAllowedRoles = map[string]bool{
	MembershipRoleMOE:           true,
	MembershipRoleSubcontractor: true,
}

// wholeScopeRoles lists the roles that are implicitly whole-project and
// therefore must not carry a sub-scope description.
var wholeScopeRoles = map[string]bool{
	MembershipRoleSponsor: true,
	MembershipRoleMOA:     true,
}

// delegatedRoles lists the roles representing delegated work, whose
// date range must sit inside the parent project's bounds.
var delegatedRoles = map[string]bool{
	MembershipRoleSubcontractor: true,
}

// ProjectMembership links an organization to a project under a
// participation role. It is the join entity guarded by the write-time
// business rules below.
type ProjectMembership struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"project_id"`
	OrganizationID int64      `json:"organization_id"`
	Role           string     `json:"role"`
	IsPrimary      bool       `json:"is_primary"`
	Description    string     `json:"description,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
}

// exclusive reports whether the membership competes for an
// exclusive slot on the project: sponsor and moa always, moe only when
// flagged primary.
func (m *ProjectMembership) exclusive() bool {
	if m.Role == MembershipRoleSponsor || m.Role == MembershipRoleMOA {
		return true
	}
	return m.Role == MembershipRoleMOE && m.IsPrimary
}

// ValidateMembership enforces the membership business rules before the
// row is persisted. project supplies the bounding dates; existing holds
// the project's current memberships (only active rows are considered
// for the uniqueness rule, and a row with the candidate's ID is skipped
// so updates do not collide with themselves). Any violation rejects the
// write in full.
func ValidateMembership(m *ProjectMembership, project *Project, existing []ProjectMembership) error {
	if m.IsPrimary && !primaryAllowedRoles[m.Role] {
		return &ValidationError{
			Field:   "is_primary",
			Rule:    "primary_role_allowed",
			Message: "role " + m.Role + " cannot be flagged primary",
		}
	}

	if wholeScopeRoles[m.Role] && m.Description != "" {
		return &ValidationError{
			Field:   "description",
			Rule:    "whole_scope_role",
			Message: "role " + m.Role + " covers the whole project and cannot carry a scope description",
		}
	}

	if m.StartDate != nil && m.EndDate != nil && !m.StartDate.Before(*m.EndDate) {
		return &ValidationError{
			Field:   "start_date",
			Rule:    "date_order",
			Message: "start_date must precede end_date",
		}
	}

	if delegatedRoles[m.Role] && project != nil {
		if m.StartDate != nil && project.StartDate != nil && m.StartDate.Before(*project.StartDate) {
			return &ValidationError{
				Field:   "start_date",
				Rule:    "within_project_bounds",
				Message: "delegated work cannot start before the project does",
			}
		}
		if m.EndDate != nil && project.EndDate != nil && m.EndDate.After(*project.EndDate) {
			return &ValidationError{
				Field:   "end_date",
				Rule:    "within_project_bounds",
				Message: "delegated work cannot end after the project does",
			}
		}
	}

	if m.Active && m.exclusive() {
		for _, other := range existing {
			if other.ID == m.ID || !other.Active || other.ProjectID != m.ProjectID {
				continue
			}
			sameSlot := other.Role == m.Role
			if m.Role == MembershipRoleMOE {
				sameSlot = sameSlot && other.IsPrimary
			}
			if sameSlot {
				return &ValidationError{
					Field:   "role",
					Rule:    "exclusive_role_unique",
					Message: "project already has an active " + m.Role,
				}
			}
		}
	}

	return nil
}
