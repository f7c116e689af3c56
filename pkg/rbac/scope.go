package rbac

import (
	"fmt"
)

// ScopeKind identifies the level a permission check is scoped to
type ScopeKind string

const (
	ScopeKindGlobal       ScopeKind = "global"
	ScopeKindOrganization ScopeKind = "organization"
	ScopeKindPortfolio    ScopeKind = "portfolio"
	ScopeKindProgram      ScopeKind = "program"
	ScopeKindProject      ScopeKind = "project"
)

// Scope is the tagged variant passed to permission checks. A zero Scope
// is not valid; use the constructors.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   int64     `json:"id,omitempty"`
}

// GlobalScope returns the scope used for checks without a scope object
func GlobalScope() Scope { return Scope{Kind: ScopeKindGlobal} }

// PortfolioScope scopes a check to one portfolio
func PortfolioScope(id int64) Scope { return Scope{Kind: ScopeKindPortfolio, ID: id} }

// ProgramScope scopes a check to one program
func ProgramScope(id int64) Scope { return Scope{Kind: ScopeKindProgram, ID: id} }

// ProjectScope scopes a check to one project
func ProjectScope(id int64) Scope { return Scope{Kind: ScopeKindProject, ID: id} }

// OrganizationScope scopes a cache lookup to one tenant
func OrganizationScope(id int64) Scope { return Scope{Kind: ScopeKindOrganization, ID: id} }

// valid reports whether the scope is well formed
func (s Scope) valid() bool {
	switch s.Kind {
	case ScopeKindGlobal:
		return true
	case ScopeKindOrganization, ScopeKindPortfolio, ScopeKindProgram, ScopeKindProject:
		return s.ID > 0
	default:
		return false
	}
}

// ContextKey returns the cache bucket name for the scope, e.g.
// "global", "project_5", "organization_12".
func (s Scope) ContextKey() string {
	if s.Kind == ScopeKindGlobal {
		return "global"
	}
	return fmt.Sprintf("%s_%d", s.Kind, s.ID)
}

// RelevantAssignments filters a user's role assignments down to those
// that apply under the requested scope. Global assignments (all scope
// columns nil) are relevant under every scope. A scoped query
// additionally matches assignments whose corresponding column equals
// the scope id. Deactivated assignments never match. Order of the
// result is not significant; an empty result is a valid outcome.
func RelevantAssignments(assignments []RoleAssignment, scope Scope) ([]RoleAssignment, error) {
	if !scope.valid() {
		return nil, fmt.Errorf("%w: kind %q id %d", ErrInvalidScope, scope.Kind, scope.ID)
	}

	var relevant []RoleAssignment
	for _, a := range assignments {
		if !a.Active {
			continue
		}
		if a.IsGlobal() {
			relevant = append(relevant, a)
			continue
		}
		switch scope.Kind {
		case ScopeKindProject:
			if a.ProjectID != nil && *a.ProjectID == scope.ID {
				relevant = append(relevant, a)
			}
		case ScopeKindProgram:
			if a.ProgramID != nil && *a.ProgramID == scope.ID {
				relevant = append(relevant, a)
			}
		case ScopeKindPortfolio:
			if a.PortfolioID != nil && *a.PortfolioID == scope.ID {
				relevant = append(relevant, a)
			}
		}
		// ScopeKindGlobal and ScopeKindOrganization match global
		// assignments only; assignments carry no organization column.
	}
	return relevant, nil
}
