package rbac

import (
	"errors"
	"testing"
)

func int64Ptr(v int64) *int64 { return &v }

func TestContextKey(t *testing.T) {
	cases := []struct {
		scope Scope
		want  string
	}{
		{GlobalScope(), "global"},
		{ProjectScope(5), "project_5"},
		{ProgramScope(3), "program_3"},
		{PortfolioScope(7), "portfolio_7"},
		{OrganizationScope(12), "organization_12"},
	}
	for _, tc := range cases {
		if got := tc.scope.ContextKey(); got != tc.want {
			t.Errorf("ContextKey(%v) = %q, want %q", tc.scope, got, tc.want)
		}
	}
}

func TestRelevantAssignmentsGlobalAppliesEverywhere(t *testing.T) {
	assignments := []RoleAssignment{
		{ID: 1, Active: true}, // global
	}

	for _, scope := range []Scope{GlobalScope(), ProjectScope(5), ProgramScope(2), PortfolioScope(9)} {
		relevant, err := RelevantAssignments(assignments, scope)
		if err != nil {
			t.Fatalf("RelevantAssignments(%v): %v", scope, err)
		}
		if len(relevant) != 1 {
			t.Errorf("global assignment should be relevant under %v, got %d matches", scope, len(relevant))
		}
	}
}

func TestRelevantAssignmentsScopedMatching(t *testing.T) {
	assignments := []RoleAssignment{
		{ID: 1, ProjectID: int64Ptr(5), Active: true},
		{ID: 2, ProjectID: int64Ptr(6), Active: true},
		{ID: 3, ProgramID: int64Ptr(2), Active: true},
	}

	relevant, err := RelevantAssignments(assignments, ProjectScope(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(relevant) != 1 || relevant[0].ID != 1 {
		t.Errorf("project 5 query should match only assignment 1, got %+v", relevant)
	}

	relevant, err = RelevantAssignments(assignments, ProjectScope(6))
	if err != nil {
		t.Fatal(err)
	}
	if len(relevant) != 1 || relevant[0].ID != 2 {
		t.Errorf("project 6 query should match only assignment 2, got %+v", relevant)
	}

	// A program-scoped assignment never matches a project query.
	relevant, err = RelevantAssignments(assignments, ProgramScope(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(relevant) != 1 || relevant[0].ID != 3 {
		t.Errorf("program 2 query should match only assignment 3, got %+v", relevant)
	}
}

func TestRelevantAssignmentsSkipsInactive(t *testing.T) {
	assignments := []RoleAssignment{
		{ID: 1, Active: false},
		{ID: 2, ProjectID: int64Ptr(5), Active: false},
	}
	relevant, err := RelevantAssignments(assignments, ProjectScope(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(relevant) != 0 {
		t.Errorf("inactive assignments must never match, got %+v", relevant)
	}
}

func TestRelevantAssignmentsInvalidScope(t *testing.T) {
	_, err := RelevantAssignments(nil, Scope{Kind: "galaxy", ID: 1})
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
	_, err = RelevantAssignments(nil, Scope{Kind: ScopeKindProject})
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("scoped kind without id should be invalid, got %v", err)
	}
}

func TestAssignmentValidate(t *testing.T) {
	// More than one scope column is rejected regardless of role.
	a := &RoleAssignment{ProjectID: int64Ptr(1), ProgramID: int64Ptr(2)}
	if err := a.Validate(nil); err == nil {
		t.Error("two scope columns should be rejected")
	}

	globalRole := &Role{Scope: RoleScopeGlobal}
	if err := (&RoleAssignment{ProjectID: int64Ptr(1)}).Validate(globalRole); err == nil {
		t.Error("a global role must not accept a project scope")
	}
	if err := (&RoleAssignment{}).Validate(globalRole); err != nil {
		t.Errorf("unscoped assignment of a global role should pass: %v", err)
	}

	projectRole := &Role{Scope: RoleScopeProject}
	if err := (&RoleAssignment{}).Validate(projectRole); err == nil {
		t.Error("a project role must not be assigned globally")
	}
	if err := (&RoleAssignment{ProjectID: int64Ptr(1)}).Validate(projectRole); err != nil {
		t.Errorf("scoped assignment of a project role should pass: %v", err)
	}
}
