package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }

func boundedProject() *Project {
	return &Project{
		ID:        1,
		Name:      "rollout",
		StartDate: timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   timePtr(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)),
	}
}

func assertRule(t *testing.T, err error, rule string) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, rule, verr.Rule)
}

func TestValidateMembershipPrimaryRoleAllowed(t *testing.T) {
	m := &ProjectMembership{ProjectID: 1, OrganizationID: 2, Role: MembershipRoleSponsor, IsPrimary: true, Active: true}
	assertRule(t, ValidateMembership(m, boundedProject(), nil), "primary_role_allowed")

	for _, role := range []string{MembershipRoleMOE, MembershipRoleSubcontractor} {
		m := &ProjectMembership{ProjectID: 1, OrganizationID: 2, Role: role, IsPrimary: true, Active: true}
		assert.NoError(t, ValidateMembership(m, boundedProject(), nil), "role %s may be primary", role)
	}
}

func TestValidateMembershipWholeScopeRoles(t *testing.T) {
	for _, role := range []string{MembershipRoleSponsor, MembershipRoleMOA} {
		m := &ProjectMembership{ProjectID: 1, OrganizationID: 2, Role: role, Description: "north wing only", Active: true}
		assertRule(t, ValidateMembership(m, boundedProject(), nil), "whole_scope_role")
	}

	// Other roles may scope themselves down.
	m := &ProjectMembership{ProjectID: 1, OrganizationID: 2, Role: MembershipRoleSubcontractor, Description: "north wing only", Active: true}
	assert.NoError(t, ValidateMembership(m, boundedProject(), nil))
}

func TestValidateMembershipDateOrder(t *testing.T) {
	m := &ProjectMembership{
		ProjectID: 1, OrganizationID: 2, Role: MembershipRoleMOE, Active: true,
		StartDate: timePtr(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   timePtr(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
	assertRule(t, ValidateMembership(m, boundedProject(), nil), "date_order")
}

func TestValidateMembershipDelegatedWithinProjectBounds(t *testing.T) {
	project := boundedProject()

	early := &ProjectMembership{
		ProjectID: 1, OrganizationID: 2, Role: MembershipRoleSubcontractor, Active: true,
		StartDate: timePtr(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   timePtr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
	assertRule(t, ValidateMembership(early, project, nil), "within_project_bounds")

	late := &ProjectMembership{
		ProjectID: 1, OrganizationID: 2, Role: MembershipRoleSubcontractor, Active: true,
		StartDate: timePtr(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   timePtr(time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)),
	}
	assertRule(t, ValidateMembership(late, project, nil), "within_project_bounds")

	// Non-delegated roles are not bound by the project dates.
	moe := &ProjectMembership{
		ProjectID: 1, OrganizationID: 2, Role: MembershipRoleMOE, Active: true,
		StartDate: timePtr(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   timePtr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
	assert.NoError(t, ValidateMembership(moe, project, nil))
}

func TestValidateMembershipExclusiveRoleUnique(t *testing.T) {
	existing := []ProjectMembership{
		{ID: 1, ProjectID: 1, OrganizationID: 3, Role: MembershipRoleSponsor, Active: true},
	}

	dup := &ProjectMembership{ProjectID: 1, OrganizationID: 2, Role: MembershipRoleSponsor, Active: true}
	assertRule(t, ValidateMembership(dup, boundedProject(), existing), "exclusive_role_unique")

	// Inactive rows do not hold the slot.
	existing[0].Active = false
	assert.NoError(t, ValidateMembership(dup, boundedProject(), existing))

	// Rows on other projects do not collide.
	existing[0].Active = true
	existing[0].ProjectID = 99
	assert.NoError(t, ValidateMembership(dup, boundedProject(), existing))
}

func TestValidateMembershipPrimaryMOEUnique(t *testing.T) {
	existing := []ProjectMembership{
		{ID: 1, ProjectID: 1, OrganizationID: 3, Role: MembershipRoleMOE, IsPrimary: true, Active: true},
	}

	dup := &ProjectMembership{ProjectID: 1, OrganizationID: 2, Role: MembershipRoleMOE, IsPrimary: true, Active: true}
	assertRule(t, ValidateMembership(dup, boundedProject(), existing), "exclusive_role_unique")

	// A secondary moe alongside the primary is fine.
	secondary := &ProjectMembership{ProjectID: 1, OrganizationID: 2, Role: MembershipRoleMOE, Active: true}
	assert.NoError(t, ValidateMembership(secondary, boundedProject(), existing))
}

func TestValidateMembershipSelfUpdateDoesNotCollide(t *testing.T) {
	existing := []ProjectMembership{
		{ID: 7, ProjectID: 1, OrganizationID: 3, Role: MembershipRoleSponsor, Active: true},
	}
	update := &ProjectMembership{ID: 7, ProjectID: 1, OrganizationID: 3, Role: MembershipRoleSponsor, Active: true}
	assert.NoError(t, ValidateMembership(update, boundedProject(), existing))
}
