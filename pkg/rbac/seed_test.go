package rbac

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedProvisionsCatalog(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, store))

	permissions, err := store.ListPermissions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, permissions)

	// Spot-check a few pairings from the matrix.
	for _, slug := range []string{"view_projects", "export_budgets", "approve_tasks", "view_reports"} {
		p, err := store.FindPermissionBySlug(ctx, slug)
		require.NoError(t, err)
		assert.NotNil(t, p, "expected seeded permission %q", slug)
	}

	// Pairings outside the matrix must not exist.
	p, err := store.FindPermissionBySlug(ctx, "approve_reports")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSeedIsIdempotent(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, store))
	first, err := store.ListPermissions(ctx)
	require.NoError(t, err)

	require.NoError(t, Seed(ctx, store))
	second, err := store.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))

	roles, err := store.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(BuiltinRoles()))
}

func TestSeedBuiltinRoleShapes(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, store))

	viewer, err := store.FindRoleBySlug(ctx, "viewer")
	require.NoError(t, err)
	require.NotNil(t, viewer)
	assert.Equal(t, RoleScopeGlobal, viewer.Scope)
	for _, p := range viewer.Permissions {
		assert.True(t, strings.HasPrefix(p.Slug, "view_"), "viewer should only hold view permissions, got %q", p.Slug)
	}

	orgAdmin, err := store.FindRoleBySlug(ctx, "org_admin")
	require.NoError(t, err)
	require.NotNil(t, orgAdmin)
	for _, p := range orgAdmin.Permissions {
		assert.False(t, strings.HasSuffix(p.Slug, "_organizations"),
			"org_admin must not manage tenants, got %q", p.Slug)
	}

	editor, err := store.FindRoleBySlug(ctx, "project_editor")
	require.NoError(t, err)
	require.NotNil(t, editor)
	for _, p := range editor.Permissions {
		assert.False(t, strings.HasPrefix(p.Slug, "delete_"), "project_editor is non-destructive, got %q", p.Slug)
		assert.False(t, strings.HasPrefix(p.Slug, "approve_"), "project_editor cannot approve, got %q", p.Slug)
	}
}

func TestBuildPermissionConfigurationErrors(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, store))

	_, err := BuildPermission(ctx, store, "spaceships", "view")
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "unknown resource", cerr.Reason)

	_, err = BuildPermission(ctx, store, "projects", "teleport")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "unknown action", cerr.Reason)

	// "approve" exists but reports do not allow it.
	_, err = BuildPermission(ctx, store, "reports", "approve")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "action not applicable to resource", cerr.Reason)

	// A valid pairing builds the canonical slug.
	p, err := BuildPermission(ctx, store, "projects", "view")
	require.NoError(t, err)
	assert.Equal(t, "view_projects", p.Slug)
	assert.True(t, p.Active)
}
