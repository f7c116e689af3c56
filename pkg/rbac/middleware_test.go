package rbac

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise/pkg/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func identityRequest(method, path string, userID int64) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Planwise-User-Id", strconv.FormatInt(userID, 10))
	return req
}

func TestRequirePermissionMiddleware(t *testing.T) {
	manager, _ := newTestManager(t)
	store := manager.Store()

	user := MustCreateUser(t, store, "alice", nil, false)
	role := MustCreateRole(t, store, "viewer", RoleScopeGlobal, "view_projects")
	MustAssign(t, store, &RoleAssignment{UserID: user.ID, RoleID: role.ID, Active: true})
	outsider := MustCreateUser(t, store, "mallory", nil, false)

	router := mux.NewRouter()
	router.Use(auth.TrustedHeaderMiddleware)
	router.Handle("/projects", manager.RequirePermission("view_projects")(okHandler())).Methods(http.MethodGet)

	// Anonymous: 401.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Holder: 200.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodGet, "/projects", user.ID))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Non-holder: 403.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodGet, "/projects", outsider.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireProjectPermissionMiddleware(t *testing.T) {
	manager, _ := newTestManager(t)
	store := manager.Store()

	user := MustCreateUser(t, store, "alice", nil, false)
	role := MustCreateRole(t, store, "editor", RoleScopeProject, "edit_projects")
	project := MustCreateProject(t, store, "rollout", nil, nil)
	MustAssign(t, store, &RoleAssignment{UserID: user.ID, RoleID: role.ID, ProjectID: &project.ID, Active: true})

	router := mux.NewRouter()
	router.Use(auth.TrustedHeaderMiddleware)
	router.Handle("/projects/{projectID}/edit",
		manager.RequireProjectPermission("edit_projects", "projectID")(okHandler())).Methods(http.MethodPost)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodPost, "/projects/1/edit", user.ID))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodPost, "/projects/2/edit", user.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleMiddleware(t *testing.T) {
	manager, _ := newTestManager(t)
	store := manager.Store()

	admin := MustCreateUser(t, store, "root", nil, true)
	user := MustCreateUser(t, store, "alice", nil, false)
	role := MustCreateRole(t, store, "auditor", RoleScopeGlobal, "view_projects")
	MustAssign(t, store, &RoleAssignment{UserID: user.ID, RoleID: role.ID, Active: true})

	router := mux.NewRouter()
	router.Use(auth.TrustedHeaderMiddleware)
	router.Handle("/audit", manager.RequireRole("auditor")(okHandler())).Methods(http.MethodGet)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodGet, "/audit", user.ID))
	assert.Equal(t, http.StatusOK, rec.Code)

	// System admins pass any role gate.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodGet, "/audit", admin.ID))
	assert.Equal(t, http.StatusOK, rec.Code)

	stranger := MustCreateUser(t, store, "bob", nil, false)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodGet, "/audit", stranger.ID))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
