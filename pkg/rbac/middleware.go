package rbac

import (
	"net/http"

	"github.com/planwise/planwise/pkg/auth"
	"github.com/planwise/planwise/pkg/httputil"
)

// RequirePermission guards a route behind a permission slug checked at
// global scope. Anonymous requests get 401, denied users get 403.
func (m *Manager) RequirePermission(slug string) func(http.Handler) http.Handler {
	return m.requireScoped(slug, func(*http.Request) (Scope, error) {
		return GlobalScope(), nil
	})
}

// RequireProjectPermission guards a route behind a permission slug
// checked against the project named by the path variable. The wider
// buckets are consulted too, so a global or tenant grant passes.
func (m *Manager) RequireProjectPermission(slug, pathVar string) func(http.Handler) http.Handler {
	return m.requireScoped(slug, func(r *http.Request) (Scope, error) {
		projectID, err := httputil.PathInt64(r, pathVar)
		if err != nil {
			return Scope{}, err
		}
		return ProjectScope(projectID), nil
	})
}

func (m *Manager) requireScoped(slug string, scopeOf func(*http.Request) (Scope, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.FromRequest(r)
			if identity == nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}
			scope, err := scopeOf(r)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err)
				return
			}
			user, err := m.store.GetUser(r.Context(), identity.UserID)
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "unknown user")
				return
			}
			allowed, err := m.HasPermissionInContext(r.Context(), user, slug, scope, true)
			if err != nil {
				m.logger.WithError(err).Error("permission middleware check failed", "user_id", user.ID, "permission", slug)
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "permission check failed")
				return
			}
			if !allowed {
				httputil.WriteErrorMessage(w, http.StatusForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole guards a route behind role possession regardless of
// scope. Used for coarse admin surfaces where the exact permission is
// beside the point.
func (m *Manager) RequireRole(roleSlug string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.FromRequest(r)
			if identity == nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}
			user, err := m.store.GetUser(r.Context(), identity.UserID)
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "unknown user")
				return
			}
			if user.IsSystemAdmin {
				next.ServeHTTP(w, r)
				return
			}
			has, err := m.checker.HasRole(r.Context(), user, roleSlug)
			if err != nil {
				m.logger.WithError(err).Error("role middleware check failed", "user_id", user.ID, "role", roleSlug)
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "role check failed")
				return
			}
			if !has {
				httputil.WriteErrorMessage(w, http.StatusForbidden, "role required: "+roleSlug)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
