package rbac

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/planwise/planwise/pkg/audit"
	"github.com/planwise/planwise/pkg/auth"
	"github.com/planwise/planwise/pkg/httputil"
	"github.com/planwise/planwise/pkg/observability"
)

// Handlers exposes the permission engine over HTTP
type Handlers struct {
	manager *Manager
	logger  *observability.Logger
}

// NewHandlers creates the HTTP layer over the manager
func NewHandlers(manager *Manager, logger *observability.Logger) *Handlers {
	return &Handlers{manager: manager, logger: logger}
}

// Register mounts all routes on the router
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/rbac/check", h.Check).Methods(http.MethodPost)

	r.HandleFunc("/rbac/roles", h.ListRoles).Methods(http.MethodGet)
	r.HandleFunc("/rbac/roles", h.CreateRole).Methods(http.MethodPost)
	r.HandleFunc("/rbac/roles/{id}", h.GetRole).Methods(http.MethodGet)
	r.HandleFunc("/rbac/roles/{id}", h.DeleteRole).Methods(http.MethodDelete)
	r.HandleFunc("/rbac/roles/{id}/permissions", h.SyncRolePermissions).Methods(http.MethodPut)

	r.HandleFunc("/rbac/assignments", h.AssignRole).Methods(http.MethodPost)
	r.HandleFunc("/rbac/assignments/{id}", h.RevokeAssignment).Methods(http.MethodDelete)
	r.HandleFunc("/rbac/assignments/{id}/active", h.SetAssignmentActive).Methods(http.MethodPut)

	r.HandleFunc("/rbac/users/{id}/permissions", h.UserPermissions).Methods(http.MethodGet)
	r.HandleFunc("/rbac/users/{id}/cache", h.RebuildCache).Methods(http.MethodPost)
	r.HandleFunc("/rbac/users/{id}/cache", h.ClearCache).Methods(http.MethodDelete)

	r.HandleFunc("/rbac/projects/{id}/memberships", h.ListMemberships).Methods(http.MethodGet)
	r.HandleFunc("/rbac/projects/{id}/memberships", h.CreateMembership).Methods(http.MethodPost)
}

type checkRequest struct {
	UserID         int64  `json:"user_id"`
	Permission     string `json:"permission"`
	Scope          Scope  `json:"scope"`
	CheckHierarchy bool   `json:"check_hierarchy"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// Check answers a cache-aware permission question
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Scope.Kind == "" {
		req.Scope = GlobalScope()
	}

	user, err := h.manager.Store().GetUser(r.Context(), req.UserID)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}

	allowed, err := h.manager.HasPermissionInContext(r.Context(), user, req.Permission, req.Scope, req.CheckHierarchy)
	if err != nil {
		if errors.Is(err, ErrInvalidScope) {
			httputil.WriteError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.WithError(err).Error("permission check failed", "user_id", req.UserID)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "permission check failed")
		return
	}
	httputil.WriteSuccess(w, checkResponse{Allowed: allowed})
}

// ListRoles returns every role with its permission set
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.manager.Store().ListRoles(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list roles")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	httputil.WriteSuccess(w, roles)
}

type createRoleRequest struct {
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Scope          RoleScope `json:"scope"`
	OrganizationID *int64    `json:"organization_id"`
	Permissions    []string  `json:"permissions"`
}

// CreateRole creates a role from permission slugs
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Slug == "" || req.Name == "" {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "slug and name are required")
		return
	}
	if req.Scope == "" {
		req.Scope = RoleScopeProject
	}

	refs := make([]interface{}, len(req.Permissions))
	for i, slug := range req.Permissions {
		refs[i] = slug
	}
	permissions, err := h.manager.Store().ResolvePermissionRefs(r.Context(), refs)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	role := &Role{
		Slug:           req.Slug,
		Name:           req.Name,
		Description:    req.Description,
		Scope:          req.Scope,
		OrganizationID: req.OrganizationID,
		Permissions:    permissions,
	}
	if err := h.manager.Store().CreateRole(r.Context(), role); err != nil {
		h.logger.WithError(err).Error("failed to create role", "slug", req.Slug)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to create role")
		return
	}

	event := audit.NewEvent(audit.EventTypeRoleCreate, audit.EventStatusSuccess)
	if identity := auth.FromRequest(r); identity != nil {
		event.ActorID = &identity.UserID
	}
	event.ResourceType = "role"
	event.ResourceID = fmt.Sprintf("%d", role.ID)
	h.manager.auditor.Log(r.Context(), event)

	httputil.WriteCreated(w, role)
}

// GetRole returns one role by id
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	role, err := h.manager.Store().GetRole(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole removes a role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.manager.Store().DeleteRole(r.Context(), id); err != nil {
		h.logger.WithError(err).Error("failed to delete role", "role_id", id)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to delete role")
		return
	}

	event := audit.NewEvent(audit.EventTypeRoleDelete, audit.EventStatusSuccess)
	if identity := auth.FromRequest(r); identity != nil {
		event.ActorID = &identity.UserID
	}
	event.ResourceType = "role"
	event.ResourceID = fmt.Sprintf("%d", id)
	h.manager.auditor.Log(r.Context(), event)

	httputil.WriteNoContent(w)
}

type syncPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SyncRolePermissions replaces a role's permission set
func (h *Handlers) SyncRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	var req syncPermissionsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	role, err := h.manager.Store().GetRole(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}

	refs := make([]interface{}, len(req.Permissions))
	for i, slug := range req.Permissions {
		refs[i] = slug
	}
	if err := h.manager.Store().SyncPermissions(r.Context(), role, refs); err != nil {
		h.logger.WithError(err).Error("failed to sync role permissions", "role_id", id)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to sync role permissions")
		return
	}

	role, err = h.manager.Store().GetRole(r.Context(), id)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to reload role")
		return
	}
	httputil.WriteSuccess(w, role)
}

type assignRoleRequest struct {
	UserID      int64  `json:"user_id"`
	RoleID      int64  `json:"role_id"`
	PortfolioID *int64 `json:"portfolio_id"`
	ProgramID   *int64 `json:"program_id"`
	ProjectID   *int64 `json:"project_id"`
}

// AssignRole grants a role to a user, optionally scoped
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	assignment := &RoleAssignment{
		UserID:      req.UserID,
		RoleID:      req.RoleID,
		PortfolioID: req.PortfolioID,
		ProgramID:   req.ProgramID,
		ProjectID:   req.ProjectID,
		Active:      true,
	}
	if identity := auth.FromRequest(r); identity != nil {
		assignment.GrantedBy = &identity.UserID
	}

	if err := h.manager.AssignRole(r.Context(), assignment); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, verr)
			return
		}
		h.logger.WithError(err).Error("failed to assign role", "user_id", req.UserID, "role_id", req.RoleID)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to assign role")
		return
	}
	httputil.WriteCreated(w, assignment)
}

// RevokeAssignment deletes a role assignment
func (h *Handlers) RevokeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.manager.RevokeAssignment(r.Context(), id); err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	httputil.WriteNoContent(w)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetAssignmentActive toggles an assignment
func (h *Handlers) SetAssignmentActive(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	var req setActiveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.manager.SetAssignmentActive(r.Context(), id, req.Active); err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	httputil.WriteNoContent(w)
}

// UserPermissions returns the union of a user's permissions across all
// scopes.
func (h *Handlers) UserPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	user, err := h.manager.Store().GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	permissions, err := h.manager.Checker().AllPermissions(r.Context(), user)
	if err != nil {
		h.logger.WithError(err).Error("failed to load user permissions", "user_id", id)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to load permissions")
		return
	}
	if permissions == nil {
		permissions = []Permission{}
	}
	httputil.WriteSuccess(w, permissions)
}

// RebuildCache recomputes a user's permission snapshot
func (h *Handlers) RebuildCache(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	user, err := h.manager.Store().GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	if err := h.manager.CachePermissions(r.Context(), user); err != nil {
		h.logger.WithError(err).Error("failed to rebuild permission snapshot", "user_id", id)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to rebuild cache")
		return
	}
	httputil.WriteNoContent(w)
}

// ClearCache drops a user's permission snapshot
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.manager.ClearPermissionsCache(r.Context(), id); err != nil {
		h.logger.WithError(err).Error("failed to clear permission snapshot", "user_id", id)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	httputil.WriteNoContent(w)
}

// ListMemberships returns a project's organization memberships
func (h *Handlers) ListMemberships(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	memberships, err := h.manager.Store().ProjectMemberships(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("failed to list project memberships", "project_id", id)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list memberships")
		return
	}
	if memberships == nil {
		memberships = []ProjectMembership{}
	}
	httputil.WriteSuccess(w, memberships)
}

type createMembershipRequest struct {
	OrganizationID int64      `json:"organization_id"`
	Role           string     `json:"role"`
	IsPrimary      bool       `json:"is_primary"`
	Description    string     `json:"description"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
}

// CreateMembership adds an organization to a project's team
func (h *Handlers) CreateMembership(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	var req createMembershipRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	m := &ProjectMembership{
		ProjectID:      projectID,
		OrganizationID: req.OrganizationID,
		Role:           req.Role,
		IsPrimary:      req.IsPrimary,
		Description:    req.Description,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Active:         true,
	}
	if err := h.manager.Store().CreateProjectMembership(r.Context(), m); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, verr)
			return
		}
		h.logger.WithError(err).Error("failed to create project membership", "project_id", projectID)
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to create membership")
		return
	}

	event := audit.NewEvent(audit.EventTypeMembershipChange, audit.EventStatusSuccess)
	if identity := auth.FromRequest(r); identity != nil {
		event.ActorID = &identity.UserID
	}
	event.ResourceType = "project"
	event.ResourceID = fmt.Sprintf("%d", projectID)
	h.manager.auditor.Log(r.Context(), event)

	httputil.WriteCreated(w, m)
}
