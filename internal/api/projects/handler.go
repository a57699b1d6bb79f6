// Package projects provides project lifecycle endpoints.
package projects

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/civicworks/volunteerhub/internal/api/middleware"
	"github.com/civicworks/volunteerhub/internal/domain"
	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

// Response helpers (local to avoid import cycle with api package)
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeForbidden        = "FORBIDDEN"
	errCodeConflict         = "CONFLICT"
	errCodeInvalidState     = "INVALID_STATE"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// jsonDomainError maps a lifecycle error to an HTTP response.
func jsonDomainError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		log.Printf("project handler error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	switch derr.Kind {
	case domain.KindPermissionDenied:
		jsonError(w, http.StatusForbidden, errCodeForbidden, derr.Message)
	case domain.KindNotFound:
		jsonError(w, http.StatusNotFound, errCodeNotFound, derr.Message)
	case domain.KindDuplicate, domain.KindLastOwner:
		jsonError(w, http.StatusConflict, errCodeConflict, derr.Message)
	case domain.KindInvalidState:
		jsonError(w, http.StatusUnprocessableEntity, errCodeInvalidState, derr.Message)
	default:
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

// Handler handles project endpoints.
type Handler struct {
	storage  storage.Storage
	projects *domain.ProjectService
}

// NewHandler creates a new project handler.
func NewHandler(store storage.Storage, projects *domain.ProjectService) *Handler {
	return &Handler{storage: store, projects: projects}
}

// actor loads the authenticated user, writing the error response on failure.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) *models.User {
	user, err := middleware.CurrentUser(r.Context(), h.storage)
	if err != nil {
		log.Printf("load actor error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
		return nil
	}
	return user
}

// Request types
type CreateRequest struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	ShortSummary   string `json:"short_summary"`
	Description    string `json:"description"`
}

type UpdateRequest struct {
	Name         string `json:"name,omitempty"`
	ShortSummary string `json:"short_summary,omitempty"`
	Description  string `json:"description,omitempty"`
}

type ScopeRequest struct {
	ProjectImpact  string `json:"project_impact"`
	ScopingProcess string `json:"scoping_process"`
	AvailableStaff string `json:"available_staff"`
	AvailableData  string `json:"available_data"`
	VersionNotes   string `json:"version_notes"`
}

type StaffRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// List returns projects. Public projects by default; ?drafts=1 lists the
// caller's own drafts, ?organization=ID the organization's projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		list []*models.Project
		err  error
	)
	switch {
	case r.URL.Query().Get("drafts") == "1":
		list, err = h.storage.Projects().ListDraftsOwnedBy(ctx, middleware.GetUserID(ctx))
	case r.URL.Query().Get("organization") != "":
		list, err = h.storage.Projects().ListByOrganization(ctx, r.URL.Query().Get("organization"))
	default:
		list, err = h.storage.Projects().ListPublic(ctx)
	}
	if err != nil {
		log.Printf("list projects error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, list)
}

// Create creates a new draft project with its default tasks and channels.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.OrganizationID == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "name and organization_id required")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	project := &models.Project{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		ShortSummary:   strings.TrimSpace(req.ShortSummary),
		Description:    req.Description,
	}

	created, err := h.projects.CreateProject(r.Context(), actor, project)
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	log.Printf("project created: %s (%s)", created.Name, created.ID)
	jsonCreated(w, created)
}

// GetByID returns a project. Non-public projects are only visible to
// project staff and admins.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "project id required")
		return
	}

	ctx := r.Context()
	project, err := h.projects.GetProject(ctx, id)
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	if !project.IsPublic() && middleware.GetRole(ctx) != models.RoleAdmin {
		role, err := h.storage.Projects().GetRoleByUser(ctx, id, middleware.GetUserID(ctx))
		if err != nil {
			log.Printf("get project error: check role: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		if role == nil {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
			return
		}
	}

	jsonOK(w, project)
}

// Update edits the project's descriptive information.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	ctx := r.Context()
	project, err := h.projects.GetProject(ctx, id)
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	if req.Name != "" {
		project.Name = strings.TrimSpace(req.Name)
	}
	if req.ShortSummary != "" {
		project.ShortSummary = strings.TrimSpace(req.ShortSummary)
	}
	if req.Description != "" {
		project.Description = req.Description
	}

	if err := h.projects.UpdateInformation(ctx, actor, project); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonOK(w, project)
}

// Publish moves a draft project to the public accepting-volunteers state.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	project, err := h.projects.Publish(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	log.Printf("project published: %s (%s)", project.Name, project.ID)
	jsonOK(w, project)
}

// Finish completes a project that passed final QA.
func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	project, err := h.projects.Finish(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	log.Printf("project finished: %s (%s)", project.Name, project.ID)
	jsonOK(w, project)
}

// UpdateScope saves a new scope version.
func (h *Handler) UpdateScope(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ScopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	scope := &models.ProjectScope{
		ProjectID:      id,
		ProjectImpact:  req.ProjectImpact,
		ScopingProcess: req.ScopingProcess,
		AvailableStaff: req.AvailableStaff,
		AvailableData:  req.AvailableData,
		VersionNotes:   req.VersionNotes,
	}

	if err := h.projects.UpdateScope(r.Context(), actor, id, scope); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonOK(w, scope)
}

// ListScopes returns scope versions, newest first.
func (h *Handler) ListScopes(w http.ResponseWriter, r *http.Request) {
	scopes, err := h.storage.Projects().ListScopes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("list scopes error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, scopes)
}

// ListStaff returns the project's staff roles.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	roles, err := h.storage.Projects().ListRoles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("list staff error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, roles)
}

// AddStaff adds a staff role to the project.
func (h *Handler) AddStaff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "user_id required")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	role := &models.ProjectRole{
		ProjectID: id,
		UserID:    req.UserID,
		Role:      models.ProjRole(req.Role),
	}
	if role.Role != models.ProjRoleOwner {
		role.Role = models.ProjRoleStaff
	}

	if err := h.projects.AddStaffRole(r.Context(), actor, role); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonCreated(w, role)
}

// UpdateStaff changes a staff role (owner/staff).
func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	roleID := chi.URLParam(r, "roleID")
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	role := &models.ProjectRole{
		ID:        roleID,
		ProjectID: id,
		UserID:    req.UserID,
		Role:      models.ProjRole(req.Role),
	}
	if role.Role != models.ProjRoleOwner {
		role.Role = models.ProjRoleStaff
	}

	if err := h.projects.SaveStaffRole(r.Context(), actor, role); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonOK(w, role)
}

// DeleteStaff removes a staff role from the project.
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	err := h.projects.DeleteStaffRole(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "roleID"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}

// ToggleFollow follows or unfollows the project for the caller.
func (h *Handler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	following, err := h.projects.ToggleFollower(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonOK(w, map[string]bool{"following": following})
}

// ListLogs returns the project's change log, newest first.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.storage.Logs().ListByProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("list project logs error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, logs)
}

// ListChannels returns the project's discussion channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.storage.Projects().ListChannels(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("list channels error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, channels)
}
