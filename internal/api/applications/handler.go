// Package applications provides volunteer application and assignment
// endpoints.
package applications

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

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
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeNotFound      = "NOT_FOUND"
	errCodeForbidden     = "FORBIDDEN"
	errCodeConflict      = "CONFLICT"
	errCodeInvalidState  = "INVALID_STATE"
	errCodeInternalError = "INTERNAL_ERROR"
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

func jsonDomainError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		log.Printf("application handler error: %v", err)
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

// Handler handles application endpoints.
type Handler struct {
	storage  storage.Storage
	workflow *domain.WorkflowService
}

// NewHandler creates a new application handler.
func NewHandler(store storage.Storage, workflow *domain.WorkflowService) *Handler {
	return &Handler{storage: store, workflow: workflow}
}

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
type ApplyRequest struct {
	Comments string `json:"comments"`
}

type ResolveRequest struct {
	Comments string `json:"comments"`
}

type VolunteerRoleRequest struct {
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`
}

// Apply creates a volunteer application for a task.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	app, err := h.workflow.ApplyToVolunteer(r.Context(), actor, chi.URLParam(r, "taskID"), req.Comments)
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	log.Printf("application submitted: task %s user %s", app.TaskID, actor.ID)
	jsonCreated(w, app)
}

// ListByProject returns all applications across the project's tasks.
func (h *Handler) ListByProject(w http.ResponseWriter, r *http.Request) {
	apps, err := h.storage.Applications().ListByProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("list applications error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, apps)
}

// ListByTask returns applications for one task.
func (h *Handler) ListByTask(w http.ResponseWriter, r *http.Request) {
	apps, err := h.storage.Applications().ListByTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		log.Printf("list task applications error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, apps)
}

// Accept accepts an application, assigning the volunteer to the task.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	if err := h.workflow.AcceptApplication(r.Context(), actor, chi.URLParam(r, "appID"), req.Comments); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}

// Reject rejects an application.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	if err := h.workflow.RejectApplication(r.Context(), actor, chi.URLParam(r, "appID"), req.Comments); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}

// Cancel removes the caller's own volunteer role from the task.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	if err := h.workflow.CancelVolunteering(r.Context(), actor, chi.URLParam(r, "taskID")); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}

// UpdateVolunteerRole reassigns a volunteer role to another task of the
// project.
func (h *Handler) UpdateVolunteerRole(w http.ResponseWriter, r *http.Request) {
	var req VolunteerRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	role := &models.ProjectTaskRole{
		ID:     chi.URLParam(r, "roleID"),
		TaskID: req.TaskID,
		UserID: req.UserID,
		Role:   models.TaskRoleVolunteer,
	}

	if err := h.workflow.SaveVolunteerRole(r.Context(), actor, chi.URLParam(r, "id"), role); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonOK(w, role)
}

// DeleteVolunteerRole removes a volunteer from a task.
func (h *Handler) DeleteVolunteerRole(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	err := h.workflow.DeleteVolunteerRole(r.Context(), actor,
		chi.URLParam(r, "id"), chi.URLParam(r, "taskID"), chi.URLParam(r, "roleID"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}
