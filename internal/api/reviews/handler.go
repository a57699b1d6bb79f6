// Package reviews provides task QA review endpoints.
package reviews

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

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func jsonDomainError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		log.Printf("review handler error: %v", err)
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

// Handler handles review endpoints.
type Handler struct {
	storage  storage.Storage
	workflow *domain.WorkflowService
}

// NewHandler creates a new review handler.
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

// ResolveRequest carries reviewer comments for accept/reject.
type ResolveRequest struct {
	Comments string `json:"comments"`
}

// ListPending returns unresolved reviews for the project, oldest first.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.storage.Reviews().ListPendingByProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("list pending reviews error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, reviews)
}

// ListByTask returns all reviews for a task.
func (h *Handler) ListByTask(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.storage.Reviews().ListByTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		log.Printf("list task reviews error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, reviews)
}

// Accept accepts a review, completing the task.
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

	if err := h.workflow.AcceptReview(r.Context(), actor, chi.URLParam(r, "reviewID"), req.Comments); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}

// Reject rejects a review, returning the task to its volunteers.
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

	if err := h.workflow.RejectReview(r.Context(), actor, chi.URLParam(r, "reviewID"), req.Comments); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}
