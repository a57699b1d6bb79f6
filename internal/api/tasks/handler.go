// Package tasks provides project task endpoints.
package tasks

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

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

func jsonDomainError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		log.Printf("task handler error: %v", err)
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

// Handler handles task endpoints.
type Handler struct {
	storage storage.Storage
	tasks   *domain.TaskService
}

// NewHandler creates a new task handler.
func NewHandler(store storage.Storage, tasks *domain.TaskService) *Handler {
	return &Handler{storage: store, tasks: tasks}
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
type SaveRequest struct {
	Name                   string  `json:"name,omitempty"`
	ShortSummary           string  `json:"short_summary,omitempty"`
	Description            string  `json:"description,omitempty"`
	OnboardingInstructions string  `json:"onboarding_instructions,omitempty"`
	Stage                  string  `json:"stage,omitempty"`
	PercentageComplete     float64 `json:"percentage_complete,omitempty"`
	EstimatedEffortHours   float64 `json:"estimated_effort_hours,omitempty"`
	EstimatedStartDate     string  `json:"estimated_start_date,omitempty"`
	EstimatedEndDate       string  `json:"estimated_end_date,omitempty"`
}

type CompleteRequest struct {
	EffortHours float64 `json:"effort_hours"`
	Comments    string  `json:"comments"`
}

type RequirementRequest struct {
	Skill      string `json:"skill"`
	Level      int    `json:"level"`
	Importance int    `json:"importance"`
}

// List returns the project's tasks.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.storage.Tasks().ListByProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("list tasks error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, list)
}

// Get returns a single task.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.GetTask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskID"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}
	jsonOK(w, task)
}

// Create adds a new default domain-work task to the project.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	task, err := h.tasks.CreateDefaultTask(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	log.Printf("task created: %s (%s)", task.Name, task.ID)
	jsonCreated(w, task)
}

// Save updates a task's fields, running the derived project transitions
// when the stage changes.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	ctx := r.Context()
	task, err := h.tasks.GetTask(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "taskID"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	if req.Name != "" {
		task.Name = strings.TrimSpace(req.Name)
	}
	if req.ShortSummary != "" {
		task.ShortSummary = strings.TrimSpace(req.ShortSummary)
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.OnboardingInstructions != "" {
		task.OnboardingInstructions = req.OnboardingInstructions
	}
	if req.Stage != "" {
		task.Stage = models.TaskStatus(req.Stage)
	}
	if req.PercentageComplete > 0 {
		task.PercentageComplete = req.PercentageComplete
	}
	if req.EstimatedEffortHours > 0 {
		task.EstimatedEffortHours = req.EstimatedEffortHours
	}
	if t := parseTime(req.EstimatedStartDate); t != nil {
		task.EstimatedStartDate = t
	}
	if t := parseTime(req.EstimatedEndDate); t != nil {
		task.EstimatedEndDate = t
	}

	if err := h.tasks.SaveTask(ctx, actor, task); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonOK(w, task)
}

// Delete removes a task that has no volunteers.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	err := h.tasks.DeleteTask(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "taskID"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}

// ToggleAccepting flips whether the task accepts volunteer applications.
func (h *Handler) ToggleAccepting(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	task, err := h.tasks.ToggleAcceptingVolunteers(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "taskID"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonOK(w, task)
}

// Complete is called by a volunteer to submit the task for QA review.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.EffortHours <= 0 {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "effort_hours must be positive")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	review, err := h.tasks.MarkCompletedByVolunteer(r.Context(), actor,
		chi.URLParam(r, "id"), chi.URLParam(r, "taskID"), req.EffortHours, req.Comments)
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	log.Printf("task submitted for review: task %s review %s", chi.URLParam(r, "taskID"), review.ID)
	jsonCreated(w, review)
}

// ListRequirements returns the task's skill requirements.
func (h *Handler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.storage.Tasks().ListRequirements(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		log.Printf("list requirements error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, reqs)
}

// AddRequirement adds a skill requirement to the task.
func (h *Handler) AddRequirement(w http.ResponseWriter, r *http.Request) {
	var req RequirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Skill) == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "skill required")
		return
	}

	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	requirement := &models.ProjectTaskRequirement{
		TaskID:     chi.URLParam(r, "taskID"),
		Skill:      strings.TrimSpace(req.Skill),
		Level:      req.Level,
		Importance: req.Importance,
	}

	if err := h.tasks.AddRequirement(r.Context(), actor, chi.URLParam(r, "id"), requirement); err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonCreated(w, requirement)
}

// DeleteRequirement removes a skill requirement from the task.
func (h *Handler) DeleteRequirement(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	err := h.tasks.DeleteRequirement(r.Context(), actor,
		chi.URLParam(r, "id"), chi.URLParam(r, "taskID"), chi.URLParam(r, "reqID"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}

	jsonNoContent(w)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
