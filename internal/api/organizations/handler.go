// Package organizations provides nonprofit organization endpoints.
package organizations

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/civicworks/volunteerhub/internal/api/middleware"
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

// Handler handles organization endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new organization handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// Request types
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

type UpdateRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// requireMemberOrAdmin checks that the caller belongs to the organization
// or is a site admin. Returns false after writing the error response.
func (h *Handler) requireMemberOrAdmin(w http.ResponseWriter, r *http.Request, orgID string) bool {
	ctx := r.Context()
	if middleware.GetRole(ctx) == models.RoleAdmin {
		return true
	}
	member, err := h.storage.Organizations().IsMember(ctx, orgID, middleware.GetUserID(ctx))
	if err != nil {
		log.Printf("organization membership check error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return false
	}
	if !member {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "not a member of this organization")
		return false
	}
	return true
}

// List returns all organizations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgs, err := h.storage.Organizations().List(ctx)
	if err != nil {
		log.Printf("list organizations error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, orgs)
}

// Create creates a new organization. The creator becomes an admin member,
// which grants the project-creation gate for the organization's projects.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "organization name required")
		return
	}

	ctx := r.Context()
	existing, err := h.storage.Organizations().GetByName(ctx, req.Name)
	if err != nil {
		log.Printf("create organization error: check name: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "organization name already exists")
		return
	}

	org := models.NewOrganization(req.Name, strings.TrimSpace(req.Description))
	org.ID = uuid.New().String()
	org.Website = strings.TrimSpace(req.Website)

	if err := h.storage.Organizations().Create(ctx, org); err != nil {
		log.Printf("create organization error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if err := h.storage.Organizations().AddMember(ctx, org.ID, middleware.GetUserID(ctx), models.OrgRoleAdmin); err != nil {
		log.Printf("create organization error: add creator: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("organization created: %s (%s)", org.Name, org.ID)
	jsonCreated(w, org)
}

// GetByID returns an organization by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization id required")
		return
	}

	ctx := r.Context()
	org, err := h.storage.Organizations().GetByID(ctx, id)
	if err != nil {
		log.Printf("get organization error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if org == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "organization not found")
		return
	}

	jsonOK(w, org)
}

// Update updates an organization (member or admin).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization id required")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	org, err := h.storage.Organizations().GetByID(ctx, id)
	if err != nil {
		log.Printf("update organization error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if org == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "organization not found")
		return
	}

	if !h.requireMemberOrAdmin(w, r, id) {
		return
	}

	if req.Name != "" {
		org.Name = strings.TrimSpace(req.Name)
	}
	if req.Description != "" {
		org.Description = strings.TrimSpace(req.Description)
	}
	if req.Website != "" {
		org.Website = strings.TrimSpace(req.Website)
	}
	org.UpdatedAt = time.Now()

	if err := h.storage.Organizations().Update(ctx, org); err != nil {
		log.Printf("update organization error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("organization updated: %s (%s)", org.Name, org.ID)
	jsonOK(w, org)
}

// GetMembers returns user IDs of organization members.
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization id required")
		return
	}

	ctx := r.Context()
	ids, err := h.storage.Organizations().ListMemberIDs(ctx, id)
	if err != nil {
		log.Printf("get organization members error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	users, err := h.storage.Users().GetByIDs(ctx, ids)
	if err != nil {
		log.Printf("get organization members error: load users: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, users)
}

// AddMember adds a user to the organization (member or admin).
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization id required")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "user_id required")
		return
	}

	if !h.requireMemberOrAdmin(w, r, id) {
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByID(ctx, req.UserID)
	if err != nil {
		log.Printf("add organization member error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	role := models.OrgRoleStaff
	if req.Role == string(models.OrgRoleAdmin) {
		role = models.OrgRoleAdmin
	}

	if err := h.storage.Organizations().AddMember(ctx, id, req.UserID, role); err != nil {
		log.Printf("add organization member error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("organization member added: org %s user %s", id, req.UserID)
	jsonNoContent(w)
}

// RemoveMember removes a user from the organization (member or admin).
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")
	if id == "" || userID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization id and user id required")
		return
	}

	if !h.requireMemberOrAdmin(w, r, id) {
		return
	}

	ctx := r.Context()
	if err := h.storage.Organizations().RemoveMember(ctx, id, userID); err != nil {
		log.Printf("remove organization member error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("organization member removed: org %s user %s", id, userID)
	jsonNoContent(w)
}
