// Package notifications provides user notification endpoints.
package notifications

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/civicworks/volunteerhub/internal/api/middleware"
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
	errCodeNotFound      = "NOT_FOUND"
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

const defaultPageSize = 50

// Handler handles notification endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new notification handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns the caller's notifications, newest first.
// Query: ?unread=1 filters unread, ?limit= and ?offset= paginate.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	unreadOnly := r.URL.Query().Get("unread") == "1"
	limit := defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}

	list, err := h.storage.Notifications().ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		log.Printf("list notifications error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, list)
}

// UnreadCount returns how many unread notifications the caller has.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.storage.Notifications().CountUnread(ctx, middleware.GetUserID(ctx))
	if err != nil {
		log.Printf("count unread notifications error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, map[string]int64{"unread": count})
}

// MarkRead marks one of the caller's notifications as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.storage.Notifications().MarkRead(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "notificationID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "notification not found")
			return
		}
		log.Printf("mark notification read error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonNoContent(w)
}

// MarkAllRead marks all of the caller's notifications as read.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.storage.Notifications().MarkAllRead(ctx, middleware.GetUserID(ctx)); err != nil {
		log.Printf("mark all notifications read error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonNoContent(w)
}
