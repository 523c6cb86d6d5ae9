// Package alerts provides the anomaly alert API endpoints.
package alerts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agrisense/agrisense/internal/storage"
)

// Response helpers (local to avoid import cycle)

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

// Handler handles alert endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new alert handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// maxListLimit caps how many alerts one request can page through.
const maxListLimit = 500

// List returns alerts, newest first. Supports filtering:
//
//	?resolved=false  active alerts only
//	?resolved=true   resolved alerts only
//	?plot={id}       single plot
//	?limit={n}       cap result size (default 100, max 500)
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := &storage.AlertFilter{Limit: 100}

	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "resolved must be true or false")
			return
		}
		filter.Resolved = &resolved
	}

	if v := r.URL.Query().Get("plot"); v != "" {
		filter.PlotID = v
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "limit must be a positive integer")
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	alerts, err := h.storage.Alerts().List(r.Context(), filter)
	if err != nil {
		log.Printf("list alerts error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, alerts)
}

// Get returns a single alert by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.storage.Alerts().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alert)
}

// Resolve marks an alert as resolved. Resolving an already-resolved
// alert succeeds without changing the original resolution time.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := h.storage.Alerts().Resolve(ctx, id); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
			return
		}
		log.Printf("resolve alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	alert, err := h.storage.Alerts().GetByID(ctx, id)
	if err != nil {
		log.Printf("resolve alert error: reload: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("alert resolved: %s", id)
	jsonOK(w, alert)
}

// Summary returns the number of unresolved alerts.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	count, err := h.storage.Alerts().CountUnresolved(r.Context())
	if err != nil {
		log.Printf("alert summary error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, map[string]int64{"unresolved": count})
}
