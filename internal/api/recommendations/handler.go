// Package recommendations serves advisor output for alerts.
package recommendations

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrisense/agrisense/internal/storage"
)

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

// Handler handles recommendation endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new recommendation handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// ListByAlert returns the recommendations generated for an alert,
// newest first. Unknown alert ids get a 404; an alert without
// recommendations gets an empty list.
func (h *Handler) ListByAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")
	ctx := r.Context()

	alert, err := h.storage.Alerts().GetByID(ctx, alertID)
	if err != nil {
		log.Printf("list recommendations error: get alert: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	recs, err := h.storage.Recommendations().ListByAlert(ctx, alertID)
	if err != nil {
		log.Printf("list recommendations error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, recs)
}
