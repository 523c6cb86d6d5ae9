// Package plots implements plot management endpoints.
package plots

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agrisense/agrisense/internal/models"
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
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeValidation    = "VALIDATION_FAILED"
	errCodeNotFound      = "NOT_FOUND"
	errCodeConflict      = "CONFLICT"
	errCodeInternalError = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

// Handler handles plot management endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new plot handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// CreateRequest is the payload for creating a plot.
type CreateRequest struct {
	Name        string `json:"name"`
	CropVariety string `json:"crop_variety"`
}

// UpdateRequest is the payload for updating a plot. Nil fields are
// left unchanged.
type UpdateRequest struct {
	Name        *string `json:"name"`
	CropVariety *string `json:"crop_variety"`
}

// List returns all plots.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plots, err := h.storage.Plots().List(r.Context())
	if err != nil {
		log.Printf("list plots error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonData(w, http.StatusOK, plots)
}

// Get returns a single plot by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	plot, err := h.storage.Plots().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get plot error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if plot == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "plot not found")
		return
	}
	jsonData(w, http.StatusOK, plot)
}

// Create registers a new plot. Plot names are unique so sensors and
// alerts can be addressed by name.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidation, "name is required")
		return
	}

	existing, err := h.storage.Plots().GetByName(r.Context(), req.Name)
	if err != nil {
		log.Printf("create plot error: check name: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "plot name already exists")
		return
	}

	plot := models.NewPlot(req.Name, strings.TrimSpace(req.CropVariety))
	if err := h.storage.Plots().Create(r.Context(), plot); err != nil {
		log.Printf("create plot error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonData(w, http.StatusCreated, plot)
}

// Update modifies a plot's name or crop variety.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	plot, err := h.storage.Plots().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("update plot error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if plot == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "plot not found")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			jsonError(w, http.StatusBadRequest, errCodeValidation, "name cannot be empty")
			return
		}
		if name != plot.Name {
			existing, err := h.storage.Plots().GetByName(r.Context(), name)
			if err != nil {
				log.Printf("update plot error: check name: %v", err)
				jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
				return
			}
			if existing != nil {
				jsonError(w, http.StatusConflict, errCodeConflict, "plot name already exists")
				return
			}
			plot.Name = name
		}
	}
	if req.CropVariety != nil {
		plot.CropVariety = strings.TrimSpace(*req.CropVariety)
	}

	if err := h.storage.Plots().Update(r.Context(), plot); err != nil {
		log.Printf("update plot error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonData(w, http.StatusOK, plot)
}

// Delete removes a plot.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	plot, err := h.storage.Plots().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("delete plot error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if plot == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "plot not found")
		return
	}

	if err := h.storage.Plots().Delete(r.Context(), id); err != nil {
		log.Printf("delete plot error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
