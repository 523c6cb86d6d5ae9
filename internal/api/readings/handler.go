// Package readings serves sensor reading queries and HTTP ingest.
package readings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agrisense/agrisense/internal/ingest"
	"github.com/agrisense/agrisense/internal/metrics"
	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/internal/storage"
)

const (
	defaultRange = 24 * time.Hour
	defaultLimit = 1000
	maxListLimit = 10000
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
	errCodeRateLimited   = "RATE_LIMITED"
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

// Handler handles sensor reading endpoints.
type Handler struct {
	readings     storage.ReadingRepository
	processor    *ingest.Processor
	queryTimeout time.Duration
	maxRange     time.Duration
}

// NewHandler creates a new readings handler. queryTimeout bounds
// time-series queries; maxRange caps the ?range= window (0 disables
// the cap).
func NewHandler(repo storage.ReadingRepository, processor *ingest.Processor, queryTimeout, maxRange time.Duration) *Handler {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Handler{
		readings:     repo,
		processor:    processor,
		queryTimeout: queryTimeout,
		maxRange:     maxRange,
	}
}

// List returns readings for a plot over a time window, oldest first so
// charts can plot the slice directly. ?range= accepts Go durations
// plus a day suffix ("24h", "7d"); the default window is 24h.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plotID := r.URL.Query().Get("plot")
	if plotID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "plot parameter is required")
		return
	}

	window := defaultRange
	if rangeStr := r.URL.Query().Get("range"); rangeStr != "" {
		parsed, err := parseRange(rangeStr)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidation, err.Error())
			return
		}
		window = parsed
	}
	if h.maxRange > 0 && window > h.maxRange {
		window = h.maxRange
	}

	filter := &storage.ReadingFilter{
		PlotID: plotID,
		Start:  time.Now().Add(-window),
		Limit:  defaultLimit,
	}

	if typeStr := r.URL.Query().Get("sensor_type"); typeStr != "" {
		sensorType, err := models.ParseSensorType(typeStr)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidation, err.Error())
			return
		}
		filter.Types = []models.SensorType{sensorType}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			jsonError(w, http.StatusBadRequest, errCodeValidation, "limit must be a positive integer")
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	records, err := h.readings.Query(ctx, filter)
	if err != nil {
		log.Printf("list readings error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	result := make([]*models.SensorReading, 0, len(records))
	for _, rec := range records {
		result = append(result, storage.ReadingFromRecord(rec))
	}
	jsonData(w, http.StatusOK, result)
}

// Latest returns the most recent reading per sensor type for a plot.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	plotID := r.URL.Query().Get("plot")
	if plotID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "plot parameter is required")
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	records, err := h.readings.Latest(ctx, plotID)
	if err != nil {
		log.Printf("latest readings error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	result := make([]*models.SensorReading, 0, len(records))
	for _, rec := range records {
		result = append(result, storage.ReadingFromRecord(rec))
	}
	jsonData(w, http.StatusOK, result)
}

// Create accepts a reading over HTTP. Accepted readings are buffered
// for batch insert, so the response is 202 rather than 201.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var reading models.SensorReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	metrics.IngestReadingsTotal.WithLabelValues("http").Inc()

	if err := h.processor.Process(&reading); err != nil {
		switch {
		case errors.Is(err, ingest.ErrRateLimited):
			jsonError(w, http.StatusTooManyRequests, errCodeRateLimited, "device rate limit exceeded")
		case errors.Is(err, ingest.ErrInvalidValue):
			jsonError(w, http.StatusBadRequest, errCodeValidation, err.Error())
		default:
			jsonError(w, http.StatusBadRequest, errCodeValidation, err.Error())
		}
		return
	}

	jsonData(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

// parseRange parses a time window. Durations use Go syntax, with an
// extra "d" suffix for whole days so dashboard presets like 7d work.
func parseRange(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 1 {
			return 0, fmt.Errorf("invalid range: %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid range: %q", s)
	}
	return d, nil
}
