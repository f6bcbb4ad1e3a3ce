// Package handler provides HTTP request handlers for the admin API.
//
// This package implements the admin endpoints: health checks, status
// reporting, and snapshot management.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/slatekv/slatekv-go/internal/storage/snapshot"
)

// Store is the keyspace surface the admin API reports on.
type Store interface {
	Len() int
	Sequence() uint64
}

// Snapshots manages on-demand snapshot operations.
type Snapshots interface {
	TriggerSnapshot(ctx context.Context) (*snapshot.Info, error)
	ListSnapshots() ([]*snapshot.Info, error)
}

// Handler is the admin HTTP handler.
type Handler struct {
	store   Store
	snaps   Snapshots
	logger  *slog.Logger
	started time.Time
	mux     *http.ServeMux
}

// New creates a new Handler.
func New(store Store, snaps Snapshots, logger *slog.Logger) *Handler {
	h := &Handler{
		store:   store,
		snaps:   snaps,
		logger:  logger,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /admin/v1/status", h.handleStatus)
	h.mux.HandleFunc("POST /admin/v1/snapshots", h.handleTriggerSnapshot)
	h.mux.HandleFunc("GET /admin/v1/snapshots", h.handleListSnapshots)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts request ID from the header set by middleware.
func getRequestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}
