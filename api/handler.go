// Package api provides the admin HTTP API for Beacon: delivery targets,
// events and deliveries, workflows, runs and subjects.
//
// Handler is a plain net/http handler for standalone use; ForgeAPI binds the
// same operations to a Forge router with OpenAPI metadata.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/store"
)

// Handler is the root HTTP handler for the Beacon admin API.
type Handler struct {
	beacon *beacon.Beacon
	store  store.Store
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a new admin API handler.
func NewHandler(b *beacon.Beacon, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		beacon: b,
		store:  b.Store(),
		logger: logger,
		mux:    http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Endpoints
	h.mux.HandleFunc("POST /endpoints", h.createEndpoint)
	h.mux.HandleFunc("GET /endpoints", h.listEndpoints)
	h.mux.HandleFunc("GET /endpoints/{id}", h.getEndpoint)
	h.mux.HandleFunc("PUT /endpoints/{id}", h.updateEndpoint)
	h.mux.HandleFunc("DELETE /endpoints/{id}", h.deleteEndpoint)
	h.mux.HandleFunc("PATCH /endpoints/{id}/enable", h.enableEndpoint)
	h.mux.HandleFunc("PATCH /endpoints/{id}/disable", h.disableEndpoint)
	h.mux.HandleFunc("POST /endpoints/{id}/rotate-secret", h.rotateSecret)
	h.mux.HandleFunc("GET /endpoints/{id}/deliveries", h.listEndpointDeliveries)

	// Events
	h.mux.HandleFunc("POST /events", h.triggerEvent)
	h.mux.HandleFunc("GET /events", h.listEvents)
	h.mux.HandleFunc("GET /events/{id}", h.getEvent)

	// Deliveries
	h.mux.HandleFunc("GET /deliveries", h.listDeliveries)
	h.mux.HandleFunc("GET /deliveries/{id}", h.getDelivery)
	h.mux.HandleFunc("GET /deliveries/{id}/attempts", h.listAttempts)
	h.mux.HandleFunc("POST /deliveries/{id}/redeliver", h.redeliver)
	h.mux.HandleFunc("POST /retries/process", h.processRetries)

	// Workflows
	h.mux.HandleFunc("POST /workflows", h.createWorkflow)
	h.mux.HandleFunc("GET /workflows", h.listWorkflows)
	h.mux.HandleFunc("GET /workflows/{id}", h.getWorkflow)
	h.mux.HandleFunc("PUT /workflows/{id}", h.updateWorkflow)
	h.mux.HandleFunc("POST /workflows/{id}/start", h.startWorkflow)
	h.mux.HandleFunc("POST /workflows/{id}/pause", h.pauseWorkflow)
	h.mux.HandleFunc("POST /workflows/{id}/complete", h.completeWorkflow)
	h.mux.HandleFunc("POST /workflows/{id}/runs", h.triggerWorkflow)

	// Runs
	h.mux.HandleFunc("GET /runs", h.listRuns)
	h.mux.HandleFunc("GET /runs/{id}", h.getRun)
	h.mux.HandleFunc("GET /runs/{id}/steps", h.listStepLogs)
	h.mux.HandleFunc("POST /runs/{id}/cancel", h.cancelRun)

	// Subjects
	h.mux.HandleFunc("PUT /subjects/{id}", h.putSubject)
	h.mux.HandleFunc("GET /subjects/{id}", h.getSubject)
	h.mux.HandleFunc("GET /subjects/{id}/tasks", h.listTasks)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr writes err with the status its sentinel maps to.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// queryBool returns nil when the parameter is absent or not a boolean.
func queryBool(r *http.Request, key string) *bool {
	return parseBool(r.URL.Query().Get(key))
}
