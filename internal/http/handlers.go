package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/circuitbreaker"
	"github.com/kjstillabower/weather-brief/internal/lifecycle"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
	"github.com/kjstillabower/weather-brief/internal/traffic"
)

// Runner runs the analysis pipeline once. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context) models.Analysis
	Query() models.LocationQuery
}

// HealthConfig holds the inputs of the degraded decision.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// Tracker receives pipeline outcomes; nil disables the error-rate check.
	Tracker *traffic.Tracker
	// Breakers are the enabled upstream circuit breakers; any open breaker degrades health.
	Breakers []*circuitbreaker.CircuitBreaker
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	runner           Runner
	healthConfig     *HealthConfig
	drainer          *lifecycle.Drainer
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil drainer is replaced with a fresh one.
func NewHandler(runner Runner, healthConfig *HealthConfig, drainer *lifecycle.Drainer, logger *zap.Logger) *Handler {
	if drainer == nil {
		drainer = &lifecycle.Drainer{}
	}
	return &Handler{
		runner:       runner,
		healthConfig: healthConfig,
		drainer:      drainer,
		logger:       logger,
	}
}

// analysisResponse is the 200 body of GET /analysis.
type analysisResponse struct {
	Summary     string              `json:"summary"`
	Line        string              `json:"line"`
	Fallback    bool                `json:"fallback"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
	Location    string              `json:"location"`
}

// GetAnalysis handles GET /analysis. Each request runs the pipeline once.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis := h.runner.Run(r.Context())
	location := h.runner.Query().Q()

	if !analysis.OK {
		observability.LoggerFromContext(r.Context(), nil).Debug("analysis failed",
			zap.String("location", location),
			zap.String("condition", analysis.Condition))
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": map[string]string{
				"code":      "UPSTREAM_UNAVAILABLE",
				"message":   "Unable to fetch weather data",
				"requestId": observability.CorrelationID(r.Context()),
			},
			"line":      analysis.Line(),
			"condition": analysis.Condition,
			"location":  location,
		})
		return
	}

	writeJSON(w, http.StatusOK, analysisResponse{
		Summary:     analysis.Summary,
		Line:        analysis.Line(),
		Fallback:    analysis.Fallback,
		Coordinates: analysis.Coordinates,
		Location:    location,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.healthConfig != nil {
		for _, cb := range h.healthConfig.Breakers {
			if cb.State() == circuitbreaker.StateOpen {
				checks[cb.Component()] = "unhealthy"
			} else {
				checks[cb.Component()] = "healthy"
			}
		}
	}
	if result.reason == "error_rate_breach" {
		checks["pipeline"] = "unhealthy"
	} else {
		checks["pipeline"] = "healthy"
	}

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-brief",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > circuit open > error-rate breach > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if h.drainer.ShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	for _, cb := range h.healthConfig.Breakers {
		if cb.State() == circuitbreaker.StateOpen {
			return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
		}
	}
	if h.healthConfig.Tracker != nil &&
		h.healthConfig.Tracker.Breached(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body with code, message and requestId.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
