package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-brief/internal/observability"
	"github.com/kjstillabower/weather-brief/internal/traffic"
)

// RouterConfig holds the per-route middleware settings for NewRouter.
type RouterConfig struct {
	// Limiter guards /analysis; nil disables rate limiting.
	Limiter        *rate.Limiter
	Tracker        *traffic.Tracker
	RequestTimeout time.Duration
}

// NewRouter mounts /analysis, /health and /metrics behind the shared middleware chain.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(InFlightMiddleware(h.drainer))
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	var analysis http.Handler = http.HandlerFunc(h.GetAnalysis)
	if cfg.RequestTimeout > 0 {
		analysis = TimeoutMiddleware(cfg.RequestTimeout)(analysis)
	}
	analysis = RateLimitMiddleware(cfg.Limiter, cfg.Tracker)(analysis)
	router.Handle("/analysis", analysis).Methods("GET")
	return router
}
