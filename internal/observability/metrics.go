package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider labels used across client, genai and pipeline metrics.
const (
	ProviderGeocoding = "geocoding"
	ProviderWeather   = "weather"
	ProviderGenAI     = "genai"
)

var (
	registry *prometheus.Registry

	// Upstream call rate per provider. Watch for: error vs success ratio.
	ProviderCallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: genai p95 approaching genai.timeout.
	ProviderDuration *prometheus.HistogramVec

	// Classified upstream failures. Watch for: invalid_api_key (rotated key), rate_limited (quota).
	ProviderErrorsTotal *prometheus.CounterVec

	// Stage failures by taxonomy condition (ProviderError, MalformedResponse, EmptyResult, InvalidInput).
	StageFailuresTotal *prometheus.CounterVec

	// Pipeline outcomes: success, fallback (summary unavailable), failed (no weather).
	PipelineRunsTotal *prometheus.CounterVec

	// HTTP request rate in serve mode.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency in serve mode.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Rate limit denials on /analysis.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions. Watch for: flapping between open and half_open.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of upstream provider calls",
		},
		[]string{"provider", "status"},
	)
	ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerDurationSeconds",
			Help:    "Upstream provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "status"},
	)
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerErrorsTotal",
			Help: "Upstream provider failures by error category",
		},
		[]string{"provider", "category"},
	)
	StageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stageFailuresTotal",
			Help: "Pipeline stage failures by stage and condition",
		},
		[]string{"stage", "condition"},
	)
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipelineRunsTotal",
			Help: "Pipeline runs by outcome (success, fallback, failed)",
		},
		[]string{"outcome"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	registry.MustRegister(
		ProviderCallsTotal, ProviderDuration, ProviderErrorsTotal,
		StageFailuresTotal, PipelineRunsTotal,
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// ObserveProviderCall records one upstream call with its status label and latency.
func ObserveProviderCall(provider, status string, seconds float64) {
	ProviderCallsTotal.WithLabelValues(provider, status).Inc()
	ProviderDuration.WithLabelValues(provider, status).Observe(seconds)
}

// RecordCircuitBreakerTransition counts a state change and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	SetCircuitBreakerStateGauge(component, toValue)
}

// SetCircuitBreakerStateGauge sets the state gauge for component.
func SetCircuitBreakerStateGauge(component string, value int) {
	CircuitBreakerState.WithLabelValues(component).Set(float64(value))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
