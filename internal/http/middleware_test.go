package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-brief/internal/lifecycle"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
	"github.com/kjstillabower/weather-brief/internal/traffic"
)

func TestMiddleware_ThroughRouter(t *testing.T) {
	handler := NewHandler(successRunner(), nil, nil, zap.NewNop())
	router := NewRouter(handler, zap.NewNop(), RouterConfig{RequestTimeout: 5 * time.Second})

	req := httptest.NewRequest("GET", "/analysis", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	runner := &fakeRunner{analysis: models.Analysis{}}
	handler := NewHandler(runner, nil, nil, zap.NewNop())
	router := NewRouter(handler, zap.NewNop(), RouterConfig{})

	req := httptest.NewRequest("GET", "/analysis", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	var errResp struct {
		Error struct {
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.RequestID != "client-provided-id" {
		t.Errorf("requestId = %q, want client-provided-id", errResp.Error.RequestID)
	}
}

// TestCorrelationIDMiddleware_ContextLogger verifies downstream code gets a logger carrying the ID.
func TestCorrelationIDMiddleware_ContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		if observability.CorrelationID(r.Context()) != "abc" {
			t.Errorf("CorrelationID() = %q, want abc", observability.CorrelationID(r.Context()))
		}
		observability.LoggerFromContext(r.Context(), nil).Info("inside")
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("inside").All()
	if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != "abc" {
		t.Errorf("entries = %v, want one with correlation_id abc", entries)
	}
}

func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	runner := successRunner()
	runner.block = make(chan struct{})
	defer close(runner.block)
	handler := NewHandler(runner, nil, nil, zap.NewNop())
	router := NewRouter(handler, zap.NewNop(), RouterConfig{RequestTimeout: 50 * time.Millisecond})

	req := httptest.NewRequest("GET", "/analysis", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d (timeout should take the failure path)", w.Code, http.StatusBadGateway)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	runner := successRunner()
	handler := NewHandler(runner, nil, nil, zap.NewNop())
	tracker := traffic.NewTracker(0)
	router := NewRouter(handler, zap.NewNop(), RouterConfig{Limiter: rate.NewLimiter(1, 2), Tracker: tracker})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/analysis", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("request %d: status = %d, want 429", i, w.Code)
		}
		var errResp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
			t.Fatalf("decode 429 response: %v", err)
		}
		if errResp.Error.Code != "RATE_LIMITED" {
			t.Errorf("error.code = %q, want RATE_LIMITED", errResp.Error.Code)
		}
	}
	if n := runner.calls.Load(); n != 2 {
		t.Errorf("pipeline runs = %d, want 2 (denied request must not run)", n)
	}
	if n := tracker.DenialCount(time.Minute); n != 1 {
		t.Errorf("DenialCount() = %d, want 1", n)
	}
}

// TestRateLimitMiddleware_HealthNotLimited verifies only /analysis is rate limited.
func TestRateLimitMiddleware_HealthNotLimited(t *testing.T) {
	handler := NewHandler(successRunner(), nil, nil, zap.NewNop())
	router := NewRouter(handler, zap.NewNop(), RouterConfig{Limiter: rate.NewLimiter(1, 1)})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimitMiddleware(nil, nil)(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/analysis", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (nil limiter should allow)", w.Code)
	}
}

// TestInFlightMiddleware verifies the drainer counts a request only while it runs.
func TestInFlightMiddleware(t *testing.T) {
	drainer := &lifecycle.Drainer{}
	var during int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = drainer.InFlight()
	})
	InFlightMiddleware(drainer)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/analysis", nil))

	if during != 1 {
		t.Errorf("InFlight() during request = %d, want 1", during)
	}
	if n := drainer.InFlight(); n != 0 {
		t.Errorf("InFlight() after request = %d, want 0", n)
	}
}

func TestMiddleware_MetricsRoute(t *testing.T) {
	handler := NewHandler(successRunner(), nil, nil, zap.NewNop())
	router := NewRouter(handler, zap.NewNop(), RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/analysis", "/analysis"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/weather/seattle", "other"},
	}
	for _, tt := range tests {
		if got := getRoute(httptest.NewRequest("GET", tt.path, nil)); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
