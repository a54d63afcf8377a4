package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/client"
	"github.com/kjstillabower/weather-brief/internal/genai"
	"github.com/kjstillabower/weather-brief/internal/models"
)

// upstream fakes the OpenWeatherMap and chat-completion endpoints on one server.
type upstream struct {
	geoStatus     int
	geoBody       string
	weatherStatus int
	weatherBody   string
	modelText     string

	weatherCalls atomic.Int32
	modelCalls   atomic.Int32
	lastPrompt   atomic.Value
}

func (u *upstream) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(u.geoStatus)
		_, _ = w.Write([]byte(u.geoBody))
	})
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		u.weatherCalls.Add(1)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.WriteHeader(u.weatherStatus)
		_, _ = w.Write([]byte(u.weatherBody))
	})
	mux.HandleFunc("/v1beta/openai/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		u.modelCalls.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Messages) > 0 {
			u.lastPrompt.Store(req.Messages[0].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": u.modelText}},
			},
		})
	})
	return mux
}

func newTestPipeline(t *testing.T, u *upstream, recorder OutcomeRecorder) *Pipeline {
	t.Helper()
	server := httptest.NewServer(u.handler(t))
	t.Cleanup(server.Close)

	wc, err := client.NewOpenWeatherClient("test-owm-key-12345",
		server.URL+"/geo/1.0/direct", server.URL+"/data/2.5/weather", 2*time.Second)
	require.NoError(t, err)
	gen, err := genai.NewOpenAIGenerator("test-genai-key", server.URL+"/v1beta/openai", "gemini-1.5-pro", 2*time.Second)
	require.NoError(t, err)

	logger := zap.NewNop()
	return New(stamford,
		NewGeocoder(wc, logger),
		NewWeatherFetcher(wc, logger),
		NewSummarizer(gen, logger),
		logger, recorder)
}

// TestRun_ScenarioA verifies a full successful run: the prompt carries the
// description and 68.0, and the line is prefixed with the label.
func TestRun_ScenarioA(t *testing.T) {
	u := &upstream{
		geoStatus:     http.StatusOK,
		geoBody:       `[{"lat":41.05,"lon":-73.54}]`,
		weatherStatus: http.StatusOK,
		weatherBody:   `{"weather":[{"description":"clear sky"}],"main":{"temp":20}}`,
		modelText:     "A clear, mild day. Jeans and a light sweater.",
	}
	rec := &countingRecorder{}
	p := newTestPipeline(t, u, rec)

	analysis := p.Run(context.Background())

	prompt, _ := u.lastPrompt.Load().(string)
	assert.Contains(t, prompt, "clear sky")
	assert.Contains(t, prompt, "68.0")
	assert.True(t, analysis.OK)
	assert.False(t, analysis.Fallback)
	assert.Equal(t, "AI Weather Analysis: A clear, mild day. Jeans and a light sweater.", analysis.Line())
	require.NotNil(t, analysis.Coordinates)
	assert.Equal(t, models.Coordinates{Lat: 41.05, Lon: -73.54}, *analysis.Coordinates)
	assert.Equal(t, 1, rec.successes)
}

// TestRun_ScenarioB verifies an empty geocoding list ends with the failure line
// and never reaches the weather or model endpoints.
func TestRun_ScenarioB(t *testing.T) {
	u := &upstream{geoStatus: http.StatusOK, geoBody: `[]`, weatherStatus: http.StatusOK, weatherBody: `{}`}
	rec := &countingRecorder{}
	p := newTestPipeline(t, u, rec)

	analysis := p.Run(context.Background())

	assert.Equal(t, "Failed to retrieve weather data.", analysis.Line())
	assert.False(t, analysis.OK)
	assert.Equal(t, string(KindEmptyResult), analysis.Condition)
	assert.Equal(t, int32(0), u.weatherCalls.Load())
	assert.Equal(t, int32(0), u.modelCalls.Load())
	assert.Equal(t, 1, rec.errors)
}

// TestRun_ScenarioC verifies a weather HTTP error ends with the same failure line.
func TestRun_ScenarioC(t *testing.T) {
	u := &upstream{
		geoStatus:     http.StatusOK,
		geoBody:       `[{"lat":41.05,"lon":-73.54}]`,
		weatherStatus: http.StatusInternalServerError,
		weatherBody:   `{"cod":500}`,
	}
	p := newTestPipeline(t, u, nil)

	analysis := p.Run(context.Background())

	assert.Equal(t, "Failed to retrieve weather data.", analysis.Line())
	assert.Equal(t, string(KindProviderError), analysis.Condition)
	assert.Equal(t, int32(1), u.weatherCalls.Load())
	assert.Equal(t, int32(0), u.modelCalls.Load())
}

// TestRun_ModelWithoutText verifies an empty completion still prints the label
// with the fallback string.
func TestRun_ModelWithoutText(t *testing.T) {
	u := &upstream{
		geoStatus:     http.StatusOK,
		geoBody:       `[{"lat":41.05,"lon":-73.54}]`,
		weatherStatus: http.StatusOK,
		weatherBody:   `{"weather":[{"description":"snow"}],"main":{"temp":-40}}`,
		modelText:     "",
	}
	rec := &countingRecorder{}
	p := newTestPipeline(t, u, rec)

	analysis := p.Run(context.Background())

	prompt, _ := u.lastPrompt.Load().(string)
	assert.Contains(t, prompt, "-40.0")
	assert.True(t, analysis.OK)
	assert.True(t, analysis.Fallback)
	assert.Equal(t, "AI Weather Analysis: Weather analysis unavailable at the moment.", analysis.Line())
	assert.Equal(t, 1, rec.errors)
}

// TestRun_Query verifies the configured query is exposed.
func TestRun_Query(t *testing.T) {
	p := New(stamford, nil, nil, nil, zap.NewNop(), nil)
	assert.Equal(t, "Stamford,CT,US", p.Query().Q())
}
