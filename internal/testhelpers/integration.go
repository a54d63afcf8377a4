//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/client"
	"github.com/kjstillabower/weather-brief/internal/genai"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/pipeline"
	"github.com/kjstillabower/weather-brief/internal/traffic"
)

// IntegrationTestConfig holds configuration for live-API tests.
type IntegrationTestConfig struct {
	OWMAPIKey    string
	GeminiAPIKey string
	GenAIBaseURL string
	GenAIModel   string
}

// GetIntegrationConfig loads live-API settings from the environment.
// Skips the test unless both OWM_API_KEY and GEMINI_API_KEY are set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	owmKey := os.Getenv("OWM_API_KEY")
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if owmKey == "" || geminiKey == "" {
		t.Skip("OWM_API_KEY and GEMINI_API_KEY not set, skipping integration test")
	}

	baseURL := os.Getenv("GENAI_BASE_URL")
	if baseURL == "" {
		baseURL = genai.DefaultBaseURL
	}
	model := os.Getenv("GENAI_MODEL")
	if model == "" {
		model = genai.DefaultModel
	}

	return IntegrationTestConfig{
		OWMAPIKey:    owmKey,
		GeminiAPIKey: geminiKey,
		GenAIBaseURL: baseURL,
		GenAIModel:   model,
	}
}

// SetupIntegrationPipeline wires a pipeline against the live providers for query.
// The returned tracker receives the run outcomes.
func SetupIntegrationPipeline(t *testing.T, cfg IntegrationTestConfig, query models.LocationQuery) (*pipeline.Pipeline, *traffic.Tracker) {
	t.Helper()
	logger := zap.NewNop()

	weatherClient, err := client.NewOpenWeatherClient(cfg.OWMAPIKey,
		"https://api.openweathermap.org/geo/1.0/direct",
		"https://api.openweathermap.org/data/2.5/weather",
		10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	generator, err := genai.NewOpenAIGenerator(cfg.GeminiAPIKey, cfg.GenAIBaseURL, cfg.GenAIModel, 30*time.Second)
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}

	tracker := traffic.NewTracker(0)
	p := pipeline.New(query,
		pipeline.NewGeocoder(weatherClient, logger),
		pipeline.NewWeatherFetcher(weatherClient, logger),
		pipeline.NewSummarizer(generator, logger),
		logger, tracker)
	return p, tracker
}
