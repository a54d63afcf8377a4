package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/validation"
)

// Config holds settings loaded from YAML, secrets and env. Built once at startup
// and passed to each component.
type Config struct {
	City    string
	State   string
	Country string
	Limit   int

	OWMAPIKey          string
	GeocodingURL       string
	WeatherAPIURL      string
	OpenWeatherTimeout time.Duration

	GenAIAPIKey  string
	GenAIBaseURL string
	GenAIModel   string
	GenAITimeout time.Duration

	ServerPort     string
	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Location struct {
		City    string  `yaml:"city"`
		State   *string `yaml:"state"`
		Country string  `yaml:"country"`
		Limit   int     `yaml:"limit"`
	} `yaml:"location"`

	OpenWeather struct {
		GeocodingURL string `yaml:"geocoding_url"`
		WeatherURL   string `yaml:"weather_url"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"openweather"`

	GenAI struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"genai"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          bool   `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	OWMAPIKey    string `yaml:"owm_api_key"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
}

const (
	defaultGeocodingURL = "https://api.openweathermap.org/geo/1.0/direct"
	defaultWeatherURL   = "https://api.openweathermap.org/data/2.5/weather"
	defaultGenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultGenAIModel   = "gemini-1.5-pro"
)

// Load reads config/{ENV_NAME}.yaml (default dev; optional) and the API keys from
// OWM_API_KEY and GEMINI_API_KEY, falling back to config/secrets.yaml. Absent keys
// are not an error here. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if os.Getenv("ENV_NAME") != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.City = strings.TrimSpace(fc.Location.City)
	if cfg.City == "" {
		cfg.City = "Stamford"
	}
	cfg.State = "CT"
	if fc.Location.State != nil {
		cfg.State = *fc.Location.State
	}
	cfg.Country = strings.TrimSpace(fc.Location.Country)
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	cfg.Limit = fc.Location.Limit
	if cfg.Limit <= 0 {
		cfg.Limit = 1
	}

	if err := loadSecrets(cwd, cfg); err != nil {
		return nil, err
	}

	cfg.GeocodingURL = strings.TrimSpace(fc.OpenWeather.GeocodingURL)
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = defaultGeocodingURL
	}
	cfg.WeatherAPIURL = strings.TrimSpace(fc.OpenWeather.WeatherURL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = defaultWeatherURL
	}
	cfg.OpenWeatherTimeout = parseDurationOrZero(fc.OpenWeather.Timeout, 10*time.Second)

	cfg.GenAIBaseURL = strings.TrimSpace(fc.GenAI.BaseURL)
	if cfg.GenAIBaseURL == "" {
		cfg.GenAIBaseURL = defaultGenAIBaseURL
	}
	cfg.GenAIModel = strings.TrimSpace(os.Getenv("GENAI_MODEL"))
	if cfg.GenAIModel == "" {
		cfg.GenAIModel = strings.TrimSpace(fc.GenAI.Model)
	}
	if cfg.GenAIModel == "" {
		cfg.GenAIModel = defaultGenAIModel
	}
	cfg.GenAITimeout = parseDurationOrZero(fc.GenAI.Timeout, 30*time.Second)

	cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 0)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}

	cfg.CircuitBreakerEnabled = fc.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 15*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets fills the API keys from env, then from config/secrets.yaml. Missing
// keys are left empty; see RequireKeys.
func loadSecrets(cwd string, cfg *Config) error {
	cfg.OWMAPIKey = strings.TrimSpace(os.Getenv("OWM_API_KEY"))
	cfg.GenAIAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if cfg.OWMAPIKey == "" || cfg.GenAIAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return fmt.Errorf("parse secrets file: %w", err)
			}
			if cfg.OWMAPIKey == "" {
				cfg.OWMAPIKey = strings.TrimSpace(sec.OWMAPIKey)
			}
			if cfg.GenAIAPIKey == "" {
				cfg.GenAIAPIKey = strings.TrimSpace(sec.GeminiAPIKey)
			}
		}
	}
	return nil
}

// RequireKeys reports a missing API key. Serve mode refuses to start without
// both; a one-shot run proceeds and the affected stage fails instead.
func (c *Config) RequireKeys() error {
	if c.OWMAPIKey == "" {
		return fmt.Errorf("OWM_API_KEY required (set env or config/secrets.yaml owm_api_key)")
	}
	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY required (set env or config/secrets.yaml gemini_api_key)")
	}
	return nil
}

// LocationQuery validates and returns the configured geocoding query.
func (c *Config) LocationQuery() (models.LocationQuery, error) {
	return validation.ValidateQuery(c.City, c.State, c.Country, c.Limit)
}

// OverrideLocation replaces non-empty location parts (CLI flags) and revalidates.
func (c *Config) OverrideLocation(city, state, country string) error {
	if city != "" {
		c.City = city
	}
	if state != "" {
		c.State = state
	}
	if country != "" {
		c.Country = country
	}
	_, err := c.LocationQuery()
	return err
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects non-positive provider timeouts and an invalid location, and
// raises RequestTimeout so one pipeline run (two OpenWeather calls and one
// completion) fits inside it.
func validate(cfg *Config) error {
	if cfg.OpenWeatherTimeout <= 0 {
		return fmt.Errorf("openweather.timeout must be positive")
	}
	if cfg.GenAITimeout <= 0 {
		return fmt.Errorf("genai.timeout must be positive")
	}
	if minimum := 2*cfg.OpenWeatherTimeout + cfg.GenAITimeout; cfg.RequestTimeout <= minimum {
		cfg.RequestTimeout = minimum + time.Second
	}
	if _, err := cfg.LocationQuery(); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	return nil
}
