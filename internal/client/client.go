package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-brief/internal/circuitbreaker"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
)

// WeatherClient resolves places and fetches current conditions from OpenWeatherMap.
type WeatherClient interface {
	Geocode(ctx context.Context, query models.LocationQuery) (models.Coordinates, error)
	CurrentWeather(ctx context.Context, coords models.Coordinates) (models.WeatherSnapshot, error)
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrLocationNotFound  = errors.New("location not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
	ErrEmptyResult       = errors.New("no location data found")
)

// maxBodyBytes bounds how much of a provider body is read.
const maxBodyBytes = 1 << 20

type OpenWeatherClient struct {
	apiKey       string
	geocodingURL string
	weatherURL   string
	timeout      time.Duration
	client       *http.Client
	breakers     map[string]*circuitbreaker.CircuitBreaker
}

// NewOpenWeatherClient returns a client for the direct geocoding and current weather endpoints.
// Both endpoints share the same API key.
func NewOpenWeatherClient(apiKey, geocodingURL, weatherURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	for _, raw := range []string{geocodingURL, weatherURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", raw, err)
		}
	}

	return &OpenWeatherClient{
		apiKey:       apiKey,
		geocodingURL: geocodingURL,
		weatherURL:   weatherURL,
		timeout:      timeout,
		client: &http.Client{
			Timeout: timeout,
		},
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
	}, nil
}

// SetCircuitBreaker guards calls to provider (observability.ProviderGeocoding or
// observability.ProviderWeather) with cb. Call before first use.
func (c *OpenWeatherClient) SetCircuitBreaker(provider string, cb *circuitbreaker.CircuitBreaker) {
	c.breakers[provider] = cb
}

type geocodeCandidate struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Country string   `json:"country"`
	State   string   `json:"state"`
}

// Geocode returns the first candidate for query. An empty candidate list is ErrEmptyResult.
func (c *OpenWeatherClient) Geocode(ctx context.Context, query models.LocationQuery) (models.Coordinates, error) {
	params := url.Values{}
	params.Set("q", query.Q())
	params.Set("limit", strconv.Itoa(query.Limit))

	body, err := c.call(ctx, observability.ProviderGeocoding, c.geocodingURL, params)
	if err != nil {
		return models.Coordinates{}, err
	}

	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return models.Coordinates{}, fmt.Errorf("%w: geocoding response is null", ErrMalformedResponse)
	}
	var candidates []geocodeCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: parse geocoding response: %v", ErrMalformedResponse, err)
	}
	if len(candidates) == 0 {
		return models.Coordinates{}, fmt.Errorf("%w for %q; check city/state/country", ErrEmptyResult, query.Q())
	}
	first := candidates[0]
	if first.Lat == nil || first.Lon == nil {
		return models.Coordinates{}, fmt.Errorf("%w: geocoding candidate missing lat/lon", ErrMalformedResponse)
	}
	return models.Coordinates{Lat: *first.Lat, Lon: *first.Lon}, nil
}

// CurrentWeather fetches metric current conditions for coords. The body is returned
// verbatim; it must be a non-empty JSON object.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, coords models.Coordinates) (models.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("units", "metric")

	body, err := c.call(ctx, observability.ProviderWeather, c.weatherURL, params)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse weather response: %v", ErrMalformedResponse, err)
	}
	if len(probe) == 0 {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: empty weather response", ErrMalformedResponse)
	}

	return models.WeatherSnapshot{
		Raw:         json.RawMessage(body),
		Coordinates: coords,
		FetchedAt:   time.Now(),
	}, nil
}

// call runs one GET through the provider's circuit breaker, if any.
func (c *OpenWeatherClient) call(ctx context.Context, provider, endpoint string, params url.Values) ([]byte, error) {
	cb, ok := c.breakers[provider]
	if !ok {
		return c.get(ctx, provider, endpoint, params)
	}
	var body []byte
	err := cb.Call(ctx, func() error {
		var callErr error
		body, callErr = c.get(ctx, provider, endpoint, params)
		return callErr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.ProviderErrorsTotal.WithLabelValues(provider, string(ErrorCategoryCircuitOpen)).Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamFailure, provider, err)
	}
	return body, err
}

func (c *OpenWeatherClient) get(ctx context.Context, provider, endpoint string, params url.Values) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, params)
	if err != nil {
		observability.ObserveProviderCall(provider, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.ObserveProviderCall(provider, "error", time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = fmt.Errorf("request timeout: %w", err)
		} else {
			err = fmt.Errorf("http request failed: %w", err)
		}
		observability.ProviderErrorsTotal.WithLabelValues(provider, string(CategorizeError(err))).Inc()
		return nil, err
	}
	defer resp.Body.Close()

	observability.ObserveProviderCall(provider, statusLabel(resp.StatusCode), time.Since(start).Seconds())

	if err := c.handleErrorResponse(resp); err != nil {
		observability.ProviderErrorsTotal.WithLabelValues(provider, string(CategorizeError(err))).Inc()
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	baseURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP 401", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
