// Package genai submits prompts to a chat-completion model over the
// OpenAI-compatible API. The default endpoint is Gemini's compatibility layer.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kjstillabower/weather-brief/internal/circuitbreaker"
	"github.com/kjstillabower/weather-brief/internal/observability"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-1.5-pro"
)

var (
	// ErrEmptyCompletion means the model answered without any text.
	ErrEmptyCompletion = errors.New("no text returned")
	// ErrInvalidAPIKey means no usable generative-text credential was configured.
	ErrInvalidAPIKey = errors.New("invalid generative API key")
)

// Generator turns one prompt into one text response.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

type OpenAIGenerator struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewOpenAIGenerator builds a generator for model at baseURL. Empty baseURL and
// model take DefaultBaseURL and DefaultModel.
func NewOpenAIGenerator(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultBaseURL
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		cfg.BaseURL = base
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIGenerator{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// SetCircuitBreaker guards completions with cb. Call before first use.
func (g *OpenAIGenerator) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	g.breaker = cb
}

func (g *OpenAIGenerator) Model() string { return g.model }

// Generate sends prompt as a single user message and returns the trimmed text of
// the first choice. Blank text is ErrEmptyCompletion.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.breaker == nil {
		return g.complete(ctx, prompt)
	}
	var text string
	var emptyErr error
	err := g.breaker.Call(ctx, func() error {
		var callErr error
		text, callErr = g.complete(ctx, prompt)
		if errors.Is(callErr, ErrEmptyCompletion) {
			// the provider answered; an empty answer is not an outage
			emptyErr = callErr
			return nil
		}
		return callErr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			observability.ProviderErrorsTotal.WithLabelValues(observability.ProviderGenAI, "circuit_open").Inc()
		}
		return "", err
	}
	if emptyErr != nil {
		return "", emptyErr
	}
	return text, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	resp, err := g.api.CreateChatCompletion(ctx, req)
	if err != nil {
		observability.ObserveProviderCall(observability.ProviderGenAI, errorStatus(err), time.Since(start).Seconds())
		observability.ProviderErrorsTotal.WithLabelValues(observability.ProviderGenAI, errorCategory(err)).Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	observability.ObserveProviderCall(observability.ProviderGenAI, "success", time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices", ErrEmptyCompletion)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: blank completion", ErrEmptyCompletion)
	}
	return text, nil
}

// errorStatus mirrors the client package's status labels for API errors.
func errorStatus(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return "rate_limited"
		case apiErr.HTTPStatusCode >= 500:
			return "server_error"
		case apiErr.HTTPStatusCode >= 400:
			return "client_error"
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == 429:
			return "rate_limited"
		case reqErr.HTTPStatusCode >= 500:
			return "server_error"
		case reqErr.HTTPStatusCode >= 400:
			return "client_error"
		}
	}
	return "error"
}

func errorCategory(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	switch errorStatus(err) {
	case "rate_limited":
		return "rate_limited"
	case "server_error":
		return "upstream_error"
	case "client_error":
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403) {
			return "invalid_api_key"
		}
		return "upstream_error"
	}
	return "network"
}
