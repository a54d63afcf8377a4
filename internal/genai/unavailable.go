package genai

import (
	"context"
	"fmt"

	"github.com/kjstillabower/weather-brief/internal/observability"
)

type unavailableGenerator struct {
	model string
	err   error
}

// NewUnavailableGenerator returns a Generator whose calls all fail with err. It
// stands in when NewOpenAIGenerator rejects its settings, so the summary stage
// falls back instead of the run aborting.
func NewUnavailableGenerator(model string, err error) Generator {
	return &unavailableGenerator{model: model, err: err}
}

func (g *unavailableGenerator) Model() string { return g.model }

func (g *unavailableGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	observability.ProviderErrorsTotal.WithLabelValues(observability.ProviderGenAI, "invalid_api_key").Inc()
	return "", fmt.Errorf("%s: %w", observability.ProviderGenAI, g.err)
}
