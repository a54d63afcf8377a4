package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/client"
	"github.com/kjstillabower/weather-brief/internal/genai"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
)

const stageSummarizer = "summarizer"

// FallbackSummary replaces the model's text whenever a summary cannot be produced.
const FallbackSummary = "Weather analysis unavailable at the moment."

const promptTemplate = "The current weather is described as '%s' with a temperature of %s°F. " +
	"Can you provide a brief summary and give a suggestion for what to wear?"

// Summarizer asks a generative model for a summary and clothing suggestion.
type Summarizer struct {
	generator genai.Generator
	logger    *zap.Logger
}

func NewSummarizer(g genai.Generator, logger *zap.Logger) *Summarizer {
	return &Summarizer{generator: g, logger: logger}
}

// Summarize always returns printable text: the model's answer, or FallbackSummary
// together with the error that caused it.
func (s *Summarizer) Summarize(ctx context.Context, snap *models.WeatherSnapshot) (string, error) {
	logger := observability.LoggerFromContext(ctx, s.logger)

	if snap == nil {
		err := fmt.Errorf("%w: no weather data available", ErrInvalidInput)
		logFailure(logger, stageSummarizer, "summary skipped", err)
		return FallbackSummary, err
	}

	desc, celsius, err := ExtractConditions(snap.Raw)
	if err != nil {
		logFailure(logger, stageSummarizer, "unexpected weather payload", err)
		return FallbackSummary, err
	}

	prompt := BuildPrompt(desc, celsius)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, genai.ErrEmptyCompletion) {
			logFailure(logger, stageSummarizer, "model returned no text", err)
		} else {
			logFailure(logger, stageSummarizer, "generative request failed", err)
		}
		return FallbackSummary, err
	}
	if strings.TrimSpace(text) == "" {
		err := genai.ErrEmptyCompletion
		logFailure(logger, stageSummarizer, "model returned no text", err)
		return FallbackSummary, err
	}

	logger.Debug("summary generated", zap.String("model", s.generator.Model()), zap.Int("chars", len(text)))
	return text, nil
}

type conditionFields struct {
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// ExtractConditions reads weather[0].description and main.temp (Celsius) from a
// current-weather body.
func ExtractConditions(raw json.RawMessage) (string, float64, error) {
	var f conditionFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", 0, fmt.Errorf("%w: decode weather snapshot: %v", client.ErrMalformedResponse, err)
	}
	if len(f.Weather) == 0 || f.Weather[0].Description == nil {
		return "", 0, fmt.Errorf("%w: missing weather[0].description", client.ErrMalformedResponse)
	}
	if f.Main == nil || f.Main.Temp == nil {
		return "", 0, fmt.Errorf("%w: missing main.temp", client.ErrMalformedResponse)
	}
	return *f.Weather[0].Description, *f.Main.Temp, nil
}

// Fahrenheit converts Celsius with F = (9/5)*C + 32. The explicit conversion
// keeps the compiler from fusing the multiply and add.
func Fahrenheit(celsius float64) float64 {
	return float64(9.0/5.0*celsius) + 32
}

// FormatFahrenheit renders f in its shortest exact decimal form with at least one
// fractional digit: 68 -> "68.0", 0.5 -> "0.5".
func FormatFahrenheit(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// BuildPrompt renders the model prompt for a condition description and a Celsius temperature.
func BuildPrompt(description string, celsius float64) string {
	return fmt.Sprintf(promptTemplate, description, FormatFahrenheit(Fahrenheit(celsius)))
}
