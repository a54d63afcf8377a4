package pipeline

import (
	"errors"

	"github.com/kjstillabower/weather-brief/internal/client"
	"github.com/kjstillabower/weather-brief/internal/genai"
)

// Kind is the failure taxonomy shared by all stages.
type Kind string

const (
	KindProviderError     Kind = "ProviderError"
	KindMalformedResponse Kind = "MalformedResponse"
	KindEmptyResult       Kind = "EmptyResult"
	KindInvalidInput      Kind = "InvalidInput"
)

// ErrInvalidInput is returned when a stage receives an absent upstream value.
var ErrInvalidInput = errors.New("invalid input")

// Classify maps err to its Kind. Anything not recognised as bad input or a bad
// payload is a provider failure. Returns "" for nil.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, client.ErrEmptyResult), errors.Is(err, genai.ErrEmptyCompletion):
		return KindEmptyResult
	case errors.Is(err, client.ErrMalformedResponse):
		return KindMalformedResponse
	default:
		return KindProviderError
	}
}
