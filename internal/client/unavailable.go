package client

import (
	"context"
	"fmt"

	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
)

// unavailableClient stands in when NewOpenWeatherClient rejects its settings,
// so a run still reaches its terminal line. Every call fails with err.
type unavailableClient struct {
	err error
}

// NewUnavailableClient returns a WeatherClient whose calls all fail with err,
// typically the ErrInvalidAPIKey from NewOpenWeatherClient.
func NewUnavailableClient(err error) WeatherClient {
	return &unavailableClient{err: err}
}

func (c *unavailableClient) Geocode(ctx context.Context, query models.LocationQuery) (models.Coordinates, error) {
	return models.Coordinates{}, c.fail(observability.ProviderGeocoding)
}

func (c *unavailableClient) CurrentWeather(ctx context.Context, coords models.Coordinates) (models.WeatherSnapshot, error) {
	return models.WeatherSnapshot{}, c.fail(observability.ProviderWeather)
}

func (c *unavailableClient) fail(provider string) error {
	observability.ProviderErrorsTotal.WithLabelValues(provider, string(CategorizeError(c.err))).Inc()
	return fmt.Errorf("%s: %w", provider, c.err)
}
