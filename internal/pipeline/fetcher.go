package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/client"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
)

const stageWeatherFetcher = "weather_fetcher"

// WeatherFetcher turns coordinates into a current-conditions snapshot.
type WeatherFetcher struct {
	client client.WeatherClient
	logger *zap.Logger
}

func NewWeatherFetcher(c client.WeatherClient, logger *zap.Logger) *WeatherFetcher {
	return &WeatherFetcher{client: c, logger: logger}
}

// Fetch returns the provider snapshot for coords. Nil coords fail with
// ErrInvalidInput before any network call.
func (f *WeatherFetcher) Fetch(ctx context.Context, coords *models.Coordinates) (*models.WeatherSnapshot, error) {
	logger := observability.LoggerFromContext(ctx, f.logger)

	if coords == nil {
		err := fmt.Errorf("%w: invalid coordinates provided", ErrInvalidInput)
		logFailure(logger, stageWeatherFetcher, "weather fetch skipped", err)
		return nil, err
	}

	snap, err := f.client.CurrentWeather(ctx, *coords)
	if err != nil {
		logFailure(logger, stageWeatherFetcher, "weather request failed", err)
		return nil, err
	}

	logger.Debug("weather fetched", zap.Int("bytes", len(snap.Raw)))
	return &snap, nil
}
