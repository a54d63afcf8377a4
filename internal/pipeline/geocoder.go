package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/client"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
)

const stageGeocoder = "geocoder"

// Geocoder resolves a place name to coordinates.
type Geocoder struct {
	client client.WeatherClient
	logger *zap.Logger
}

func NewGeocoder(c client.WeatherClient, logger *zap.Logger) *Geocoder {
	return &Geocoder{client: c, logger: logger}
}

// Locate returns the first candidate's coordinates, or nil and the classified
// error. Failures are logged, never retried.
func (g *Geocoder) Locate(ctx context.Context, query models.LocationQuery) (*models.Coordinates, error) {
	logger := observability.LoggerFromContext(ctx, g.logger)

	coords, err := g.client.Geocode(ctx, query)
	if err != nil {
		logFailure(logger, stageGeocoder, "geocoding failed", err)
		return nil, err
	}

	logger.Debug("location resolved",
		zap.String("q", query.Q()),
		zap.Float64("lat", coords.Lat),
		zap.Float64("lon", coords.Lon))
	return &coords, nil
}
