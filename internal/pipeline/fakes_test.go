package pipeline

import (
	"context"

	"github.com/kjstillabower/weather-brief/internal/models"
)

type fakeWeatherClient struct {
	coords       models.Coordinates
	geocodeErr   error
	snapshot     models.WeatherSnapshot
	weatherErr   error
	geocodeCalls int
	weatherCalls int
}

func (f *fakeWeatherClient) Geocode(ctx context.Context, q models.LocationQuery) (models.Coordinates, error) {
	f.geocodeCalls++
	return f.coords, f.geocodeErr
}

func (f *fakeWeatherClient) CurrentWeather(ctx context.Context, c models.Coordinates) (models.WeatherSnapshot, error) {
	f.weatherCalls++
	if f.weatherErr != nil {
		return models.WeatherSnapshot{}, f.weatherErr
	}
	snap := f.snapshot
	snap.Coordinates = c
	return snap, nil
}

type fakeGenerator struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeGenerator) Model() string { return "fake-model" }

type countingRecorder struct {
	successes, errors int
}

func (r *countingRecorder) RecordSuccess() { r.successes++ }
func (r *countingRecorder) RecordError() { r.errors++ }
