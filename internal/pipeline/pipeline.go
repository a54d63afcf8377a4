package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
)

// Outcomes of a run, used as the pipelineRunsTotal label.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// OutcomeRecorder receives one result per run. traffic.Tracker implements it.
type OutcomeRecorder interface {
	RecordSuccess()
	RecordError()
}

// Pipeline runs Geocoder -> WeatherFetcher -> Summarizer for one location.
type Pipeline struct {
	query      models.LocationQuery
	geocoder   *Geocoder
	fetcher    *WeatherFetcher
	summarizer *Summarizer
	logger     *zap.Logger
	recorder   OutcomeRecorder
}

// New wires a pipeline for query. recorder may be nil.
func New(query models.LocationQuery, g *Geocoder, f *WeatherFetcher, s *Summarizer, logger *zap.Logger, recorder OutcomeRecorder) *Pipeline {
	return &Pipeline{
		query:      query,
		geocoder:   g,
		fetcher:    f,
		summarizer: s,
		logger:     logger,
		recorder:   recorder,
	}
}

// Query returns the location the pipeline analyses.
func (p *Pipeline) Query() models.LocationQuery {
	return p.query
}

// Run executes the stages in order. It never returns an error: a missing
// snapshot yields an Analysis with OK false, a failed summary yields the fallback text.
func (p *Pipeline) Run(ctx context.Context) models.Analysis {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, p.logger)

	coords, geoErr := p.geocoder.Locate(ctx, p.query)
	snap, fetchErr := p.fetcher.Fetch(ctx, coords)
	if snap == nil {
		cause := fetchErr
		if geoErr != nil {
			cause = geoErr
		}
		p.finish(logger, OutcomeFailed, start)
		return models.Analysis{
			Coordinates: coords,
			Condition:   string(Classify(cause)),
		}
	}

	summary, sumErr := p.summarizer.Summarize(ctx, snap)
	analysis := models.Analysis{
		Summary:     summary,
		OK:          true,
		Fallback:    sumErr != nil,
		Coordinates: coords,
		Condition:   string(Classify(sumErr)),
	}
	if analysis.Fallback {
		p.finish(logger, OutcomeFallback, start)
	} else {
		p.finish(logger, OutcomeSuccess, start)
	}
	return analysis
}

func (p *Pipeline) finish(logger *zap.Logger, outcome string, start time.Time) {
	observability.PipelineRunsTotal.WithLabelValues(outcome).Inc()
	if p.recorder != nil {
		if outcome == OutcomeSuccess {
			p.recorder.RecordSuccess()
		} else {
			p.recorder.RecordError()
		}
	}
	logger.Info("pipeline finished",
		zap.String("location", p.query.Q()),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)))
}
