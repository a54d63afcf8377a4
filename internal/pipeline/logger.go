package pipeline

import (
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-brief/internal/observability"
)

// logFailure logs a stage failure at error level and counts it.
func logFailure(logger *zap.Logger, stage, msg string, err error) Kind {
	kind := Classify(err)
	observability.StageFailuresTotal.WithLabelValues(stage, string(kind)).Inc()
	logger.Error(msg,
		zap.String("stage", stage),
		zap.String("condition", string(kind)),
		zap.Error(err))
	return kind
}
