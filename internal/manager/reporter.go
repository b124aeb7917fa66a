package manager

import (
	"github.com/genricoloni/reelkeeper/internal/domain"
	"go.uber.org/zap"
)

// LogReporter reports playback errors to the logger
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter writing to logger
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs err at warn level, or debug for errors that resolve on their own
func (r *LogReporter) Report(err *domain.PlaybackError) {
	fields := []zap.Field{
		zap.String("kind", err.Kind.String()),
		zap.String("mediaID", string(err.MediaID)),
		zap.Error(err.Err),
	}
	if err.Kind == domain.CandidateUnready || err.Kind == domain.StaleCallback {
		r.logger.Debug("Playback error", fields...)
		return
	}
	r.logger.Warn("Playback error", fields...)
}

// ReporterFunc adapts a function to domain.ErrorReporter
type ReporterFunc func(err *domain.PlaybackError)

// Report calls f(err)
func (f ReporterFunc) Report(err *domain.PlaybackError) {
	f(err)
}
