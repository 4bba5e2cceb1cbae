package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/progress"
)

// LogSink writes one structured line per outcome to the run log. Through
// the tee logger these lines land in both the console and the durable log
// file, which is the record operators grep for failed editions.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Fetch starts are skipped to keep
// the log one line per edition; run lifecycle and completions are recorded.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.logger.Info("run started", zap.String("run_id", evt.RunUUID().String()))
		case progress.StageRunDone:
			s.logger.Info("run finished",
				zap.String("run_id", evt.RunUUID().String()),
				zap.Duration("elapsed", evt.Dur),
				zap.String("summary", evt.Note))
		case progress.StageFetchDone:
			s.logOutcome(evt)
		}
	}
	return nil
}

func (s *LogSink) logOutcome(evt progress.Event) {
	fields := []zap.Field{
		zap.String("edition", evt.Edition),
		zap.String("url", evt.URL),
		zap.Duration("dur", evt.Dur),
	}
	switch evt.Outcome {
	case progress.OutcomeSuccess:
		s.logger.Info("downloaded", append(fields, zap.Int64("bytes", evt.Bytes))...)
	case progress.OutcomeNotFound:
		// Expected: not every date has a published edition.
		s.logger.Info("no edition published", fields...)
	case progress.OutcomeCanceled:
		s.logger.Info("canceled", fields...)
	case progress.OutcomeFatal:
		s.logger.Error("download failed", append(fields, zap.String("cause", evt.Note))...)
	default:
		s.logger.Info("edition processed", append(fields, zap.String("outcome", string(evt.Outcome)))...)
	}
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
