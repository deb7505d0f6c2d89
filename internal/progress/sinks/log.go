package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/progress"
)

// LogSink writes milestone events as structured logs. Per-page events are
// logged at debug level to keep long runs readable.
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

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageBucketIndexed:
			fields = append(fields,
				zap.String("bucket", evt.Bucket),
				zap.Int64("pages", evt.Pages),
				zap.Int64("items", evt.Items),
			)
		case progress.StageDiscoveryDone:
			fields = append(fields, zap.Int64("pages", evt.Pages), zap.Int64("items", evt.Items))
		case progress.StageBatchFlushed:
			fields = append(fields, zap.Int64("records", evt.Records))
		case progress.StageRunDone, progress.StageRunError:
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}

		switch evt.Stage {
		case progress.StagePageDone, progress.StagePageFailed, progress.StageBatchFlushed:
			s.logger.Debug("progress event", fields...)
		case progress.StageRunError:
			s.logger.Warn("progress event", fields...)
		default:
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
