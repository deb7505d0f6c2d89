package progress

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SnapshotSource is anything that can report a Snapshot.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// Report logs a snapshot of src every interval until ctx ends. A
// non-positive interval disables reporting.
func Report(ctx context.Context, src SnapshotSource, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 || src == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			LogSnapshot(logger, src.Snapshot())
		}
	}
}

// LogSnapshot writes s as one structured log line.
func LogSnapshot(logger *zap.Logger, s Snapshot) {
	fields := []zap.Field{
		zap.String("phase", s.Phase),
		zap.Duration("elapsed", s.Elapsed),
	}
	if s.Phase == PhaseIndexing.String() {
		fields = append(fields,
			zap.Int64("buckets_indexed", s.BucketsIndexed),
			zap.Int64("buckets_total", s.BucketsTotal),
		)
	} else {
		fields = append(fields,
			zap.Int64("pages_done", s.PagesDone),
			zap.Int64("pages_failed", s.PagesFailed),
			zap.Int64("pages_total", s.PagesTotal),
			zap.Int64("records", s.RecordsDone),
			zap.Int64("records_estimate", s.RecordsEstimate),
		)
	}
	logger.Info("harvest progress", fields...)
}
