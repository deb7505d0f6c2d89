package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/etym-crawler/internal/progress"
)

func runBatch() []progress.Event {
	id := [16]byte(uuid.New())
	now := time.Now()
	return []progress.Event{
		{RunID: id, TS: now, Stage: progress.StageRunStart},
		{RunID: id, TS: now, Stage: progress.StageBucketIndexed, Bucket: "a", Pages: 3, Items: 70},
		{RunID: id, TS: now, Stage: progress.StageBucketIndexed, Bucket: "b", Pages: 1, Items: 5},
		{RunID: id, TS: now, Stage: progress.StageDiscoveryDone, Pages: 4, Items: 75},
		{RunID: id, TS: now, Stage: progress.StagePageDone},
		{RunID: id, TS: now, Stage: progress.StagePageFailed},
		{RunID: id, TS: now, Stage: progress.StageBatchFlushed, Records: 40},
		{RunID: id, TS: now, Stage: progress.StageRunDone, Dur: 90 * time.Second},
	}
}

// TestPrometheusSinkRecordsMetrics ensures gauges and counters follow the event stream.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), runBatch()))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.bucketsIndexed))
	require.Equal(t, 4.0, testutil.ToFloat64(sink.pagesTotal))
	require.Equal(t, 75.0, testutil.ToFloat64(sink.recordsEstimate))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesProcessed.WithLabelValues("done")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesProcessed.WithLabelValues("failed")))
	require.Equal(t, 40.0, testutil.ToFloat64(sink.recordsFlushed))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runRuntime, "harvest_run_runtime_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), runBatch()))

	require.Equal(t, 8, logs.Len())
	require.Equal(t, 3, logs.FilterLevelExact(zapcore.DebugLevel).Len())
	indexed := logs.FilterField(zap.String("bucket", "a")).All()
	require.Len(t, indexed, 1)
	require.EqualValues(t, 3, indexed[0].ContextMap()["pages"])
}
