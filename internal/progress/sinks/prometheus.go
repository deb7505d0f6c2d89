package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/etym-crawler/internal/progress"
)

// PrometheusSink exports run progress as gauges and counters.
type PrometheusSink struct {
	runsStarted     prometheus.Counter
	runsCompleted   *prometheus.CounterVec
	runRuntime      *prometheus.HistogramVec
	bucketsIndexed  prometheus.Gauge
	pagesTotal      prometheus.Gauge
	recordsEstimate prometheus.Gauge
	pagesProcessed  *prometheus.CounterVec
	recordsFlushed  prometheus.Counter
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Total harvest runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Total harvest runs completed partitioned by result.",
		}, []string{"result"}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_run_runtime_seconds",
			Help:    "Wall time per completed harvest run.",
			Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"result"}),
		bucketsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_buckets_indexed",
			Help: "Buckets whose pagination has been read in the current run.",
		}),
		pagesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_pages_discovered",
			Help: "Listing pages discovered so far in the current run.",
		}),
		recordsEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_records_estimate",
			Help: "Records the site reports for the indexed buckets.",
		}),
		pagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_pages_processed_total",
			Help: "Listing pages processed partitioned by result.",
		}, []string{"result"}),
		recordsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_records_flushed_total",
			Help: "Records written to cache files.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.bucketsIndexed,
		s.pagesTotal,
		s.recordsEstimate,
		s.pagesProcessed,
		s.recordsFlushed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			s.bucketsIndexed.Set(0)
			s.pagesTotal.Set(0)
			s.recordsEstimate.Set(0)
		case progress.StageBucketIndexed:
			s.bucketsIndexed.Inc()
			s.pagesTotal.Add(float64(evt.Pages))
			s.recordsEstimate.Add(float64(evt.Items))
		case progress.StageDiscoveryDone:
			s.pagesTotal.Set(float64(evt.Pages))
			s.recordsEstimate.Set(float64(evt.Items))
		case progress.StagePageDone:
			s.pagesProcessed.WithLabelValues("done").Inc()
		case progress.StagePageFailed:
			s.pagesProcessed.WithLabelValues("failed").Inc()
		case progress.StageBatchFlushed:
			s.recordsFlushed.Add(float64(evt.Records))
		case progress.StageRunDone:
			s.finish(evt, "success")
		case progress.StageRunError:
			s.finish(evt, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
