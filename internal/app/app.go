// Package app builds the long-lived components of a harvest run from
// configuration and runs them together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/api"
	"github.com/JakeFAU/etym-crawler/internal/cache"
	"github.com/JakeFAU/etym-crawler/internal/config"
	"github.com/JakeFAU/etym-crawler/internal/dispatcher"
	"github.com/JakeFAU/etym-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/etym-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/etym-crawler/internal/id/uuid"
	"github.com/JakeFAU/etym-crawler/internal/pagesource"
	"github.com/JakeFAU/etym-crawler/internal/progress"
	"github.com/JakeFAU/etym-crawler/internal/progress/sinks"
	"github.com/JakeFAU/etym-crawler/internal/telemetry"
	"github.com/JakeFAU/etym-crawler/internal/worker"
)

// Options overrides process-wide dependencies, mainly for tests.
type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Registerer receives the progress collectors. When nil they are
	// registered on the default registry only if metrics.addr is set.
	Registerer prometheus.Registerer
	// Transport replaces the pooled HTTP transport.
	Transport http.RoundTripper
	// SpanProcessors receive spans in addition to the debug log when
	// tracing is enabled.
	SpanProcessors []sdktrace.SpanProcessor
}

// App holds the components of one harvest run.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	hub        *progress.Hub
	tracker    *progress.Tracker
	dispatcher *dispatcher.Dispatcher
	server     *api.Server
	tracing    *sdktrace.TracerProvider
}

// New wires every component from cfg. It fails fast on invalid settings.
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		extra := make([]sdktrace.TracerProviderOption, 0, len(opts.SpanProcessors))
		for _, sp := range opts.SpanProcessors {
			extra = append(extra, sdktrace.WithSpanProcessor(sp))
		}
		var err error
		tp, err = telemetry.InitTracerProvider(context.Background(), cfg.Tracing.ServiceName, logger, extra...)
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
	}

	site, err := pagesource.NewSite(cfg.Site.BaseURL, cfg.Site.SearchPath)
	if err != nil {
		return nil, fmt.Errorf("site: %w", err)
	}
	backoffInitial, backoffMax := cfg.Backoff()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Site.UserAgent,
		Timeout:        cfg.Timeout(),
		MaxAttempts:    cfg.HTTP.MaxAttempts,
		PoolSize:       cfg.HTTP.PoolSize,
		BackoffInitial: backoffInitial,
		BackoffMax:     backoffMax,
		Transport:      opts.Transport,
	}, logger.Named("fetcher"))
	extractor := extract.New(cfg.Selectors)

	writer, err := cache.New(fs, cfg.Cache.Dir, uuid.New(), logger)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	progressSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}
	reg := opts.Registerer
	if reg == nil && cfg.Metrics.Addr != "" {
		reg = prometheus.DefaultRegisterer
	}
	if reg != nil {
		promSink, err := sinks.NewPrometheusSink(reg)
		if err != nil {
			return nil, fmt.Errorf("progress metrics: %w", err)
		}
		progressSinks = append(progressSinks, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, progressSinks...)

	buckets := cfg.Buckets()
	tracker := progress.NewTracker(len(buckets), hub)
	discoverer := pagesource.NewDiscoverer(site, fetcher, extractor, tracker, logger)
	d := dispatcher.New(discoverer, fetcher, extractor, writer, tracker, dispatcher.Config{
		Concurrency: cfg.Crawler.Concurrency,
		QueueDepth:  cfg.Crawler.QueueDepth,
		Buckets:     buckets,
		Worker: worker.Config{
			FlushThreshold: cfg.Crawler.FlushThreshold,
			OnError:        cfg.OnErrorPolicy(),
		},
	}, logger)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		hub:        hub,
		tracker:    tracker,
		dispatcher: d,
		tracing:    tp,
	}
	if cfg.Metrics.Addr != "" {
		a.server = api.NewServer(tracker, logger)
	}
	return a, nil
}

// Tracker exposes the run's progress counters.
func (a *App) Tracker() *progress.Tracker {
	return a.tracker
}

// Run performs the harvest. Progress reporting and the observability server
// live exactly as long as the run.
func (a *App) Run(ctx context.Context) error {
	auxCtx, stopAux := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		progress.Report(auxCtx, a.tracker, a.cfg.Progress.Interval, a.logger.Named("progress"))
	}()

	if a.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.server.Serve(auxCtx, a.cfg.Metrics.Addr); err != nil {
				a.logger.Error("observability server failed", zap.Error(err))
			}
		}()
	}

	a.logger.Info("harvest starting",
		zap.String("site", a.cfg.Site.BaseURL),
		zap.String("cache_dir", a.cfg.Cache.Dir),
		zap.Int("workers", a.cfg.Crawler.Concurrency),
	)
	a.tracker.Start()
	err := a.dispatcher.Run(ctx)
	a.tracker.Finish(err)
	progress.LogSnapshot(a.logger.Named("progress"), a.tracker.Snapshot())

	stopAux()
	wg.Wait()
	if cerr := a.hub.Close(context.WithoutCancel(ctx)); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Close shuts down tracing and flushes the logger.
func (a *App) Close() {
	if a.tracing != nil {
		if err := a.tracing.Shutdown(context.Background()); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
