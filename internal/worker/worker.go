// Package worker implements the per-page harvest loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
	"github.com/JakeFAU/etym-crawler/internal/metrics"
	"github.com/JakeFAU/etym-crawler/internal/telemetry"
)

// DefaultFlushThreshold is the batch size at which records are written out.
const DefaultFlushThreshold = 100

// Config controls Worker behavior.
type Config struct {
	FlushThreshold int
	OnError        crawler.OnErrorPolicy
	// Tracer defaults to telemetry.Tracer().
	Tracer trace.Tracer
}

// Worker consumes listing pages from the queue, fetches every detail page
// they link to and writes the extracted records in batches. A Worker owns its
// batch; it is not shared between goroutines.
type Worker struct {
	name      string
	queue     crawler.Queue
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	writer    crawler.BatchWriter
	tracker   crawler.Tracker
	cfg       Config
	logger    *zap.Logger

	batch []crawler.Record
}

// New constructs a Worker. index only names the worker in logs and errors.
func New(
	index int,
	queue crawler.Queue,
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	writer crawler.BatchWriter,
	tracker crawler.Tracker,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}
	if cfg.OnError == "" {
		cfg.OnError = crawler.OnErrorAbort
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.Tracer()
	}
	return &Worker{
		name:      fmt.Sprintf("worker-%d", index),
		queue:     queue,
		fetcher:   fetcher,
		extractor: extractor,
		writer:    writer,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logger.Named("worker").With(zap.Int("index", index)),
		batch:     make([]crawler.Record, 0, cfg.FlushThreshold),
	}
}

// Name identifies the worker.
func (w *Worker) Name() string {
	return w.name
}

// Run processes pages until the queue is closed and drained, the context
// ends, or a page fails under the abort policy. Whatever is still batched is
// flushed before Run returns, even after cancellation. Cancellation itself is
// not reported as an error.
func (w *Worker) Run(ctx context.Context) (err error) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if ferr := w.flush(context.WithoutCancel(ctx)); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	for {
		page, derr := w.queue.Dequeue(ctx)
		if errors.Is(derr, crawler.ErrQueueClosed) {
			w.logger.Debug("queue drained")
			return nil
		}
		if derr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s: dequeue: %w", w.name, derr)
		}

		perr := w.processPage(ctx, page)
		if perr == nil {
			w.markPage(metrics.StatusSucceeded)
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if w.skippable(perr) {
			w.logger.Warn("skipping page",
				zap.String("bucket", page.Bucket.String()),
				zap.Int("page", page.Page),
				zap.String("url", page.URL),
				zap.Error(perr),
			)
			w.markPage(metrics.StatusSkipped)
			continue
		}
		w.logger.Error("page failed",
			zap.String("bucket", page.Bucket.String()),
			zap.Int("page", page.Page),
			zap.String("url", page.URL),
			zap.Error(perr),
		)
		w.markPage(metrics.StatusFailed)
		return perr
	}
}

func (w *Worker) processPage(ctx context.Context, page crawler.PageURL) (err error) {
	ctx, span := w.cfg.Tracer.Start(ctx, "worker.page", trace.WithAttributes(
		attribute.String("worker", w.name),
		attribute.String("bucket", page.Bucket.String()),
		attribute.Int("page", page.Page),
	))
	records := 0
	defer func() {
		span.SetAttributes(attribute.Int("records", records))
		telemetry.EndSpan(span, err)
	}()

	listing, err := w.fetcher.FetchDocument(ctx, page.URL)
	if err != nil {
		return err
	}
	links, err := w.extractor.DetailLinks(listing)
	if err != nil {
		return err
	}
	for _, link := range links {
		doc, err := w.fetcher.FetchDocument(ctx, string(link))
		if err != nil {
			return err
		}
		rec, err := w.extractor.Record(doc)
		if err != nil {
			return err
		}
		w.batch = append(w.batch, rec)
		records++
		metrics.ObserveRecord()
		if w.tracker != nil {
			w.tracker.RecordDone()
		}
		if len(w.batch) >= w.cfg.FlushThreshold {
			if err := w.flush(ctx); err != nil {
				return err
			}
		}
	}
	w.logger.Debug("page processed",
		zap.String("bucket", page.Bucket.String()),
		zap.Int("page", page.Page),
		zap.Int("links", len(links)),
	)
	return nil
}

// skippable reports whether err may be skipped under the configured policy.
// Cache failures always end the run.
func (w *Worker) skippable(err error) bool {
	if w.cfg.OnError != crawler.OnErrorSkip {
		return false
	}
	switch crawler.KindOf(err) {
	case crawler.KindFetch, crawler.KindExtraction:
		return true
	default:
		return false
	}
}

func (w *Worker) markPage(status string) {
	metrics.ObservePage(status)
	if w.tracker == nil {
		return
	}
	if status == metrics.StatusSucceeded {
		w.tracker.PageDone()
	} else {
		w.tracker.PageFailed()
	}
}

func (w *Worker) flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}
	n := len(w.batch)
	name, err := w.writer.WriteBatch(ctx, w.batch)
	w.batch = make([]crawler.Record, 0, w.cfg.FlushThreshold)
	if err != nil {
		return err
	}
	if w.tracker != nil {
		w.tracker.BatchFlushed(n)
	}
	w.logger.Debug("batch flushed", zap.String("file", name), zap.Int("records", n))
	return nil
}
