// Package dispatcher runs a harvest: discovery first, then a fixed worker
// pool fed through a bounded queue.
package dispatcher

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
	"github.com/JakeFAU/etym-crawler/internal/pagesource"
	"github.com/JakeFAU/etym-crawler/internal/queue/memory"
	"github.com/JakeFAU/etym-crawler/internal/worker"
)

// Cache is the batch writer plus the directory reset done between phases.
type Cache interface {
	crawler.BatchWriter
	Reset() error
}

// Config controls pool and queue sizing.
type Config struct {
	Concurrency int
	QueueDepth  int
	Buckets     []crawler.Bucket
	Worker      worker.Config
}

// Dispatcher wires discovery, queue and workers for one run.
type Dispatcher struct {
	discoverer *pagesource.Discoverer
	fetcher    crawler.Fetcher
	extractor  crawler.Extractor
	cache      Cache
	tracker    crawler.Tracker
	cfg        Config
	logger     *zap.Logger
}

// New creates a Dispatcher. tracker and logger may be nil.
func New(
	discoverer *pagesource.Discoverer,
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	cache Cache,
	tracker crawler.Tracker,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = crawler.Alphabet()
	}
	return &Dispatcher{
		discoverer: discoverer,
		fetcher:    fetcher,
		extractor:  extractor,
		cache:      cache,
		tracker:    tracker,
		cfg:        cfg,
		logger:     logger.Named("dispatcher"),
	}
}

// Run performs one complete harvest. The cache directory is reset only after
// discovery succeeds, so a failed discovery leaves earlier output in place.
// The first fatal worker error cancels the rest and is returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	plan, err := d.discoverer.Discover(ctx, d.cfg.Buckets)
	if err != nil {
		return err
	}
	if err := d.cache.Reset(); err != nil {
		return err
	}

	d.logger.Info("starting workers",
		zap.Int("workers", d.cfg.Concurrency),
		zap.Int("queue_depth", d.cfg.QueueDepth),
		zap.Int("pages", plan.TotalPages()),
	)

	queue := memory.NewQueue(d.cfg.QueueDepth)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Concurrency; i++ {
		w := worker.New(i, queue, d.fetcher, d.extractor, d.cache, d.tracker, d.cfg.Worker, d.logger)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("worker panicked",
						zap.String("worker", w.Name()),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()),
					)
					err = crawler.ThreadFailure(w.Name(), r)
				}
			}()
			return w.Run(gctx)
		})
	}
	g.Go(func() error {
		defer queue.Close()
		return produce(gctx, plan.Pages(), queue)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("harvest canceled: %w", err)
	}
	d.logger.Info("harvest complete", zap.Int("pages", plan.TotalPages()))
	return nil
}

// produce streams every page of seq into queue, blocking while it is full.
// It stops quietly when ctx ends so the error that canceled it wins.
func produce(ctx context.Context, seq *pagesource.Sequence, queue crawler.Queue) error {
	for page, ok := seq.Next(); ok; page, ok = seq.Next() {
		if err := queue.Enqueue(ctx, page); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("enqueue page: %w", err)
		}
	}
	return nil
}
