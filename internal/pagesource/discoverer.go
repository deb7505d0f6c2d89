package pagesource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// Discoverer runs the indexing phase: one listing fetch per bucket.
type Discoverer struct {
	site      Site
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	tracker   crawler.Tracker
	logger    *zap.Logger
}

// NewDiscoverer wires a Discoverer. tracker and logger may be nil.
func NewDiscoverer(
	site Site,
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	tracker crawler.Tracker,
	logger *zap.Logger,
) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		site:      site,
		fetcher:   fetcher,
		extractor: extractor,
		tracker:   tracker,
		logger:    logger.Named("discovery"),
	}
}

// Discover fetches page 1 of every requested bucket in alphabetical order,
// whatever order buckets come in, and reads its page and item counts.
// Duplicates are indexed once. Any failure aborts discovery with a discovery
// error.
func (d *Discoverer) Discover(ctx context.Context, buckets []crawler.Bucket) (*Plan, error) {
	if len(buckets) == 0 {
		return nil, crawler.DiscoveryError(0, "no buckets to index", nil)
	}
	plan := &Plan{
		site:       d.site,
		buckets:    make([]crawler.Bucket, 0, len(buckets)),
		pageCounts: make(map[crawler.Bucket]int, len(buckets)),
	}
	requested := make(map[crawler.Bucket]struct{}, len(buckets))
	for _, b := range buckets {
		if !b.Valid() {
			return nil, crawler.DiscoveryError(b, fmt.Sprintf("invalid bucket %q", rune(b)), nil)
		}
		requested[b] = struct{}{}
	}
	for _, b := range crawler.Alphabet() {
		if _, ok := requested[b]; !ok {
			continue
		}
		pages, items, err := d.indexBucket(ctx, b)
		if err != nil {
			return nil, err
		}
		plan.buckets = append(plan.buckets, b)
		plan.pageCounts[b] = pages
		plan.totalItems += items
		if d.tracker != nil {
			d.tracker.BucketIndexed(b, pages, items)
		}
		d.logger.Debug("bucket indexed",
			zap.String("bucket", b.String()),
			zap.Int("pages", pages),
			zap.Int("items", items),
		)
	}
	if d.tracker != nil {
		d.tracker.DiscoveryDone(plan.TotalPages(), plan.totalItems)
	}
	d.logger.Info("discovery complete",
		zap.Int("buckets", len(plan.buckets)),
		zap.Int("pages", plan.TotalPages()),
		zap.Int("items", plan.totalItems),
	)
	return plan, nil
}

func (d *Discoverer) indexBucket(ctx context.Context, b crawler.Bucket) (int, int, error) {
	doc, err := d.fetcher.FetchDocument(ctx, d.site.BucketURL(b, 1))
	if err != nil {
		return 0, 0, crawler.DiscoveryError(b, "fetch first listing page", err)
	}
	pages, err := d.extractor.PageCount(doc)
	if err != nil {
		return 0, 0, crawler.DiscoveryError(b, "read page count", err)
	}
	items, err := d.extractor.ItemCount(doc)
	if err != nil {
		return 0, 0, crawler.DiscoveryError(b, "read item count", err)
	}
	if pages < 1 {
		return 0, 0, crawler.DiscoveryError(b, fmt.Sprintf("page count %d is not positive", pages), nil)
	}
	return pages, items, nil
}
