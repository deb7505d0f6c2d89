package crawler

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
)

// ErrQueueClosed is returned by Queue.Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Fetcher retrieves a URL and returns its parsed HTML document. The returned
// document's Url field is set to the fetched address.
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) (*goquery.Document, error)
}

// Extractor pulls structure out of parsed pages. Implementations must not
// perform network or filesystem access.
type Extractor interface {
	DetailLinks(doc *goquery.Document) ([]DetailURL, error)
	Record(doc *goquery.Document) (Record, error)
	PageCount(doc *goquery.Document) (int, error)
	ItemCount(doc *goquery.Document) (int, error)
}

// BatchWriter persists a batch of records as one new cache file and returns its name.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []Record) (string, error)
}

// Queue is the bounded hand-off between the dispatcher and the workers.
type Queue interface {
	Enqueue(ctx context.Context, page PageURL) error
	Dequeue(ctx context.Context) (PageURL, error)
	Close()
}

// Tracker receives progress updates. It is observational only.
type Tracker interface {
	BucketIndexed(bucket Bucket, pages, items int)
	DiscoveryDone(totalPages, totalItems int)
	RecordDone()
	PageDone()
	PageFailed()
	BatchFlushed(records int)
}

// IDGenerator produces unique identifiers for cache file names.
type IDGenerator interface {
	NewID() (string, error)
}
