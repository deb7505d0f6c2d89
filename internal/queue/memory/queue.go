// Package memory provides the bounded in-process page queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// Queue is a bounded in-memory queue with context-aware operations.
// Enqueue blocks while the queue is full.
type Queue struct {
	ch      chan crawler.PageURL
	closeMu sync.Mutex
	closed  bool
}

var _ crawler.Queue = (*Queue)(nil)

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan crawler.PageURL, capacity),
	}
}

// Enqueue pushes a page into the queue or returns if the context ends.
// Enqueueing after Close is a programming error and panics.
func (q *Queue) Enqueue(ctx context.Context, page crawler.PageURL) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- page:
		return nil
	}
}

// Dequeue pops the next page, respecting context cancellation. Once the
// queue is closed and drained it returns crawler.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (crawler.PageURL, error) {
	select {
	case <-ctx.Done():
		return crawler.PageURL{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case page, ok := <-q.ch:
		if !ok {
			return crawler.PageURL{}, crawler.ErrQueueClosed
		}
		return page, nil
	}
}

// Len reports how many pages are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue bound.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close marks the end of input. Safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
