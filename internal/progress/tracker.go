package progress

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// Phase is the coarse state of a run.
type Phase int32

// Run phases in order.
const (
	PhaseIdle Phase = iota
	PhaseIndexing
	PhaseFetching
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseIndexing:
		return "indexing"
	case PhaseFetching:
		return "fetching"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Unknown marks a total that discovery has not produced yet.
const Unknown = -1

// Snapshot is a point-in-time copy of a Tracker's counters.
type Snapshot struct {
	RunID           string        `json:"run_id"`
	Phase           string        `json:"phase"`
	BucketsIndexed  int64         `json:"buckets_indexed"`
	BucketsTotal    int64         `json:"buckets_total"`
	PagesDone       int64         `json:"pages_done"`
	PagesFailed     int64         `json:"pages_failed"`
	PagesTotal      int64         `json:"pages_total"`
	RecordsDone     int64         `json:"records_done"`
	RecordsEstimate int64         `json:"records_estimate"`
	BatchesFlushed  int64         `json:"batches_flushed"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// Tracker counts progress with atomics and mirrors milestones to an Emitter.
// All methods are safe for concurrent use.
type Tracker struct {
	runID   uuid.UUID
	emitter Emitter
	now     func() time.Time
	started atomic.Int64
	ended   atomic.Int64

	phase           atomic.Int32
	bucketsTotal    int64
	bucketsIndexed  atomic.Int64
	pagesDone       atomic.Int64
	pagesFailed     atomic.Int64
	pagesTotal      atomic.Int64
	recordsDone     atomic.Int64
	recordsEstimate atomic.Int64
	batchesFlushed  atomic.Int64
}

var _ crawler.Tracker = (*Tracker)(nil)

// NewTracker creates a tracker for a run over bucketsTotal buckets. emitter
// may be nil.
func NewTracker(bucketsTotal int, emitter Emitter) *Tracker {
	t := &Tracker{
		runID:        uuid.New(),
		emitter:      emitter,
		now:          time.Now,
		bucketsTotal: int64(bucketsTotal),
	}
	t.pagesTotal.Store(Unknown)
	t.recordsEstimate.Store(Unknown)
	return t
}

// RunID identifies the tracked run.
func (t *Tracker) RunID() uuid.UUID {
	return t.runID
}

// Start enters the indexing phase.
func (t *Tracker) Start() {
	t.started.Store(t.now().UnixNano())
	t.phase.Store(int32(PhaseIndexing))
	t.emit(Event{Stage: StageRunStart})
}

// BucketIndexed revises the page and record estimates upward.
func (t *Tracker) BucketIndexed(bucket crawler.Bucket, pages, items int) {
	t.bucketsIndexed.Add(1)
	addKnown(&t.pagesTotal, int64(pages))
	addKnown(&t.recordsEstimate, int64(items))
	t.emit(Event{Stage: StageBucketIndexed, Bucket: bucket.String(), Pages: int64(pages), Items: int64(items)})
}

// DiscoveryDone fixes the totals and enters the fetching phase.
func (t *Tracker) DiscoveryDone(totalPages, totalItems int) {
	t.pagesTotal.Store(int64(totalPages))
	t.recordsEstimate.Store(int64(totalItems))
	t.phase.Store(int32(PhaseFetching))
	t.emit(Event{Stage: StageDiscoveryDone, Pages: int64(totalPages), Items: int64(totalItems)})
}

// RecordDone counts one extracted record.
func (t *Tracker) RecordDone() {
	t.recordsDone.Add(1)
}

// PageDone counts one fully processed listing page.
func (t *Tracker) PageDone() {
	t.pagesDone.Add(1)
	t.emit(Event{Stage: StagePageDone})
}

// PageFailed counts one listing page abandoned after an error.
func (t *Tracker) PageFailed() {
	t.pagesFailed.Add(1)
	t.emit(Event{Stage: StagePageFailed})
}

// BatchFlushed counts one written cache file.
func (t *Tracker) BatchFlushed(records int) {
	t.batchesFlushed.Add(1)
	t.emit(Event{Stage: StageBatchFlushed, Records: int64(records)})
}

// Finish records the outcome of the run.
func (t *Tracker) Finish(err error) {
	t.ended.Store(t.now().UnixNano())
	evt := Event{Stage: StageRunDone, Dur: t.elapsed()}
	if err != nil {
		t.phase.Store(int32(PhaseFailed))
		evt.Stage = StageRunError
		evt.Note = err.Error()
	} else {
		t.phase.Store(int32(PhaseDone))
	}
	t.emit(evt)
}

// Snapshot copies the current counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		RunID:           t.runID.String(),
		Phase:           Phase(t.phase.Load()).String(),
		BucketsIndexed:  t.bucketsIndexed.Load(),
		BucketsTotal:    t.bucketsTotal,
		PagesDone:       t.pagesDone.Load(),
		PagesFailed:     t.pagesFailed.Load(),
		PagesTotal:      t.pagesTotal.Load(),
		RecordsDone:     t.recordsDone.Load(),
		RecordsEstimate: t.recordsEstimate.Load(),
		BatchesFlushed:  t.batchesFlushed.Load(),
		Elapsed:         t.elapsed(),
	}
}

func (t *Tracker) elapsed() time.Duration {
	start := t.started.Load()
	if start == 0 {
		return 0
	}
	end := t.ended.Load()
	if end == 0 {
		end = t.now().UnixNano()
	}
	return time.Duration(end - start)
}

func (t *Tracker) emit(evt Event) {
	if t.emitter == nil {
		return
	}
	evt.RunID = [16]byte(t.runID)
	evt.TS = t.now().UTC()
	t.emitter.Emit(evt)
}

// addKnown adds delta to v, treating Unknown as zero.
func addKnown(v *atomic.Int64, delta int64) {
	for {
		cur := v.Load()
		next := delta
		if cur != Unknown {
			next = cur + delta
		}
		if v.CompareAndSwap(cur, next) {
			return
		}
	}
}
