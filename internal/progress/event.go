package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageBucketIndexed Stage = "BUCKET_INDEXED"
	StageDiscoveryDone Stage = "DISCOVERY_DONE"
	StagePageDone      Stage = "PAGE_DONE"
	StagePageFailed    Stage = "PAGE_FAILED"
	StageBatchFlushed  Stage = "BATCH_FLUSHED"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
)

// Event captures a single step of harvest progress.
type Event struct {
	// RunID identifies one harvest run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Bucket is set for BUCKET_INDEXED.
	Bucket string
	// Pages carries the page count of a bucket or the discovered total.
	Pages int64
	// Items carries the item count of a bucket or the discovered total.
	Items int64
	// Records is the number of records in a flushed batch.
	Records int64
	// Dur is the run's wall time on RUN_DONE and RUN_ERROR.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageDiscoveryDone, StagePageDone, StagePageFailed, StageRunDone, StageRunError:
	case StageBucketIndexed:
		if e.Bucket == "" {
			return errors.New("bucket indexed requires bucket")
		}
	case StageBatchFlushed:
		if e.Records <= 0 {
			return errors.New("batch flushed requires records")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}
