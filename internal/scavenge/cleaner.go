package scavenge

import (
	"context"
	"fmt"
)

// CleanerConfig configures a Cleaner.
type CleanerConfig struct {
	// ReclaimArchived, when set, also drops originalStreamData and its
	// paired metastreamData for tombstoned (StatusArchived) streams. Off by
	// default: an archived stream's data is cheap to keep and an operator
	// may still want GetOriginalStreamData to answer "was this ever
	// tombstoned" after the fact (spec.md §4.6).
	ReclaimArchived bool
}

// Cleaner is the fifth and final pipeline stage: once every chunk and the
// stream index have been rewritten, it reclaims the per-run bookkeeping
// ScavengeState accumulated (chunk weights, timestamp ranges), the same way
// internal/orchestrator/retention.go's expireChunk drops a chunk's metadata
// once its data and index entries are gone, and drops originalStreamData
// (and its paired metastreamData) for any stream the Calculator marked
// StatusSpent — it has no retention rule left and nothing more to discard —
// or, if configured, StatusArchived.
type Cleaner struct {
	state StateForCleaner
	log   ScavengerLog
	cfg   CleanerConfig
}

// NewCleaner constructs a Cleaner.
func NewCleaner(state StateForCleaner, log ScavengerLog, cfg CleanerConfig) *Cleaner {
	if log == nil {
		log = NewSlogScavengerLog(nil)
	}
	return &Cleaner{state: state, log: log, cfg: cfg}
}

// Run reclaims every stream whose retention work is done, clears this run's
// per-chunk bookkeeping, and returns the checkpoint for PhaseDone.
func (c *Cleaner) Run(_ context.Context, checkpoint Checkpoint) (Checkpoint, error) {
	handles, err := c.state.AllStreamHandles()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: list stream handles: %v", ErrIoFailure, err)
	}

	for _, handle := range handles {
		data, ok, err := c.state.GetOriginalStreamData(handle)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("%w: load original stream data: %v", ErrIoFailure, err)
		}
		if !ok {
			continue
		}

		reclaim := data.Status == StatusSpent || (data.Status == StatusArchived && c.cfg.ReclaimArchived)
		if !reclaim {
			continue
		}

		if err := c.state.DeleteOriginalStreamData(handle); err != nil {
			return Checkpoint{}, fmt.Errorf("%w: delete original stream data: %v", ErrIoFailure, err)
		}
		if data.MetastreamHandle != nil {
			if err := c.state.DeleteMetastreamData(*data.MetastreamHandle); err != nil {
				return Checkpoint{}, fmt.Errorf("%w: delete metastream data: %v", ErrIoFailure, err)
			}
		}
		c.log.StreamReclaimed(handle, data.Status)
	}

	if err := c.state.ClearChunkWeights(); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: clear chunk weights: %v", ErrIoFailure, err)
	}
	if err := c.state.ClearChunkTimeStampRanges(); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: clear chunk timestamp ranges: %v", ErrIoFailure, err)
	}

	return Checkpoint{Phase: PhaseDone, Point: checkpoint.Point}, nil
}
