package scavenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gastrolog/internal/chunk"
	"gastrolog/internal/index/streamindex"
)

// maxAgeWalkPageSize bounds how many index entries the Calculator reads per
// call while resolving a rolling max-age window to a concrete event number.
// Kept deliberately small (spec.md §4.3: "bounded slices, e.g. 100 per
// call") so a single stream with millions of events can't monopolize a
// cooperative scavenge run.
const maxAgeWalkPageSize = 100

// Weight added to each chunk once per stream that has discardable events
// in it, pinned to the values spec.md §4.3 reports as observed in practice:
// 2 for a tombstoned stream, 2 for a stream with a maxAge or maxCount rule,
// and 1 otherwise (for example, a stream truncated by truncateBefore alone).
const (
	weightDiscard          = 1.0
	weightMetadataReplace  = 2.0
	weightTombstoneDiscard = 2.0
)

// CalculatorConfig configures a Calculator.
type CalculatorConfig struct {
	Hasher Hasher
}

// Calculator is the second pipeline stage: for every Active stream the
// Accumulator recorded facts about, it resolves a confirmed DiscardPoint and
// a tentative MaybeDiscardPoint (folding in maxCount and a rolling max-age
// window, both of which need index lookups the Accumulator doesn't have
// cause to make), tallies how much rewrite weight each chunk accrues as a
// result, and updates the stream's status.
type Calculator struct {
	state StateForCalculator
	index streamindex.Manager
	cfg   CalculatorConfig
}

// NewCalculator constructs a Calculator over state and the stream index
// used to resolve max-age windows, maxCount, and locate discarded records'
// chunks.
func NewCalculator(state StateForCalculator, index streamindex.Manager, cfg CalculatorConfig) *Calculator {
	if cfg.Hasher == nil {
		cfg.Hasher = XXHash
	}
	return &Calculator{state: state, index: index, cfg: cfg}
}

// Run resolves every stream handle recorded since checkpoint.DoneStreamHash
// and returns the checkpoint for PhaseExecutingChunks on success.
func (c *Calculator) Run(ctx context.Context, checkpoint Checkpoint) (Checkpoint, error) {
	handles, err := c.state.AllStreamHandles()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: list stream handles: %v", ErrIoFailure, err)
	}

	resuming := checkpoint.DoneStreamHash != 0
	for i, handle := range handles {
		if resuming {
			if handle.Hash() != checkpoint.DoneStreamHash {
				continue
			}
			resuming = false
			continue
		}

		if i%200 == 0 && ctx.Err() != nil {
			return Checkpoint{Phase: PhaseCalculating, Point: checkpoint.Point, DoneStreamHash: checkpoint.DoneStreamHash}, ErrCancelled
		}

		if err := c.resolveStream(ctx, handle, checkpoint.Point); err != nil {
			return Checkpoint{}, err
		}
		checkpoint.DoneStreamHash = handle.Hash()
	}

	return Checkpoint{Phase: PhaseExecutingChunks, Point: checkpoint.Point}, nil
}

// resolveStream resolves handle's definite and tentative discard points per
// spec.md §4.3's seven-step algorithm and updates its status, skipping
// streams the Accumulator or a previous run already marked as having no
// live retention work left (Status != StatusActive).
func (c *Calculator) resolveStream(ctx context.Context, handle StreamHandle, point ScavengePoint) error {
	data, ok, err := c.state.GetOriginalStreamData(handle)
	if err != nil {
		return fmt.Errorf("%w: load original stream data: %v", ErrIoFailure, err)
	}
	if !ok || data.Status != StatusActive {
		return nil
	}

	lastEventNumber, hasLast, err := c.index.GetLastEventNumber(handle.Hash(), point.Ref)
	if err != nil {
		if !errors.Is(err, streamindex.ErrNotBuilt) {
			return fmt.Errorf("%w: resolve last event number: %v", ErrIoFailure, err)
		}
		hasLast = false
	}

	hasRetentionRule := data.MaxAgeSeconds != nil || data.MaxCount != nil

	definite := data.DiscardPoint
	maybe := data.MaybeDiscardPoint

	if !data.MaybeTombstoned {
		// Step 3: fold confirmed rules into the definite discard point.
		// truncateBefore is already folded in by the Accumulator as soon as
		// it is observed; maxCount needs the stream's last event number,
		// which only the Calculator resolves.
		if data.MaxCount != nil && hasLast && lastEventNumber >= *data.MaxCount {
			definite = definite.Or(DiscardIncludingEvent(lastEventNumber - *data.MaxCount))
		}

		// Step 4: raise the tentative point with the rolling max-age window.
		maybe = definite
		if data.MaxAgeSeconds != nil {
			resolved, err := c.resolveMaxAge(ctx, handle, *data.MaxAgeSeconds, point, lastEventNumber, hasLast)
			if err != nil {
				return err
			}
			maybe = maybe.Or(resolved)
		}
	}
	// A tombstoned stream skips straight to step 5: the Accumulator already
	// recorded the definite discard point (everything but the tombstone).

	// Step 5: monotonicity guard — discard points only ever move forward.
	definite = data.DiscardPoint.Or(definite)
	maybe = data.MaybeDiscardPoint.Or(maybe).Or(definite)

	// Step 6: weight attribution, over the broader (maybe) range since it
	// is always a superset of the definite range.
	if maybe.Compare(KeepAll()) != 0 {
		weight := weightDiscard
		switch {
		case data.MaybeTombstoned:
			weight = weightTombstoneDiscard
		case hasRetentionRule:
			weight = weightMetadataReplace
		}
		if err := c.applyChunkWeights(handle, maybe, point, weight); err != nil {
			return err
		}
	}

	data.DiscardPoint = definite
	data.MaybeDiscardPoint = maybe

	// Step 7: status transition.
	switch {
	case data.MaybeTombstoned:
		data.Status = StatusArchived
	case !hasRetentionRule && maybe.Compare(KeepAll()) == 0:
		data.Status = StatusSpent
	default:
		data.Status = StatusActive
	}

	if err := c.state.SetOriginalStreamData(handle, data); err != nil {
		return fmt.Errorf("%w: save resolved discard point: %v", ErrIoFailure, err)
	}
	return nil
}

// resolveMaxAge walks the stream index forward in bounded pages looking for
// the first event at or after (targetSP.effectiveNow - maxAge); spec.md
// explicitly rejects guessing the backward-binary-search version of this, so
// this is the coarse linear approximation it asks for instead. The stream's
// last event is never discarded by max age alone, matching every other
// discard path's "a stream with events always keeps at least one".
func (c *Calculator) resolveMaxAge(ctx context.Context, handle StreamHandle, maxAgeSeconds int64, point ScavengePoint, lastEventNumber uint64, hasLast bool) (DiscardPoint, error) {
	if !hasLast {
		return KeepAll(), nil
	}
	cutoff := point.Timestamp.Add(-time.Duration(maxAgeSeconds) * time.Second)

	var from uint64
	for from < lastEventNumber {
		if ctx.Err() != nil {
			return KeepAll(), ErrCancelled
		}

		page, err := c.index.ReadEventInfoForward(handle.Hash(), from, maxAgeWalkPageSize, point.Ref)
		if err != nil {
			if errors.Is(err, streamindex.ErrNotBuilt) {
				return KeepAll(), nil
			}
			return KeepAll(), fmt.Errorf("%w: walk stream index for max age: %v", ErrIoFailure, err)
		}
		if len(page) == 0 {
			break
		}

		for _, entry := range page {
			if entry.EventNumber >= lastEventNumber {
				return DiscardBeforeEvent(lastEventNumber), nil
			}
			if !entry.Timestamp.Before(cutoff) {
				return DiscardBeforeEvent(entry.EventNumber), nil
			}
		}

		from = page[len(page)-1].EventNumber + 1
	}

	return DiscardBeforeEvent(lastEventNumber), nil
}

// applyChunkWeights adds weight to every chunk containing an event this
// stream's final discard point drops, walking the index the same bounded
// way resolveMaxAge does.
func (c *Calculator) applyChunkWeights(handle StreamHandle, final DiscardPoint, point ScavengePoint, weight float64) error {
	var from uint64
	firstKept := final.FirstEventToKeep()
	seen := make(map[chunk.ChunkID]bool)

	for from < firstKept {
		page, err := c.index.ReadEventInfoForward(handle.Hash(), from, maxAgeWalkPageSize, point.Ref)
		if err != nil {
			if errors.Is(err, streamindex.ErrNotBuilt) {
				return nil
			}
			return fmt.Errorf("%w: walk stream index for chunk weights: %v", ErrIoFailure, err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, entry := range page {
			if entry.EventNumber >= firstKept {
				return nil
			}
			if !seen[entry.Ref.ChunkID] {
				seen[entry.Ref.ChunkID] = true
				if err := c.state.AddChunkWeight(entry.Ref.ChunkID, weight); err != nil {
					return fmt.Errorf("%w: add chunk weight: %v", ErrIoFailure, err)
				}
			}
		}

		from = page[len(page)-1].EventNumber + 1
	}

	return nil
}
