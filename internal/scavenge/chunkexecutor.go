package scavenge

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gastrolog/internal/chunk"
)

// ChunkExecutorConfig configures a ChunkExecutor.
type ChunkExecutorConfig struct {
	Hasher    Hasher
	Threshold float64
	Throttle  *Throttle

	// UnsafeIgnoreHardDeletes, when set, discards every record of a
	// tombstoned stream outright, including the tombstone record itself
	// (spec.md §4.4). Off by default: a tombstoned stream normally keeps
	// its tombstone so readers can still observe the stream was deleted.
	UnsafeIgnoreHardDeletes bool
}

// ChunkExecutor is the third pipeline stage: it rewrites every chunk whose
// accrued weight cleared the configured threshold, dropping any record a
// stream's resolved DiscardPoint says to discard. It never decides weights
// or discard points itself; those came out of the Calculator.
type ChunkExecutor struct {
	state    StateForChunkExecutor
	rewriter ChunkRewriter
	log      ScavengerLog
	cfg      ChunkExecutorConfig
}

// NewChunkExecutor constructs a ChunkExecutor.
func NewChunkExecutor(state StateForChunkExecutor, rewriter ChunkRewriter, log ScavengerLog, cfg ChunkExecutorConfig) *ChunkExecutor {
	if cfg.Hasher == nil {
		cfg.Hasher = XXHash
	}
	if log == nil {
		log = NewSlogScavengerLog(nil)
	}
	return &ChunkExecutor{state: state, rewriter: rewriter, log: log, cfg: cfg}
}

// Run rewrites every chunk above the weight threshold, resuming after
// checkpoint.DoneChunk, and returns the checkpoint for PhaseMergingChunks.
func (ce *ChunkExecutor) Run(ctx context.Context, checkpoint Checkpoint) (Checkpoint, error) {
	chunks, err := ce.state.ChunksAboveThreshold(ce.cfg.Threshold)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: list chunks above threshold: %v", ErrIoFailure, err)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Time().Before(chunks[j].Time()) })

	var zero chunk.ChunkID
	resuming := checkpoint.DoneChunk != zero
	shouldKeep := ce.shouldKeepFor(checkpoint.Point)

	for _, id := range chunks {
		if resuming {
			if id != checkpoint.DoneChunk {
				continue
			}
			resuming = false
			continue
		}

		if ce.cfg.Throttle != nil {
			if err := ce.cfg.Throttle.Wait(ctx); err != nil {
				return Checkpoint{Phase: PhaseExecutingChunks, Point: checkpoint.Point, DoneChunk: checkpoint.DoneChunk}, ErrCancelled
			}
		}

		kept, discarded, err := ce.rewriter.RewriteChunk(ctx, id, shouldKeep)
		if err != nil {
			if errors.Is(err, ErrCancelled) || errors.Is(ctx.Err(), context.Canceled) {
				return Checkpoint{Phase: PhaseExecutingChunks, Point: checkpoint.Point, DoneChunk: checkpoint.DoneChunk}, ErrCancelled
			}
			return Checkpoint{}, fmt.Errorf("rewrite chunk %s: %w", id, err)
		}

		ce.log.ChunkRewritten(id.String(), kept, discarded)
		checkpoint.DoneChunk = id
	}

	return Checkpoint{Phase: PhaseMergingChunks, Point: checkpoint.Point}, nil
}

// shouldKeepFor returns the predicate supplied to ChunkRewriter for a single
// run, bound to point (the run's target scavenge point): it decides, per
// record, whether the stream it belongs to has discarded it yet.
func (ce *ChunkExecutor) shouldKeepFor(point ScavengePoint) func(chunk.Record, chunk.RecordRef) (bool, error) {
	return func(rec chunk.Record, ref chunk.RecordRef) (bool, error) {
		sr, ok := DecodeStreamRecord(rec)
		if !ok {
			return true, nil
		}
		if sr.StreamID == ScavengesStreamName {
			return true, nil
		}

		// Invariant 7: no record at or after the run's target scavenge
		// point is ever discarded by that run.
		if !refIsBeforeTarget(ref, point.Ref) {
			return true, nil
		}

		if !sr.SelfCommitted {
			// Open question 2: conservatively keep every record belonging to a
			// transactional, non-self-committed prepare.
			return true, nil
		}

		hash := ce.cfg.Hasher(sr.StreamID)
		isCollision, err := ce.state.IsCollision(hash)
		if err != nil {
			return true, fmt.Errorf("%w: check collision for hash %d: %v", ErrIoFailure, hash, err)
		}

		handle := HashHandle(hash)
		if isCollision {
			handle = IDHandle(sr.StreamID, hash)
		}

		var data StreamData
		var found bool
		if sr.IsMetastream() {
			data, found, err = ce.state.GetMetastreamData(handle)
		} else {
			data, found, err = ce.state.GetOriginalStreamData(handle)
		}
		if err != nil {
			return true, fmt.Errorf("%w: load stream data: %v", ErrIoFailure, err)
		}
		if !found {
			return true, nil
		}

		decision := retentionDecision{
			tombstoned:              data.MaybeTombstoned,
			isMetastream:            sr.IsMetastream(),
			discardPoint:            data.DiscardPoint,
			maybeDiscardPoint:       data.MaybeDiscardPoint,
			maxAgeSeconds:           data.MaxAgeSeconds,
			unsafeIgnoreHardDeletes: ce.cfg.UnsafeIgnoreHardDeletes,
		}
		return decision.shouldKeep(sr.EventNumber, sr.Timestamp, point.Timestamp), nil
	}
}
