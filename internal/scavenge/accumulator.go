package scavenge

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gastrolog/internal/chunk"
	"gastrolog/internal/streamrecord"
)

// AccumulatorConfig configures an Accumulator.
type AccumulatorConfig struct {
	Hasher                  Hasher
	ScavengePoints          ScavengePointSource
	Threshold               int
	CancellationCheckPeriod int
}

// Accumulator is the first pipeline stage: it sweeps every chunk, in log
// order, up to the position a freshly minted ScavengePoint was written at,
// and folds every stream-bearing record it sees into ScavengeState's
// per-stream retention facts. It never rewrites anything; it only learns.
type Accumulator struct {
	chunkManager chunk.ChunkManager
	state        StateForAccumulator
	collisions   *CollisionDetector
	cfg          AccumulatorConfig
}

// NewAccumulator constructs an Accumulator over chunkManager and state.
func NewAccumulator(chunkManager chunk.ChunkManager, state StateForAccumulator, cfg AccumulatorConfig) (*Accumulator, error) {
	if cfg.Hasher == nil {
		cfg.Hasher = XXHash
	}
	if cfg.CancellationCheckPeriod <= 0 {
		cfg.CancellationCheckPeriod = 1000
	}
	collisions, err := NewCollisionDetector(state)
	if err != nil {
		return nil, err
	}
	return &Accumulator{chunkManager: chunkManager, state: state, collisions: collisions, cfg: cfg}, nil
}

// NewScavengePoint mints the ScavengePoint a fresh run will be bounded by.
func (a *Accumulator) NewScavengePoint() (ScavengePoint, error) {
	if a.cfg.ScavengePoints == nil {
		return ScavengePoint{}, errors.New("scavenge: accumulator has no ScavengePointSource configured")
	}
	return a.cfg.ScavengePoints.NextScavengePoint(a.cfg.Threshold)
}

func (a *Accumulator) orderedChunks() ([]chunk.ChunkMeta, error) {
	metas, err := a.chunkManager.List()
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %v", ErrIoFailure, err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID.Time().Before(metas[j].ID.Time()) })
	return metas, nil
}

// Run sweeps from checkpoint.DoneAccumulating (or the start of the log, if
// the zero value) through checkpoint.Point.Ref inclusive, folding every
// stream record it observes into ScavengeState. It returns the checkpoint
// for PhaseCalculating on success.
func (a *Accumulator) Run(ctx context.Context, checkpoint Checkpoint) (Checkpoint, error) {
	metas, err := a.orderedChunks()
	if err != nil {
		return Checkpoint{}, err
	}

	boundary := checkpoint.Point.Ref
	resumeFrom := checkpoint.DoneAccumulating
	var resumeChunkFound bool
	if resumeFrom == (chunk.RecordRef{}) {
		resumeChunkFound = true
	}

	processed := 0
	for _, meta := range metas {
		if !resumeChunkFound {
			if meta.ID != resumeFrom.ChunkID {
				continue
			}
			resumeChunkFound = true
		}

		next, recordsSeen, err := a.sweepChunk(ctx, meta.ID, resumeFrom, boundary, &processed)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return Checkpoint{Phase: PhaseAccumulating, Point: checkpoint.Point, DoneAccumulating: next}, ErrCancelled
			}
			return Checkpoint{}, err
		}
		resumeFrom = chunk.RecordRef{} // only the first resumed chunk seeks past a position

		if recordsSeen {
			checkpoint.DoneAccumulating = next
		}

		if meta.ID == boundary.ChunkID {
			break
		}
	}

	return Checkpoint{Phase: PhaseCalculating, Point: checkpoint.Point}, nil
}

// sweepChunk processes every stream record in chunkID strictly after
// skipBefore (when non-zero and in this chunk) and at or before boundary
// (when chunkID == boundary.ChunkID). It returns the ref of the last record
// processed and whether any record was processed.
func (a *Accumulator) sweepChunk(ctx context.Context, chunkID chunk.ChunkID, skipBefore, boundary chunk.RecordRef, processed *int) (chunk.RecordRef, bool, error) {
	cursor, err := a.chunkManager.OpenCursor(chunkID)
	if err != nil {
		return chunk.RecordRef{}, false, fmt.Errorf("%w: open cursor for chunk %s: %v", ErrIoFailure, chunkID, err)
	}
	defer cursor.Close()

	if skipBefore != (chunk.RecordRef{}) && skipBefore.ChunkID == chunkID {
		if err := cursor.Seek(skipBefore); err != nil {
			return chunk.RecordRef{}, false, fmt.Errorf("%w: seek to resume position in chunk %s: %v", ErrIoFailure, chunkID, err)
		}
		// Seek lands the cursor on skipBefore itself; advance once more so
		// we don't reprocess a record already folded into state.
		if _, _, err := cursor.Next(); err != nil && !errors.Is(err, chunk.ErrNoMoreRecords) {
			return chunk.RecordRef{}, false, fmt.Errorf("%w: advance past resume position in chunk %s: %v", ErrIoFailure, chunkID, err)
		}
	}

	hasBoundary := boundary.ChunkID == chunkID
	var last chunk.RecordRef
	var seen bool

	for {
		*processed++
		if *processed%a.cfg.CancellationCheckPeriod == 0 && ctx.Err() != nil {
			return last, seen, ErrCancelled
		}

		rec, ref, err := cursor.Next()
		if err != nil {
			if errors.Is(err, chunk.ErrNoMoreRecords) {
				return last, seen, nil
			}
			return last, seen, fmt.Errorf("%w: read record in chunk %s: %v", ErrIoFailure, chunkID, err)
		}

		if hasBoundary && ref.Pos > boundary.Pos {
			return last, seen, nil
		}

		if err := a.foldRecord(rec, ref, chunkID); err != nil {
			return last, seen, err
		}
		last = ref
		seen = true

		if hasBoundary && ref.Pos == boundary.Pos {
			return last, seen, nil
		}
	}
}

func (a *Accumulator) foldRecord(rec chunk.Record, ref chunk.RecordRef, chunkID chunk.ChunkID) error {
	sr, ok := DecodeStreamRecord(rec)
	if !ok {
		return nil
	}
	if sr.StreamID == ScavengesStreamName {
		return nil
	}

	if err := a.state.SetChunkTimeStampRange(chunkID, sr.Timestamp); err != nil {
		return fmt.Errorf("%w: record chunk timestamp range: %v", ErrIoFailure, err)
	}

	if sr.IsMetastream() {
		return a.foldMetastreamRecord(sr)
	}
	return a.foldOriginalRecord(sr)
}

func (a *Accumulator) foldMetastreamRecord(sr StreamRecord) error {
	// A tombstone is never valid inside a metastream: metastreams only ever
	// carry metadata records. Fail before any mutation, so a corrupt log
	// aborts the run rather than silently losing the tombstone's intent
	// (spec.md §4.2).
	if sr.Kind == streamrecord.KindTombstone {
		return fmt.Errorf("%w: tombstone record inside metastream %q", ErrInvalidMetastreamOperation, sr.StreamID)
	}

	metaHandle, err := a.collisions.Observe(sr.StreamID, a.cfg.Hasher(sr.StreamID))
	if err != nil {
		return err
	}
	metaData, _, err := a.state.GetMetastreamData(metaHandle)
	if err != nil {
		return fmt.Errorf("%w: load metastream data: %v", ErrIoFailure, err)
	}
	// A metastream keeps only its most recent metadata record; every older
	// one is superseded the moment a newer one is observed.
	metaData.DiscardPoint = metaData.DiscardPoint.Or(DiscardBeforeEvent(sr.EventNumber))
	metaData.MaybeDiscardPoint = metaData.MaybeDiscardPoint.Or(metaData.DiscardPoint)
	if err := a.state.SetMetastreamData(metaHandle, metaData); err != nil {
		return fmt.Errorf("%w: save metastream data: %v", ErrIoFailure, err)
	}

	originalName, ok := sr.OriginalStreamID()
	if !ok {
		return fmt.Errorf("%w: metastream %q has no governed stream", ErrInvalidMetastreamOperation, sr.StreamID)
	}
	origHandle, err := a.collisions.Observe(originalName, a.cfg.Hasher(originalName))
	if err != nil {
		return err
	}
	origData, _, err := a.state.GetOriginalStreamData(origHandle)
	if err != nil {
		return fmt.Errorf("%w: load original stream data: %v", ErrIoFailure, err)
	}

	if sr.Kind == "" || sr.Kind == streamrecord.KindMetadata {
		if sr.TruncateBefore != nil {
			origData.DiscardPoint = origData.DiscardPoint.Or(DiscardBeforeEvent(*sr.TruncateBefore))
			origData.MaybeDiscardPoint = origData.MaybeDiscardPoint.Or(origData.DiscardPoint)
		}
		if sr.MaxAgeSeconds != nil {
			origData.MaxAgeSeconds = sr.MaxAgeSeconds
		}
		if sr.MaxCount != nil {
			origData.MaxCount = sr.MaxCount
		}
	}
	origData.MetastreamHandle = &metaHandle

	return a.state.SetOriginalStreamData(origHandle, origData)
}

func (a *Accumulator) foldOriginalRecord(sr StreamRecord) error {
	handle, err := a.collisions.Observe(sr.StreamID, a.cfg.Hasher(sr.StreamID))
	if err != nil {
		return err
	}
	data, _, err := a.state.GetOriginalStreamData(handle)
	if err != nil {
		return fmt.Errorf("%w: load original stream data: %v", ErrIoFailure, err)
	}

	if sr.Kind == streamrecord.KindTombstone {
		data.MaybeTombstoned = true
		data.DiscardPoint = data.DiscardPoint.Or(DiscardBeforeEvent(sr.EventNumber))
		data.MaybeDiscardPoint = data.MaybeDiscardPoint.Or(data.DiscardPoint)
		if err := a.propagateTombstone(sr.StreamID); err != nil {
			return err
		}
	}

	return a.state.SetOriginalStreamData(handle, data)
}

// propagateTombstone mirrors a tombstone's effect onto the governed stream's
// metastream data, so the ChunkExecutor and IndexExecutor can tell a
// metastream is moot from the metastream's own StreamData without having to
// cross-reference the original stream (spec.md §3: MetastreamData carries
// its own isTombstoned).
func (a *Accumulator) propagateTombstone(streamID string) error {
	metaName := streamrecord.MetastreamOf(streamID)
	metaHandle, err := a.collisions.Observe(metaName, a.cfg.Hasher(metaName))
	if err != nil {
		return err
	}
	metaData, _, err := a.state.GetMetastreamData(metaHandle)
	if err != nil {
		return fmt.Errorf("%w: load metastream data: %v", ErrIoFailure, err)
	}
	metaData.MaybeTombstoned = true
	if err := a.state.SetMetastreamData(metaHandle, metaData); err != nil {
		return fmt.Errorf("%w: save metastream data: %v", ErrIoFailure, err)
	}
	return nil
}
