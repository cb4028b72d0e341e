package scavenge

import (
	"time"

	"gastrolog/internal/chunk"
)

// retentionDecision bundles the per-stream facts the ChunkExecutor and
// IndexExecutor both need to decide whether a single event survives a run,
// so the two stages apply spec.md §4.4/§4.5's tombstone and max-age rules
// identically instead of drifting apart.
type retentionDecision struct {
	tombstoned              bool
	isMetastream            bool
	discardPoint            DiscardPoint
	maybeDiscardPoint       DiscardPoint
	maxAgeSeconds           *int64
	unsafeIgnoreHardDeletes bool
}

// shouldKeep reports whether an event at eventNumber/timestamp survives,
// given effectiveNow (the owning run's targetSP.effectiveNow).
func (rd retentionDecision) shouldKeep(eventNumber uint64, timestamp, effectiveNow time.Time) bool {
	if rd.tombstoned {
		if rd.unsafeIgnoreHardDeletes {
			return false
		}
		if rd.isMetastream {
			return false
		}
	}

	if rd.discardPoint.ShouldDiscard(eventNumber) {
		return false
	}

	if rd.maxAgeSeconds != nil && rd.maybeDiscardPoint.ShouldDiscard(eventNumber) {
		cutoff := effectiveNow.Add(-time.Duration(*rd.maxAgeSeconds) * time.Second)
		if timestamp.Before(cutoff) {
			return false
		}
	}

	return true
}

// refIsBeforeTarget reports whether ref occurs strictly before target in log
// order (chunk creation time, then position within a chunk). Used to
// enforce spec.md §4.4 invariant 7: no record at or after the run's target
// scavenge point position is ever discarded by that run.
func refIsBeforeTarget(ref, target chunk.RecordRef) bool {
	if ref.ChunkID == target.ChunkID {
		return ref.Pos < target.Pos
	}
	return ref.ChunkID.Time().Before(target.ChunkID.Time())
}
