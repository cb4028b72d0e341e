package scavenge

import (
	"time"

	"gastrolog/internal/chunk"
)

// Transaction scopes a set of writes to ScavengeState so a stage either
// commits a consistent set of updates or rolls all of them back. Mirrors
// database/sql.Tx's Commit/Rollback shape, which the sqlite backend wraps
// directly; the memory backend's Commit and Rollback are no-ops, so its
// writes are never rolled back.
type Transaction interface {
	Commit() error
	Rollback() error
}

// StreamStatus classifies a stream's remaining retention work, as resolved
// by the Calculator at the end of each run (spec.md §4.3 step 7).
type StreamStatus int

const (
	// StatusActive is a stream that may still have retention work to do on
	// a future run (new events, an unresolved max-age window, etc).
	StatusActive StreamStatus = iota
	// StatusSpent is a stream with no retention rule left to enforce and no
	// tombstone: its discard point is KeepAll and it declares no
	// truncateBefore/maxAge/maxCount. The Cleaner may drop its
	// originalStreamData entry.
	StatusSpent
	// StatusArchived is a tombstoned stream: only its tombstone event is
	// ever kept. The Cleaner may drop its originalStreamData entry once an
	// operator opts into reclaiming archived streams too.
	StatusArchived
)

func (s StreamStatus) String() string {
	switch s {
	case StatusSpent:
		return "spent"
	case StatusArchived:
		return "archived"
	default:
		return "active"
	}
}

// StreamData is what the Accumulator and Calculator have learned about a
// single stream: its confirmed and tentative discard points, whether a
// tombstone was observed for it, and its current status. MaybeDiscardPoint
// is always >= DiscardPoint: DiscardPoint only ever moves on facts the
// Calculator is sure of (truncateBefore, maxCount, a tombstone's own last
// event number), while MaybeDiscardPoint additionally folds in the rolling
// max-age window, which is tentative because it is computed against a clock
// reading that a later run could revise forward.
type StreamData struct {
	DiscardPoint      DiscardPoint
	MaybeDiscardPoint DiscardPoint
	MaybeTombstoned   bool
	Status            StreamStatus

	// MaxAgeSeconds is the most recently observed rolling retention window
	// declared for this stream via its metastream, or nil if none has been
	// declared. Resolved into a concrete DiscardPoint by the Calculator,
	// which is the only stage with the index access needed to map an age to
	// an event number (spec.md §4.3's bounded max-age walk).
	MaxAgeSeconds *int64

	// MaxCount is the most recently observed "keep only the last N events"
	// declaration for this stream, or nil if none has been declared.
	// Resolved against the stream's last event number by the Calculator.
	MaxCount *uint64

	// MetastreamHandle is the handle of this stream's governing metastream,
	// recorded by the Accumulator the first time it observes a metadata
	// record for this stream. Lets the Cleaner find the paired
	// metastreamData entry once this stream becomes cleanable, without
	// having to re-derive "$"+streamID for a handle that may only carry a
	// hash.
	MetastreamHandle *StreamHandle
}

// StateForAccumulator is the narrow view of ScavengeState the Accumulator
// needs while sweeping the log: recording newly discovered hash collisions
// and updating the retention facts for original streams and their
// metastreams as records are observed.
type StateForAccumulator interface {
	RecordCollision(hash uint64, streamID string) error
	IsCollision(hash uint64) (bool, error)

	GetOriginalStreamData(handle StreamHandle) (StreamData, bool, error)
	SetOriginalStreamData(handle StreamHandle, data StreamData) error

	GetMetastreamData(handle StreamHandle) (StreamData, bool, error)
	SetMetastreamData(handle StreamHandle, data StreamData) error

	// SetChunkTimeStampRange folds ts into the running [start, end] range
	// recorded for chunkID, the same min/max accumulation the chunk manager
	// itself performs for ChunkMeta.IngestStart/IngestEnd.
	SetChunkTimeStampRange(chunkID chunk.ChunkID, ts time.Time) error
	GetChunkTimeStampRange(chunkID chunk.ChunkID) (start, end time.Time, ok bool, err error)
}

// StateForCalculator is the narrow view the Calculator needs: enumerating
// every stream with recorded retention facts, and recording the weight
// contribution of each chunk so the ChunkExecutor can decide which chunks
// are worth rewriting.
type StateForCalculator interface {
	StateForAccumulator

	// AllStreamHandles returns every stream handle with recorded retention
	// facts, in an implementation-defined but stable order (stable so a
	// resumed run can skip handles already processed per Checkpoint.DoneStreamHash).
	AllStreamHandles() ([]StreamHandle, error)

	AddChunkWeight(chunkID chunk.ChunkID, weight float64) error
	GetChunkWeight(chunkID chunk.ChunkID) (float64, error)
}

// StateForChunkExecutor is the narrow view the ChunkExecutor needs: which
// chunks cleared the rewrite threshold, and the discard points needed to
// decide, record by record, what survives the rewrite.
type StateForChunkExecutor interface {
	ChunksAboveThreshold(threshold float64) ([]chunk.ChunkID, error)
	GetOriginalStreamData(handle StreamHandle) (StreamData, bool, error)
	GetMetastreamData(handle StreamHandle) (StreamData, bool, error)
	IsCollision(hash uint64) (bool, error)
}

// StateForIndexExecutor is the narrow view the IndexExecutor needs: the same
// discard-point lookups as the ChunkExecutor, consumed through a shouldKeep
// predicate instead of a rewrite loop, plus the full handle enumeration used
// to prefetch discard points concurrently before the single-pass index
// rewrite (the stream index's shouldKeep callback only ever sees a hash, so
// building the decision cache ahead of time is cheaper than looking handles
// up one at a time mid-rewrite).
type StateForIndexExecutor interface {
	GetOriginalStreamData(handle StreamHandle) (StreamData, bool, error)
	GetMetastreamData(handle StreamHandle) (StreamData, bool, error)
	IsCollision(hash uint64) (bool, error)
	AllStreamHandles() ([]StreamHandle, error)
}

// StateForCleaner is the narrow view the Cleaner needs: once a run reaches
// PhaseDone, it reclaims the space ScavengeState itself was using to track
// per-run per-chunk facts, and drops originalStreamData/metastreamData for
// streams that no longer have live retention work (spec.md §4.6).
type StateForCleaner interface {
	ClearChunkWeights() error
	ClearChunkTimeStampRanges() error

	AllStreamHandles() ([]StreamHandle, error)
	GetOriginalStreamData(handle StreamHandle) (StreamData, bool, error)
	DeleteOriginalStreamData(handle StreamHandle) error
	DeleteMetastreamData(handle StreamHandle) error
}

// ScavengeState is the durable store backing a scavenge run. One concrete
// implementation (statestore/memory or statestore/sqlite) satisfies every
// narrow StateFor* port above, the same way internal/config.Store is one
// interface satisfied by its memory, sqlite, and raftstore backends.
type ScavengeState interface {
	StateForAccumulator
	StateForCalculator
	StateForChunkExecutor
	StateForIndexExecutor
	StateForCleaner

	// BeginTransaction starts a scoped batch of writes.
	BeginTransaction() (Transaction, error)

	// LoadCheckpoint returns the last committed checkpoint, or the zero
	// Checkpoint (Phase: PhaseNone) if no run has ever started.
	LoadCheckpoint() (Checkpoint, error)

	// SaveCheckpoint durably commits a new checkpoint. Called at the end of
	// every stage step so a crash resumes from the last completed step
	// instead of from scratch.
	SaveCheckpoint(Checkpoint) error

	// Close releases resources (file handles, db connections) held by the
	// backing store.
	Close() error
}
