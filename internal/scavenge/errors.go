package scavenge

import "errors"

// Sentinel errors returned by the scavenge pipeline stages. Wrap with
// fmt.Errorf("...: %w", ...) at the point of failure; callers use
// errors.Is/errors.As the same way internal/chunk's ErrChunkNotFound etc. are
// tested against.
var (
	// ErrCorruptState is returned when ScavengeState contains data that
	// cannot be reconciled with the log (e.g. a discard point referencing a
	// stream never observed by the Accumulator).
	ErrCorruptState = errors.New("scavenge: corrupt state")

	// ErrInvalidMetastreamOperation is returned by the Accumulator when a
	// metastream carries a tombstone record, or when a metastream's name
	// does not name a governed stream.
	ErrInvalidMetastreamOperation = errors.New("scavenge: invalid metastream operation")

	// ErrIoFailure wraps an underlying ChunkManager/IndexReader/IndexWriter
	// I/O error encountered mid-stage. The run is abandoned at the last
	// committed checkpoint; it may be retried.
	ErrIoFailure = errors.New("scavenge: io failure")

	// ErrChunkBeingDeleted names the case of a chunk deleted concurrently
	// while it is being rewritten. No code in this package returns it;
	// ChunkExecutor wraps whatever error its ChunkRewriter returns.
	ErrChunkBeingDeleted = errors.New("scavenge: chunk being deleted")

	// ErrCancelled is returned when a run observes its cancellation signal
	// between checkpointed steps.
	ErrCancelled = errors.New("scavenge: cancelled")

	// ErrIndexMaybeCorrupt is returned by the IndexExecutor when the stream
	// index's scavenge pass fails; entries already rewritten by that pass
	// stay rewritten, and the run stops.
	ErrIndexMaybeCorrupt = errors.New("scavenge: index maybe corrupt")

	// ErrAlreadyRunning is returned by the runner when a scavenge is
	// requested while one is already in progress.
	ErrAlreadyRunning = errors.New("scavenge: already running")

	// ErrNotRunning is returned when Stop is called and no run is active.
	ErrNotRunning = errors.New("scavenge: not running")
)
