// Package streamindex provides the secondary index the scavenge subsystem
// uses to resolve, per stream, which event numbers live at which record
// positions. It is keyed by a 64-bit stream hash (spec: "B-tree of (hash,
// version, position) entries") rather than by SourceID or token like the
// sibling indexers in internal/index, so it lives in its own package with
// its own on-disk format instead of extending index.IndexManager.
//
// One streamindex file is built per chunk, mirroring every other file-backed
// indexer in this repo (internal/index/file/attr, internal/index/file/time).
// A Manager composes the per-chunk files (or, for the memory backend, an
// in-memory btree) into the cross-chunk view the scavenge core needs.
package streamindex

import (
	"context"
	"log/slog"
	"time"

	"gastrolog/internal/chunk"
)

// EventInfo describes one record belonging to a stream: its event number,
// its timestamp, and where to find it.
type EventInfo struct {
	EventNumber uint64
	Timestamp   time.Time
	Ref         chunk.RecordRef
}

// ManagerFactory creates a Manager from configuration parameters, following
// the same shape as chunk.ManagerFactory and index.ManagerFactory: validate
// params, apply defaults, never start goroutines or do I/O beyond validation.
type ManagerFactory func(params map[string]string, chunkManager chunk.ChunkManager, logger *slog.Logger) (Manager, error)

// Manager is the port the scavenge core's IndexReader/IndexWriter consume
// (spec.md §6). Implementations (file, memory) own persistence; the core
// only calls through this interface.
type Manager interface {
	// BuildForChunk (re)builds the stream index for a sealed chunk by
	// reading its records through chunkManager. Idempotent: may be called
	// again to rebuild after a Scavenge pass invalidates entries.
	BuildForChunk(ctx context.Context, chunkID chunk.ChunkID) error

	// DeleteForChunk removes the stream index artifacts for a chunk.
	// Called by the Cleaner-adjacent retention path when a chunk itself
	// is deleted.
	DeleteForChunk(chunkID chunk.ChunkID) error

	// GetLastEventNumber returns the highest event number observed for
	// streamHash at or before upTo, and whether any entry was found at all.
	GetLastEventNumber(streamHash uint64, upTo chunk.RecordRef) (uint64, bool, error)

	// ReadEventInfoForward returns up to maxCount entries for streamHash
	// with EventNumber >= from, in ascending event-number order, bounded to
	// positions at or before upTo. Used by the Calculator's bounded max-age
	// walk (spec.md §4.3: "bounded slices (e.g. 100 per call)").
	ReadEventInfoForward(streamHash uint64, from uint64, maxCount int, upTo chunk.RecordRef) ([]EventInfo, error)

	// Scavenge rewrites every per-chunk index file, keeping only entries for
	// which shouldKeep returns true. Mirrors spec.md §6's
	// "IndexWriter: scavenge(shouldKeep, …) and saveToFile".
	Scavenge(ctx context.Context, shouldKeep func(streamHash uint64, info EventInfo) bool) error
}
