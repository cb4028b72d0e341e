package scavenge

import (
	"cmp"
	"time"

	"gastrolog/internal/chunk"
)

// DiscardPointKind distinguishes the three ways a DiscardPoint can bound a
// stream's retained events.
type DiscardPointKind int

const (
	// DiscardKeepAll discards nothing; every event number is kept.
	DiscardKeepAll DiscardPointKind = iota
	// DiscardBefore discards every event number strictly less than the
	// carried event number.
	DiscardBefore
	// DiscardIncluding discards every event number less than or equal to
	// the carried event number.
	DiscardIncluding
)

// DiscardPoint marks the boundary below which a stream's events may be
// removed. It is monotonic: once computed for a stream, a later run's
// DiscardPoint is never less restrictive than an earlier one (Or enforces
// this when folding two points together). DiscardPoints are totally ordered
// by the event number of the first event they keep.
type DiscardPoint struct {
	kind        DiscardPointKind
	eventNumber uint64
}

// KeepAll returns the DiscardPoint that discards nothing.
func KeepAll() DiscardPoint {
	return DiscardPoint{kind: DiscardKeepAll}
}

// DiscardBeforeEvent returns the DiscardPoint that discards every event
// number strictly less than eventNumber.
func DiscardBeforeEvent(eventNumber uint64) DiscardPoint {
	return DiscardPoint{kind: DiscardBefore, eventNumber: eventNumber}
}

// DiscardIncludingEvent returns the DiscardPoint that discards every event
// number up to and including eventNumber.
func DiscardIncludingEvent(eventNumber uint64) DiscardPoint {
	return DiscardPoint{kind: DiscardIncluding, eventNumber: eventNumber}
}

// FirstEventToKeep returns the lowest event number this point does not
// discard.
func (d DiscardPoint) FirstEventToKeep() uint64 {
	switch d.kind {
	case DiscardBefore:
		return d.eventNumber
	case DiscardIncluding:
		return d.eventNumber + 1
	default:
		return 0
	}
}

// ShouldDiscard reports whether eventNumber falls below this point.
func (d DiscardPoint) ShouldDiscard(eventNumber uint64) bool {
	return eventNumber < d.FirstEventToKeep()
}

// Or folds two DiscardPoints computed for the same stream into the more
// restrictive of the two, preserving monotonicity across repeated scavenge
// runs: a stream's effective discard point only ever moves forward.
func (d DiscardPoint) Or(other DiscardPoint) DiscardPoint {
	if other.FirstEventToKeep() > d.FirstEventToKeep() {
		return other
	}
	return d
}

// Compare orders two DiscardPoints by FirstEventToKeep.
func (d DiscardPoint) Compare(other DiscardPoint) int {
	return cmp.Compare(d.FirstEventToKeep(), other.FirstEventToKeep())
}

// streamHandleKind distinguishes a plain hash handle from one that also
// carries the original stream id, used when two streams collide on hash.
type streamHandleKind int

const (
	handleHash streamHandleKind = iota
	handleID
)

// StreamHandle identifies a stream to the scavenge state maps. Most streams
// are addressed purely by their 64-bit hash; once a hash collision is
// detected (internal/scavenge/collision.go) a stream is instead addressed by
// its full id alongside the hash, so the two colliding streams no longer
// share a single map slot.
type StreamHandle struct {
	kind     streamHandleKind
	hash     uint64
	streamID string
}

// HashHandle returns a StreamHandle addressed only by hash.
func HashHandle(hash uint64) StreamHandle {
	return StreamHandle{kind: handleHash, hash: hash}
}

// IDHandle returns a StreamHandle addressed by both hash and stream id, used
// once a collision has been recorded for hash.
func IDHandle(streamID string, hash uint64) StreamHandle {
	return StreamHandle{kind: handleID, hash: hash, streamID: streamID}
}

// Hash returns the stream hash, regardless of handle kind.
func (h StreamHandle) Hash() uint64 { return h.hash }

// IsCollision reports whether this handle carries a stream id because its
// hash is known to collide with another stream.
func (h StreamHandle) IsCollision() bool { return h.kind == handleID }

// StreamID returns the stream id and true if this handle carries one.
func (h StreamHandle) StreamID() (string, bool) {
	if h.kind == handleID {
		return h.streamID, true
	}
	return "", false
}

// ScavengePoint is the immutable marker recorded in $scavenges at the start
// of a run: everything the Accumulator and Calculator reason about is
// bounded by the log position this point was written at, so that a run
// produces a consistent view even while new records keep arriving.
type ScavengePoint struct {
	EventNumber uint64
	Threshold   int
	Timestamp   time.Time
	Ref         chunk.RecordRef
}

// Phase identifies a step of the checkpoint state machine (§4.8). Phases
// progress in this order; Cancelling can be observed from any phase and
// leaves the checkpoint at the last phase it completed.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseAccumulating
	PhaseCalculating
	PhaseExecutingChunks
	PhaseMergingChunks
	PhaseExecutingIndex
	PhaseCleaning
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseAccumulating:
		return "accumulating"
	case PhaseCalculating:
		return "calculating"
	case PhaseExecutingChunks:
		return "executing_chunks"
	case PhaseMergingChunks:
		return "merging_chunks"
	case PhaseExecutingIndex:
		return "executing_index"
	case PhaseCleaning:
		return "cleaning"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Checkpoint is the durable resume marker for the scavenge pipeline. Its
// meaning is discriminated by Phase; only the fields relevant to that phase
// are populated. Every stage returns a new Checkpoint and the runner saves
// it to ScavengeState before starting the next stage, so a crash between
// stages resumes where it left off instead of repeating already-applied work.
type Checkpoint struct {
	Phase Phase

	// Point is set once PhaseAccumulating has run to completion; every
	// later phase reasons relative to it.
	Point ScavengePoint

	// DoneAccumulating is the position of the last record the Accumulator
	// has swept, valid only in PhaseAccumulating.
	DoneAccumulating chunk.RecordRef

	// DoneStreamHash is the last stream hash the Calculator has fully
	// resolved a discard point for, valid only in PhaseCalculating.
	DoneStreamHash uint64

	// DoneChunk is the last chunk id the ChunkExecutor has rewritten,
	// valid only in PhaseExecutingChunks.
	DoneChunk chunk.ChunkID
}

// IsResumable reports whether this checkpoint represents a run in progress
// (as opposed to None, the initial state, or Done, a completed run).
func (c Checkpoint) IsResumable() bool {
	return c.Phase != PhaseNone && c.Phase != PhaseDone
}
