package scavenge

import (
	"context"
	"log/slog"
	"time"

	"gastrolog/internal/chunk"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

// Hasher computes the 64-bit stream hash used to address ScavengeState's
// per-stream maps and the streamindex secondary index. xxhash gives a fast,
// well-distributed, dependency-light hash; collisions are handled by
// CollisionDetector rather than avoided by hash choice.
type Hasher func(streamID string) uint64

// XXHash is the default Hasher.
func XXHash(streamID string) uint64 {
	return xxhash.Sum64String(streamID)
}

// Clock abstracts wall-clock time so tests can control what "now" means
// when computing max-age discard points, the same way
// internal/orchestrator's retention sweep takes a clock func rather than
// calling time.Now directly.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time { return time.Now() }

// ScavengePointSource appends and reads the $scavenges stream markers that
// bound a run. Implemented by internal/scavengepoint, which treats
// $scavenges as an ordinary stream through chunk.ChunkManager rather than
// a separate storage mechanism.
type ScavengePointSource interface {
	// NextScavengePoint appends a new scavenge point record at the log's
	// current tail and returns it.
	NextScavengePoint(threshold int) (ScavengePoint, error)

	// LastScavengePoint returns the most recently appended scavenge point,
	// and false if none has ever been written.
	LastScavengePoint() (ScavengePoint, bool, error)
}

// MetastreamLookup resolves whether a stream id names a metastream and, if
// so, the original stream it governs. Delegated to a port rather than
// hard-coded so naming conventions stay the chunk manager's / index's
// concern, not the scavenge core's; the default implementation simply
// wraps internal/streamrecord's "$" convention.
type MetastreamLookup interface {
	IsMetastream(streamID string) bool
	OriginalStreamOf(streamID string) (string, bool)
	MetastreamOf(streamID string) string
}

// ScavengerLog is the structured-logging port every stage writes lifecycle
// events through. The slog-backed implementation below is the only one
// gastrolog ships; the interface exists so stage code depends on behavior,
// not a concrete *slog.Logger, matching how internal/chunk's ChunkManager
// implementations take a *slog.Logger but only ever call a handful of
// named methods on it indirectly through component-scoped loggers.
type ScavengerLog interface {
	RunStarted(point ScavengePoint)
	StageStarted(phase Phase)
	StageResumed(phase Phase, checkpoint Checkpoint)
	ChunkRewritten(id string, recordsKept, recordsDiscarded int)
	IndexRewritten(id string, entriesKept, entriesDiscarded int)
	StreamReclaimed(handle StreamHandle, status StreamStatus)
	RunCompleted(result Result)
	RunFailed(phase Phase, err error)
}

// SlogScavengerLog is a ScavengerLog backed by log/slog, matching
// gastrolog's dependency-injected logging convention
// (internal/logging.Default / component scoping). Every method is a single
// lifecycle-boundary log line; no method is ever called from a per-record
// hot loop.
type SlogScavengerLog struct {
	logger *slog.Logger
}

// NewSlogScavengerLog wraps logger (or a discard logger if nil) as a
// ScavengerLog scoped to "component=scavenge".
func NewSlogScavengerLog(logger *slog.Logger) *SlogScavengerLog {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &SlogScavengerLog{logger: logger.With("component", "scavenge")}
}

func (l *SlogScavengerLog) RunStarted(point ScavengePoint) {
	l.logger.Info("scavenge run started", "event_number", point.EventNumber, "threshold", point.Threshold)
}

func (l *SlogScavengerLog) StageStarted(phase Phase) {
	l.logger.Info("scavenge stage started", "phase", phase.String())
}

func (l *SlogScavengerLog) StageResumed(phase Phase, checkpoint Checkpoint) {
	l.logger.Info("scavenge stage resumed", "phase", phase.String(), "checkpoint_phase", checkpoint.Phase.String())
}

func (l *SlogScavengerLog) ChunkRewritten(id string, recordsKept, recordsDiscarded int) {
	l.logger.Info("chunk rewritten", "chunk_id", id, "records_kept", recordsKept, "records_discarded", recordsDiscarded)
}

func (l *SlogScavengerLog) IndexRewritten(id string, entriesKept, entriesDiscarded int) {
	l.logger.Info("stream index rewritten", "chunk_id", id, "entries_kept", entriesKept, "entries_discarded", entriesDiscarded)
}

func (l *SlogScavengerLog) StreamReclaimed(handle StreamHandle, status StreamStatus) {
	attrs := []any{"stream_hash", handle.Hash(), "status", status.String()}
	if id, ok := handle.StreamID(); ok {
		attrs = append(attrs, "stream_id", id)
	}
	l.logger.Info("stream data reclaimed", attrs...)
}

func (l *SlogScavengerLog) RunCompleted(result Result) {
	l.logger.Info("scavenge run completed", "result", result.String())
}

func (l *SlogScavengerLog) RunFailed(phase Phase, err error) {
	l.logger.Error("scavenge run failed", "phase", phase.String(), "error", err)
}

// discardHandler mirrors internal/logging's unexported discard handler so
// this package does not need to import internal/logging just for a default;
// callers in cmd/gastrolog wire a real *slog.Logger through
// internal/logging.Default before constructing a SlogScavengerLog.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// ChunkRewriter performs the low-level mechanics of replacing a chunk's
// on-disk contents with a filtered subset of its records: read through the
// existing chunk, write survivors to a temp location, atomically swap it in.
// Just as spec.md keeps the chunk file format itself out of scope (it is
// chunk.ChunkManager's concern, not the scavenge core's), the swap mechanics
// live behind this port rather than inside ChunkExecutor; the core only
// supplies the predicate deciding what survives.
type ChunkRewriter interface {
	// RewriteChunk reads chunkID, keeps every record shouldKeep accepts,
	// and atomically replaces chunkID's on-disk contents with just those
	// records. Returns how many records were kept and discarded.
	RewriteChunk(ctx context.Context, chunkID chunk.ChunkID, shouldKeep func(rec chunk.Record, ref chunk.RecordRef) (bool, error)) (kept, discarded int, err error)
}

// Throttle paces work between chunks so a scavenge run sharing disks with
// foreground traffic does not starve it. Implemented with
// golang.org/x/time/rate: one token is required per unit of work (one chunk
// rewrite, one index rewrite), and Wait blocks until a token is available
// or ctx is cancelled.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle builds a Throttle that permits ratePerSecond units of work per
// second, bursting up to burst. A ratePerSecond of rate.Inf (or <= 0)
// disables throttling.
func NewThrottle(ratePerSecond float64, burst int) *Throttle {
	if ratePerSecond <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until the throttle permits one more unit of work, or ctx is
// cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
