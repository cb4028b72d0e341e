package scavenge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gastrolog/internal/index/streamindex"
)

// IndexExecutorConfig configures an IndexExecutor.
type IndexExecutorConfig struct {
	// PrefetchWorkers bounds how many goroutines concurrently warm the
	// discard-point cache before the single-pass index rewrite. The stream
	// index's Scavenge callback only ever sees a hash, so every discard
	// point it might need has to be resolved up front; fanning that
	// resolution out is the one place in this stage where CPU-bound
	// sub-steps genuinely parallelize (SPEC_FULL.md §2).
	PrefetchWorkers int

	// UnsafeIgnoreHardDeletes mirrors ChunkExecutorConfig's flag of the same
	// name: when set, every entry of a tombstoned stream is dropped from
	// the index, including the tombstone's own entry.
	UnsafeIgnoreHardDeletes bool
}

// IndexExecutor is the fourth pipeline stage: it rewrites the stream index
// to drop entries for events their owning stream has discarded. It never
// decides discard points itself; it only consumes what the Calculator
// already resolved.
type IndexExecutor struct {
	state StateForIndexExecutor
	index streamindex.Manager
	log   ScavengerLog
	cfg   IndexExecutorConfig
}

// NewIndexExecutor constructs an IndexExecutor.
func NewIndexExecutor(state StateForIndexExecutor, index streamindex.Manager, log ScavengerLog, cfg IndexExecutorConfig) *IndexExecutor {
	if cfg.PrefetchWorkers <= 0 {
		cfg.PrefetchWorkers = 4
	}
	if log == nil {
		log = NewSlogScavengerLog(nil)
	}
	return &IndexExecutor{state: state, index: index, log: log, cfg: cfg}
}

// decisionCache holds, per hash, the retentionDecision resolved for
// whichever of the original-stream or metastream maps actually carries data
// for it. A stream's own hash and its metastream's hash are different keys;
// the metastream's entry is reached through StreamData.MetastreamHandle,
// recorded by the Accumulator, since a metastream's name can't be re-derived
// from a handle that only carries a hash. Hashes flagged as colliding are
// deliberately left out: the stream index's Scavenge callback only receives
// a hash, not a stream id, so two streams sharing a hash can't be told apart
// there; such hashes are always kept to avoid discarding the wrong stream's
// events.
type decisionCache struct {
	mu           sync.Mutex
	decisions    map[uint64]retentionDecision
	skipped      map[uint64]bool
	effectiveNow map[uint64]time.Time
}

func newDecisionCache() *decisionCache {
	return &decisionCache{
		decisions:    make(map[uint64]retentionDecision),
		skipped:      make(map[uint64]bool),
		effectiveNow: make(map[uint64]time.Time),
	}
}

func (c *decisionCache) set(hash uint64, data StreamData, isMetastream bool, unsafeIgnoreHardDeletes bool, effectiveNow time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions[hash] = retentionDecision{
		tombstoned:              data.MaybeTombstoned,
		isMetastream:            isMetastream,
		discardPoint:            data.DiscardPoint,
		maybeDiscardPoint:       data.MaybeDiscardPoint,
		maxAgeSeconds:           data.MaxAgeSeconds,
		unsafeIgnoreHardDeletes: unsafeIgnoreHardDeletes,
	}
	c.effectiveNow[hash] = effectiveNow
}

func (c *decisionCache) setSkipped(hash uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped[hash] = true
	delete(c.decisions, hash)
}

func (c *decisionCache) shouldKeep(hash uint64, info streamindex.EventInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skipped[hash] {
		return true
	}
	decision, ok := c.decisions[hash]
	if !ok {
		return true
	}
	return decision.shouldKeep(info.EventNumber, info.Timestamp, c.effectiveNow[hash])
}

// Run prefetches discard points for every known stream handle, concurrently
// up to PrefetchWorkers, then rewrites the stream index in a single pass.
// It returns the checkpoint for PhaseCleaning on success.
func (ie *IndexExecutor) Run(ctx context.Context, checkpoint Checkpoint) (Checkpoint, error) {
	handles, err := ie.state.AllStreamHandles()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: list stream handles: %v", ErrIoFailure, err)
	}

	cache := newDecisionCache()
	effectiveNow := checkpoint.Point.Timestamp

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(ie.cfg.PrefetchWorkers)

	for _, handle := range handles {
		handle := handle
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			if handle.IsCollision() {
				cache.setSkipped(handle.Hash())
				return nil
			}

			data, ok, err := ie.state.GetOriginalStreamData(handle)
			if err != nil {
				return fmt.Errorf("%w: load original stream data: %v", ErrIoFailure, err)
			}
			if !ok {
				return nil
			}
			cache.set(handle.Hash(), data, false, ie.cfg.UnsafeIgnoreHardDeletes, effectiveNow)

			if data.MetastreamHandle == nil {
				return nil
			}
			metaData, ok, err := ie.state.GetMetastreamData(*data.MetastreamHandle)
			if err != nil {
				return fmt.Errorf("%w: load metastream data: %v", ErrIoFailure, err)
			}
			if ok {
				cache.set(data.MetastreamHandle.Hash(), metaData, true, ie.cfg.UnsafeIgnoreHardDeletes, effectiveNow)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return Checkpoint{Phase: PhaseExecutingIndex, Point: checkpoint.Point}, ErrCancelled
		}
		return Checkpoint{}, err
	}

	if err := ie.index.Scavenge(ctx, cache.shouldKeep); err != nil {
		if ctx.Err() != nil {
			return Checkpoint{Phase: PhaseExecutingIndex, Point: checkpoint.Point}, ErrCancelled
		}
		return Checkpoint{}, fmt.Errorf("%w: scavenge stream index: %v", ErrIndexMaybeCorrupt, err)
	}

	return Checkpoint{Phase: PhaseCleaning, Point: checkpoint.Point}, nil
}
