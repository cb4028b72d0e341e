package scavenge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Result tags the outcome of a scavenge run.
type Result int

const (
	ResultUnknown Result = iota
	ResultSuccess
	ResultStopped
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultStopped:
		return "stopped"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunStatus is a run's externally-observable status, as read by
// `gastrolog scavenge status`.
type RunStatus int

const (
	StatusIdle RunStatus = iota
	StatusRunning
	StatusCancelling
)

func (s RunStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCancelling:
		return "cancelling"
	default:
		return "idle"
	}
}

// Progress is a snapshot of an in-progress run's position, for status
// reporting. Fields beyond Phase are best-effort and only meaningful while
// Status is StatusRunning or StatusCancelling.
type Progress struct {
	RunID  string
	Status RunStatus
	Phase  Phase
}

// Pipeline bundles the five stage implementations a ScavengeRunner drives in
// order. Each stage is given its narrow StateFor* view of ScavengeState at
// construction time, not passed state again per call, so the runner's job is
// purely sequencing and checkpointing.
type Pipeline struct {
	Accumulator   *Accumulator
	Calculator    *Calculator
	ChunkExecutor *ChunkExecutor
	IndexExecutor *IndexExecutor
	Cleaner       *Cleaner
}

// ScavengeRunner is a process-wide singleton driving at most one scavenge
// run at a time, the same shape as internal/orchestrator.Orchestrator's
// running/cancel/done fields: a mutex-guarded state machine with an
// idempotent Stop.
type ScavengeRunner struct {
	state    ScavengeState
	pipeline Pipeline
	log      ScavengerLog

	mu       sync.Mutex
	status   RunStatus
	runID    string
	phase    Phase
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScavengeRunner constructs an idle runner over state and pipeline.
func NewScavengeRunner(state ScavengeState, pipeline Pipeline, log ScavengerLog) *ScavengeRunner {
	if log == nil {
		log = NewSlogScavengerLog(nil)
	}
	return &ScavengeRunner{state: state, pipeline: pipeline, log: log, status: StatusIdle}
}

// Start begins a new scavenge run, or resumes one left in progress by a
// prior process's checkpoint. Returns ErrAlreadyRunning if a run is already
// active in this process. Start returns immediately; the run proceeds on a
// background goroutine until ctx is cancelled, Stop is called, or the
// pipeline completes.
func (r *ScavengeRunner) Start(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.status != StatusIdle {
		r.mu.Unlock()
		return "", ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	runID := uuid.Must(uuid.NewV7()).String()
	done := make(chan struct{})

	r.status = StatusRunning
	r.runID = runID
	r.phase = PhaseNone
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go r.run(runCtx, runID, done)

	return runID, nil
}

// Stop requests cancellation of the active run. It does not block until the
// run has actually stopped; Status reports StatusIdle once it has.
func (r *ScavengeRunner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusIdle {
		return ErrNotRunning
	}
	r.status = StatusCancelling
	r.cancel()
	return nil
}

// Status returns a snapshot of the runner's current state.
func (r *ScavengeRunner) Status() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Progress{RunID: r.runID, Status: r.status, Phase: r.phase}
}

func (r *ScavengeRunner) setPhase(phase Phase) {
	r.mu.Lock()
	r.phase = phase
	r.mu.Unlock()
}

func (r *ScavengeRunner) finish() {
	r.mu.Lock()
	r.status = StatusIdle
	r.cancel = nil
	close(r.done)
	r.mu.Unlock()
}

// run drives the checkpoint state machine to completion or failure through
// drive, which calls the stage for the phase the checkpoint names and saves
// the checkpoint each stage returns; run logs the outcome.
func (r *ScavengeRunner) run(ctx context.Context, runID string, done chan struct{}) {
	defer r.finish()

	result, err := r.drive(ctx)
	if err != nil {
		r.log.RunFailed(r.phase, err)
		return
	}
	r.log.RunCompleted(result)
}

func (r *ScavengeRunner) drive(ctx context.Context) (Result, error) {
	checkpoint, err := r.state.LoadCheckpoint()
	if err != nil {
		return ResultFailed, fmt.Errorf("load checkpoint: %w", err)
	}

	if checkpoint.IsResumable() {
		r.log.StageResumed(checkpoint.Phase, checkpoint)
	}

	for {
		if err := ctx.Err(); err != nil {
			return ResultStopped, ErrCancelled
		}

		r.setPhase(checkpoint.Phase)

		var next Checkpoint
		switch checkpoint.Phase {
		case PhaseNone:
			point, err := r.pipeline.Accumulator.NewScavengePoint()
			if err != nil {
				return ResultFailed, fmt.Errorf("start scavenge point: %w", err)
			}
			next = Checkpoint{Phase: PhaseAccumulating, Point: point}

		case PhaseAccumulating:
			r.log.StageStarted(PhaseAccumulating)
			next, err = r.pipeline.Accumulator.Run(ctx, checkpoint)

		case PhaseCalculating:
			r.log.StageStarted(PhaseCalculating)
			next, err = r.pipeline.Calculator.Run(ctx, checkpoint)

		case PhaseExecutingChunks:
			r.log.StageStarted(PhaseExecutingChunks)
			next, err = r.pipeline.ChunkExecutor.Run(ctx, checkpoint)

		case PhaseMergingChunks:
			// Chunk merging itself is a ChunkManager concern
			// (internal/chunk/file's existing merge/move path); this phase
			// only marks the handoff point so a crash mid-merge resumes
			// into the merge step rather than re-rewriting chunks.
			next = Checkpoint{Phase: PhaseExecutingIndex, Point: checkpoint.Point}

		case PhaseExecutingIndex:
			r.log.StageStarted(PhaseExecutingIndex)
			next, err = r.pipeline.IndexExecutor.Run(ctx, checkpoint)

		case PhaseCleaning:
			r.log.StageStarted(PhaseCleaning)
			next, err = r.pipeline.Cleaner.Run(ctx, checkpoint)

		case PhaseDone:
			return ResultSuccess, nil

		default:
			return ResultFailed, fmt.Errorf("%w: unknown phase %d", ErrCorruptState, checkpoint.Phase)
		}

		if err != nil {
			if errors.Is(err, ErrCancelled) {
				if next.Phase != PhaseNone {
					if saveErr := r.state.SaveCheckpoint(next); saveErr != nil {
						return ResultFailed, fmt.Errorf("save checkpoint on cancel: %w", saveErr)
					}
				}
				return ResultStopped, err
			}
			return ResultFailed, err
		}

		if err := r.state.SaveCheckpoint(next); err != nil {
			return ResultFailed, fmt.Errorf("save checkpoint: %w", err)
		}
		checkpoint = next
	}
}
