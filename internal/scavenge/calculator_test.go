package scavenge

import (
	"context"
	"testing"
	"time"

	"gastrolog/internal/chunk"
	chunkmemory "gastrolog/internal/chunk/memory"
	streamindexmemory "gastrolog/internal/index/streamindex/memory"
	statestoremem "gastrolog/internal/scavenge/statestore/memory"
	"gastrolog/internal/streamrecord"
)

// calculatorFixture wires a real chunk manager and stream index together so
// the Calculator exercises the same lookups it would against production
// implementations, per the teacher's own streamindex/memory doc comment
// describing itself as intended for tests.
type calculatorFixture struct {
	t     *testing.T
	cm    *chunkmemory.Manager
	index *streamindexmemory.Manager
	state *statestoremem.Store
}

func newCalculatorFixture(t *testing.T) *calculatorFixture {
	t.Helper()
	cm := newTestChunkManager(t)
	return &calculatorFixture{
		t:     t,
		cm:    cm,
		index: streamindexmemory.NewManager(cm, XXHash),
		state: statestoremem.NewStore(),
	}
}

func (f *calculatorFixture) append(info streamrecord.Info, ts time.Time) chunk.RecordRef {
	return appendStreamRecord(f.t, f.cm, info, ts)
}

// buildIndex builds the stream index for every chunk the fixture's chunk
// manager currently knows about; the real IndexExecutor/streamindex.BuildForChunk
// wiring happens on ingest, which this fixture skips in favor of a single
// pass once all fixture records are appended.
func (f *calculatorFixture) buildIndex() {
	f.t.Helper()
	metas, err := f.cm.List()
	if err != nil {
		f.t.Fatalf("List: %v", err)
	}
	for _, meta := range metas {
		if err := f.index.BuildForChunk(context.Background(), meta.ID); err != nil {
			f.t.Fatalf("BuildForChunk: %v", err)
		}
	}
}

func TestCalculatorResolvesMaxCount(t *testing.T) {
	f := newCalculatorFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := uint64(0); i < 5; i++ {
		f.append(streamrecord.Info{StreamID: "orders-5", EventNumber: i, SelfCommitted: true}, now)
	}
	maxCount := uint64(2)
	boundary := f.append(streamrecord.Info{
		StreamID: "$orders-5", EventNumber: 0, Kind: streamrecord.KindMetadata, SelfCommitted: true, MaxCount: &maxCount,
	}, now)
	f.buildIndex()

	acc := newTestAccumulator(t, f.cm, f.state)
	point := ScavengePoint{Ref: boundary, Timestamp: now}
	if _, err := acc.Run(context.Background(), Checkpoint{Phase: PhaseAccumulating, Point: point}); err != nil {
		t.Fatalf("Accumulator.Run: %v", err)
	}

	calc := NewCalculator(f.state, f.index, CalculatorConfig{})
	if _, err := calc.Run(context.Background(), Checkpoint{Phase: PhaseCalculating, Point: point}); err != nil {
		t.Fatalf("Calculator.Run: %v", err)
	}

	data, ok, err := f.state.GetOriginalStreamData(HashHandle(XXHash("orders-5")))
	if err != nil || !ok {
		t.Fatalf("GetOriginalStreamData: ok=%v err=%v", ok, err)
	}
	// Last event number is 4; maxCount=2 keeps the last two (3, 4), so
	// DiscardPoint must drop everything up to and including event 2.
	if got := data.DiscardPoint.FirstEventToKeep(); got != 3 {
		t.Errorf("DiscardPoint.FirstEventToKeep() = %d, want 3", got)
	}
	if data.Status != StatusActive {
		t.Errorf("Status = %v, want StatusActive (maxCount rule still live)", data.Status)
	}
}

func TestCalculatorResolvesMaxAge(t *testing.T) {
	f := newCalculatorFixture(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	f.append(streamrecord.Info{StreamID: "orders-6", EventNumber: 0, SelfCommitted: true}, base.Add(-2*time.Hour))
	f.append(streamrecord.Info{StreamID: "orders-6", EventNumber: 1, SelfCommitted: true}, base.Add(-30*time.Minute))
	f.append(streamrecord.Info{StreamID: "orders-6", EventNumber: 2, SelfCommitted: true}, base.Add(-10*time.Minute))
	maxAge := int64(3600)
	boundary := f.append(streamrecord.Info{
		StreamID: "$orders-6", EventNumber: 0, Kind: streamrecord.KindMetadata, SelfCommitted: true, MaxAgeSeconds: &maxAge,
	}, base)
	f.buildIndex()

	acc := newTestAccumulator(t, f.cm, f.state)
	point := ScavengePoint{Ref: boundary, Timestamp: base}
	if _, err := acc.Run(context.Background(), Checkpoint{Phase: PhaseAccumulating, Point: point}); err != nil {
		t.Fatalf("Accumulator.Run: %v", err)
	}

	calc := NewCalculator(f.state, f.index, CalculatorConfig{})
	if _, err := calc.Run(context.Background(), Checkpoint{Phase: PhaseCalculating, Point: point}); err != nil {
		t.Fatalf("Calculator.Run: %v", err)
	}

	data, ok, err := f.state.GetOriginalStreamData(HashHandle(XXHash("orders-6")))
	if err != nil || !ok {
		t.Fatalf("GetOriginalStreamData: ok=%v err=%v", ok, err)
	}
	// Event 0 is older than the 1h cutoff; events 1 and 2 are within it.
	// DiscardPoint (definite) stays untouched by max age; MaybeDiscardPoint
	// folds the tentative window in.
	if got := data.DiscardPoint.FirstEventToKeep(); got != 0 {
		t.Errorf("DiscardPoint.FirstEventToKeep() = %d, want 0 (max age is only tentative)", got)
	}
	if got := data.MaybeDiscardPoint.FirstEventToKeep(); got != 1 {
		t.Errorf("MaybeDiscardPoint.FirstEventToKeep() = %d, want 1", got)
	}
}

func TestCalculatorTombstonedStreamBecomesArchived(t *testing.T) {
	f := newCalculatorFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	f.append(streamrecord.Info{StreamID: "orders-7", EventNumber: 0, SelfCommitted: true}, now)
	boundary := f.append(streamrecord.Info{
		StreamID: "orders-7", EventNumber: 1, Kind: streamrecord.KindTombstone, SelfCommitted: true,
	}, now)
	f.buildIndex()

	acc := newTestAccumulator(t, f.cm, f.state)
	point := ScavengePoint{Ref: boundary, Timestamp: now}
	if _, err := acc.Run(context.Background(), Checkpoint{Phase: PhaseAccumulating, Point: point}); err != nil {
		t.Fatalf("Accumulator.Run: %v", err)
	}

	calc := NewCalculator(f.state, f.index, CalculatorConfig{})
	if _, err := calc.Run(context.Background(), Checkpoint{Phase: PhaseCalculating, Point: point}); err != nil {
		t.Fatalf("Calculator.Run: %v", err)
	}

	data, ok, err := f.state.GetOriginalStreamData(HashHandle(XXHash("orders-7")))
	if err != nil || !ok {
		t.Fatalf("GetOriginalStreamData: ok=%v err=%v", ok, err)
	}
	if data.Status != StatusArchived {
		t.Errorf("Status = %v, want StatusArchived", data.Status)
	}
}

func TestCalculatorStreamWithNoRetentionRuleBecomesSpent(t *testing.T) {
	f := newCalculatorFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	boundary := f.append(streamrecord.Info{StreamID: "orders-8", EventNumber: 0, SelfCommitted: true}, now)
	f.buildIndex()

	acc := newTestAccumulator(t, f.cm, f.state)
	point := ScavengePoint{Ref: boundary, Timestamp: now}
	if _, err := acc.Run(context.Background(), Checkpoint{Phase: PhaseAccumulating, Point: point}); err != nil {
		t.Fatalf("Accumulator.Run: %v", err)
	}

	calc := NewCalculator(f.state, f.index, CalculatorConfig{})
	if _, err := calc.Run(context.Background(), Checkpoint{Phase: PhaseCalculating, Point: point}); err != nil {
		t.Fatalf("Calculator.Run: %v", err)
	}

	data, ok, err := f.state.GetOriginalStreamData(HashHandle(XXHash("orders-8")))
	if err != nil || !ok {
		t.Fatalf("GetOriginalStreamData: ok=%v err=%v", ok, err)
	}
	if data.Status != StatusSpent {
		t.Errorf("Status = %v, want StatusSpent (no retention rule, nothing to discard)", data.Status)
	}
}

func TestCalculatorSkipsNonActiveStreams(t *testing.T) {
	f := newCalculatorFixture(t)
	handle := HashHandle(XXHash("orders-9"))
	if err := f.state.SetOriginalStreamData(handle, StreamData{Status: StatusSpent}); err != nil {
		t.Fatalf("SetOriginalStreamData: %v", err)
	}

	calc := NewCalculator(f.state, f.index, CalculatorConfig{})
	point := ScavengePoint{Timestamp: time.Now()}
	if _, err := calc.Run(context.Background(), Checkpoint{Phase: PhaseCalculating, Point: point}); err != nil {
		t.Fatalf("Calculator.Run: %v", err)
	}

	data, _, err := f.state.GetOriginalStreamData(handle)
	if err != nil {
		t.Fatalf("GetOriginalStreamData: %v", err)
	}
	if data.Status != StatusSpent {
		t.Errorf("Status = %v, want StatusSpent unchanged (already resolved streams are not re-processed)", data.Status)
	}
}
