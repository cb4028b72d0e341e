// Package memory provides an in-memory scavenge.ScavengeState implementation.
// Intended for tests and single-node deployments that accept losing
// in-progress scavenge state across a restart (a fresh run simply starts
// over from PhaseNone).
package memory

import (
	"sync"
	"time"

	"gastrolog/internal/chunk"
	"gastrolog/internal/scavenge"
)

// handleKey is the comparable map key a StreamHandle reduces to: hash alone
// for plain handles, hash+id for colliding ones, so the two never share a
// slot once a collision is recorded.
type handleKey struct {
	hash uint64
	id   string
}

func keyFor(h scavenge.StreamHandle) handleKey {
	id, _ := h.StreamID()
	return handleKey{hash: h.Hash(), id: id}
}

type timeRange struct {
	start, end time.Time
}

// Store is an in-memory ScavengeState. All writes go through a single
// sync.Mutex and take effect immediately; the Transaction BeginTransaction
// returns does not buffer or undo them (see txn).
type Store struct {
	mu sync.Mutex

	collisions      map[uint64]map[string]bool
	originalStreams map[handleKey]scavenge.StreamData
	metaStreams     map[handleKey]scavenge.StreamData
	chunkWeights    map[chunk.ChunkID]float64
	chunkRanges     map[chunk.ChunkID]timeRange
	checkpoint      scavenge.Checkpoint
}

var _ scavenge.ScavengeState = (*Store)(nil)

// NewStore creates an empty in-memory ScavengeState.
func NewStore() *Store {
	return &Store{
		collisions:      make(map[uint64]map[string]bool),
		originalStreams: make(map[handleKey]scavenge.StreamData),
		metaStreams:     make(map[handleKey]scavenge.StreamData),
		chunkWeights:    make(map[chunk.ChunkID]float64),
		chunkRanges:     make(map[chunk.ChunkID]timeRange),
	}
}

// RecordCollision implements scavenge.StateForAccumulator.
func (s *Store) RecordCollision(hash uint64, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.collisions[hash]
	if !ok {
		set = make(map[string]bool)
		s.collisions[hash] = set
	}
	set[streamID] = true
	return nil
}

// IsCollision implements scavenge.StateForAccumulator.
func (s *Store) IsCollision(hash uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.collisions[hash]
	return ok && len(set) > 1, nil
}

// GetOriginalStreamData implements scavenge.StateForAccumulator.
func (s *Store) GetOriginalStreamData(handle scavenge.StreamHandle) (scavenge.StreamData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.originalStreams[keyFor(handle)]
	return data, ok, nil
}

// SetOriginalStreamData implements scavenge.StateForAccumulator.
func (s *Store) SetOriginalStreamData(handle scavenge.StreamHandle, data scavenge.StreamData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.originalStreams[keyFor(handle)] = data
	return nil
}

// GetMetastreamData implements scavenge.StateForAccumulator.
func (s *Store) GetMetastreamData(handle scavenge.StreamHandle) (scavenge.StreamData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.metaStreams[keyFor(handle)]
	return data, ok, nil
}

// SetMetastreamData implements scavenge.StateForAccumulator.
func (s *Store) SetMetastreamData(handle scavenge.StreamHandle, data scavenge.StreamData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaStreams[keyFor(handle)] = data
	return nil
}

// SetChunkTimeStampRange implements scavenge.StateForAccumulator.
func (s *Store) SetChunkTimeStampRange(chunkID chunk.ChunkID, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.chunkRanges[chunkID]
	if !ok {
		s.chunkRanges[chunkID] = timeRange{start: ts, end: ts}
		return nil
	}
	if ts.Before(r.start) {
		r.start = ts
	}
	if ts.After(r.end) {
		r.end = ts
	}
	s.chunkRanges[chunkID] = r
	return nil
}

// GetChunkTimeStampRange implements scavenge.StateForAccumulator.
func (s *Store) GetChunkTimeStampRange(chunkID chunk.ChunkID) (time.Time, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.chunkRanges[chunkID]
	return r.start, r.end, ok, nil
}

// AllStreamHandles implements scavenge.StateForCalculator and
// scavenge.StateForIndexExecutor.
func (s *Store) AllStreamHandles() ([]scavenge.StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]scavenge.StreamHandle, 0, len(s.originalStreams))
	for key := range s.originalStreams {
		if key.id != "" {
			handles = append(handles, scavenge.IDHandle(key.id, key.hash))
		} else {
			handles = append(handles, scavenge.HashHandle(key.hash))
		}
	}
	return handles, nil
}

// AddChunkWeight implements scavenge.StateForCalculator.
func (s *Store) AddChunkWeight(chunkID chunk.ChunkID, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkWeights[chunkID] += weight
	return nil
}

// GetChunkWeight implements scavenge.StateForCalculator.
func (s *Store) GetChunkWeight(chunkID chunk.ChunkID) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkWeights[chunkID], nil
}

// ChunksAboveThreshold implements scavenge.StateForChunkExecutor.
func (s *Store) ChunksAboveThreshold(threshold float64) ([]chunk.ChunkID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chunk.ChunkID
	for id, weight := range s.chunkWeights {
		if weight >= threshold {
			out = append(out, id)
		}
	}
	return out, nil
}

// DeleteOriginalStreamData implements scavenge.StateForCleaner.
func (s *Store) DeleteOriginalStreamData(handle scavenge.StreamHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.originalStreams, keyFor(handle))
	return nil
}

// DeleteMetastreamData implements scavenge.StateForCleaner.
func (s *Store) DeleteMetastreamData(handle scavenge.StreamHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metaStreams, keyFor(handle))
	return nil
}

// ClearChunkWeights implements scavenge.StateForCleaner.
func (s *Store) ClearChunkWeights() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkWeights = make(map[chunk.ChunkID]float64)
	return nil
}

// ClearChunkTimeStampRanges implements scavenge.StateForCleaner.
func (s *Store) ClearChunkTimeStampRanges() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkRanges = make(map[chunk.ChunkID]timeRange)
	return nil
}

// LoadCheckpoint implements scavenge.ScavengeState.
func (s *Store) LoadCheckpoint() (scavenge.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint, nil
}

// SaveCheckpoint implements scavenge.ScavengeState.
func (s *Store) SaveCheckpoint(cp scavenge.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = cp
	return nil
}

// Close implements scavenge.ScavengeState. The in-memory store holds no
// resources to release.
func (s *Store) Close() error { return nil }

// txn is a no-op Transaction: it takes no snapshot, Commit does nothing
// because every write has already been applied to the store, and Rollback
// does not undo writes made since BeginTransaction.
type txn struct {
	store *Store
}

// BeginTransaction implements scavenge.ScavengeState.
func (s *Store) BeginTransaction() (scavenge.Transaction, error) {
	return &txn{store: s}, nil
}

func (t *txn) Commit() error   { return nil }
func (t *txn) Rollback() error { return nil }
