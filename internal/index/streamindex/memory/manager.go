// Package memory provides an in-memory streamindex.Manager, intended for
// tests and the default single-process deployment's in-memory chunk vault.
// Entries are kept in a google/btree ordered by (hash, eventNumber) per
// chunk — spec.md §3 describes the secondary index as literally "a B-tree
// of (hash, version, position) entries"; this backend takes that at face
// value instead of approximating it with a plain slice.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gastrolog/internal/chunk"
	"gastrolog/internal/index/streamindex"
	"gastrolog/internal/streamrecord"

	"github.com/google/btree"
)

// memEntry is the btree element: ordered by (hash, eventNumber).
type memEntry struct {
	hash        uint64
	eventNumber uint64
	info        streamindex.EventInfo
}

func lessEntry(a, b memEntry) bool {
	if a.hash != b.hash {
		return a.hash < b.hash
	}
	return a.eventNumber < b.eventNumber
}

// Manager is an in-memory streamindex.Manager.
type Manager struct {
	chunkManager chunk.ChunkManager
	hasher       func(string) uint64

	mu    sync.Mutex
	trees map[chunk.ChunkID]*btree.BTreeG[memEntry]
}

// NewManager creates an in-memory stream index manager. hasher computes the
// 64-bit stream hash used as the btree's primary ordering key.
func NewManager(chunkManager chunk.ChunkManager, hasher func(string) uint64) *Manager {
	return &Manager{
		chunkManager: chunkManager,
		hasher:       hasher,
		trees:        make(map[chunk.ChunkID]*btree.BTreeG[memEntry]),
	}
}

var _ streamindex.Manager = (*Manager)(nil)

// BuildForChunk implements streamindex.Manager.
func (m *Manager) BuildForChunk(_ context.Context, chunkID chunk.ChunkID) error {
	cursor, err := m.chunkManager.OpenCursor(chunkID)
	if err != nil {
		return fmt.Errorf("open cursor for stream index build: %w", err)
	}
	defer cursor.Close()

	tree := btree.NewG(32, lessEntry)
	for {
		rec, ref, err := cursor.Next()
		if err != nil {
			if errors.Is(err, chunk.ErrNoMoreRecords) {
				break
			}
			return fmt.Errorf("read record for stream index build: %w", err)
		}

		info, ok := streamrecord.Decode(rec)
		if !ok {
			continue
		}

		tree.ReplaceOrInsert(memEntry{
			hash:        m.hasher(info.StreamID),
			eventNumber: info.EventNumber,
			info: streamindex.EventInfo{
				EventNumber: info.EventNumber,
				Timestamp:   streamrecord.EffectiveTimestamp(rec),
				Ref:         ref,
			},
		})
	}

	m.mu.Lock()
	m.trees[chunkID] = tree
	m.mu.Unlock()
	return nil
}

// DeleteForChunk implements streamindex.Manager.
func (m *Manager) DeleteForChunk(chunkID chunk.ChunkID) error {
	m.mu.Lock()
	delete(m.trees, chunkID)
	m.mu.Unlock()
	return nil
}

func (m *Manager) orderedChunks(upTo chunk.RecordRef) ([]chunk.ChunkMeta, error) {
	metas, err := m.chunkManager.List()
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID.Time().Before(metas[j].ID.Time()) })

	var zero chunk.ChunkID
	if upTo.ChunkID == zero {
		return metas, nil
	}

	cutoff := upTo.ChunkID.Time()
	out := make([]chunk.ChunkMeta, 0, len(metas))
	for _, meta := range metas {
		if meta.ID.Time().After(cutoff) {
			break
		}
		out = append(out, meta)
	}
	return out, nil
}

// GetLastEventNumber implements streamindex.Manager.
func (m *Manager) GetLastEventNumber(streamHash uint64, upTo chunk.RecordRef) (uint64, bool, error) {
	metas, err := m.orderedChunks(upTo)
	if err != nil {
		return 0, false, err
	}

	var (
		best  uint64
		found bool
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(metas) - 1; i >= 0; i-- {
		chunkID := metas[i].ID
		tree, ok := m.trees[chunkID]
		if !ok {
			continue
		}

		limitPos := ^uint64(0)
		if chunkID == upTo.ChunkID {
			limitPos = upTo.Pos
		}

		tree.AscendRange(
			memEntry{hash: streamHash, eventNumber: 0},
			memEntry{hash: streamHash + 1, eventNumber: 0},
			func(e memEntry) bool {
				if chunkID == upTo.ChunkID && e.info.Ref.Pos > limitPos {
					return true
				}
				if !found || e.eventNumber > best {
					best = e.eventNumber
					found = true
				}
				return true
			},
		)

		if found {
			return best, true, nil
		}
	}

	return 0, false, nil
}

// ReadEventInfoForward implements streamindex.Manager.
func (m *Manager) ReadEventInfoForward(streamHash uint64, from uint64, maxCount int, upTo chunk.RecordRef) ([]streamindex.EventInfo, error) {
	metas, err := m.orderedChunks(upTo)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []streamindex.EventInfo
	for _, meta := range metas {
		chunkID := meta.ID
		tree, ok := m.trees[chunkID]
		if !ok {
			continue
		}

		limitPos := ^uint64(0)
		if chunkID == upTo.ChunkID {
			limitPos = upTo.Pos
		}

		tree.AscendRange(
			memEntry{hash: streamHash, eventNumber: from},
			memEntry{hash: streamHash + 1, eventNumber: 0},
			func(e memEntry) bool {
				if chunkID == upTo.ChunkID && e.info.Ref.Pos > limitPos {
					return true
				}
				out = append(out, e.info)
				return len(out) < maxCount
			},
		)

		if len(out) >= maxCount {
			break
		}
	}

	return out, nil
}

// Scavenge implements streamindex.Manager.
func (m *Manager) Scavenge(ctx context.Context, shouldKeep func(streamHash uint64, info streamindex.EventInfo) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tree := range m.trees {
		if err := ctx.Err(); err != nil {
			return err
		}

		var toRemove []memEntry
		tree.Ascend(func(e memEntry) bool {
			if !shouldKeep(e.hash, e.info) {
				toRemove = append(toRemove, e)
			}
			return true
		})
		for _, e := range toRemove {
			tree.Delete(e)
		}
	}

	return nil
}
