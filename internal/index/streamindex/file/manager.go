package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gastrolog/internal/chunk"
	"gastrolog/internal/index/streamindex"
	"gastrolog/internal/logging"
)

// Manager is a file-backed streamindex.Manager: one "_stream.idx" file per
// chunk, rebuilt wholesale on Scavenge. Chunk ordering for cross-chunk scans
// comes from chunk.ChunkManager.List(), which returns chunks sorted by
// creation order (UUIDv7), matching spec.md's log-order requirement.
type Manager struct {
	dir          string
	chunkManager chunk.ChunkManager
	hasher       func(string) uint64
	logger       *slog.Logger
}

// Config configures a file-backed streamindex.Manager.
type Config struct {
	// Dir is the root directory under which chunk subdirectories live.
	Dir string
	// Hasher computes the 64-bit stream hash. Required.
	Hasher func(string) uint64
	Logger *slog.Logger
}

// NewManager creates a file-backed stream index manager.
func NewManager(cfg Config, chunkManager chunk.ChunkManager) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("streamindex/file: Dir is required")
	}
	if cfg.Hasher == nil {
		return nil, errors.New("streamindex/file: Hasher is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create stream index dir: %w", err)
	}

	return &Manager{
		dir:          cfg.Dir,
		chunkManager: chunkManager,
		hasher:       cfg.Hasher,
		logger:       logging.Default(cfg.Logger).With("component", "streamindex", "type", "file"),
	}, nil
}

var _ streamindex.Manager = (*Manager)(nil)

// DeleteForChunk implements streamindex.Manager.
func (m *Manager) DeleteForChunk(chunkID chunk.ChunkID) error {
	err := os.Remove(IndexPath(m.dir, chunkID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stream index: %w", err)
	}
	return nil
}

// orderedChunks returns chunk metadata in ascending creation order up to and
// including the chunk named by upTo (or all chunks if upTo is the zero value).
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

	for i := len(metas) - 1; i >= 0; i-- {
		chunkID := metas[i].ID
		entries, err := loadEntries(m.dir, chunkID)
		if err != nil {
			if errors.Is(err, streamindex.ErrNotBuilt) {
				continue
			}
			return 0, false, err
		}

		limitPos := ^uint64(0)
		if chunkID == upTo.ChunkID {
			limitPos = upTo.Pos
		}

		for _, e := range entries {
			if e.hash != streamHash {
				continue
			}
			if chunkID == upTo.ChunkID && e.pos > limitPos {
				continue
			}
			if !found || e.eventNumber > best {
				best = e.eventNumber
				found = true
			}
		}

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

	var out []streamindex.EventInfo
	for _, meta := range metas {
		chunkID := meta.ID
		entries, err := loadEntries(m.dir, chunkID)
		if err != nil {
			if errors.Is(err, streamindex.ErrNotBuilt) {
				continue
			}
			return nil, err
		}

		limitPos := ^uint64(0)
		if chunkID == upTo.ChunkID {
			limitPos = upTo.Pos
		}

		matches := make([]entry, 0)
		for _, e := range entries {
			if e.hash != streamHash || e.eventNumber < from {
				continue
			}
			if chunkID == upTo.ChunkID && e.pos > limitPos {
				continue
			}
			matches = append(matches, e)
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].eventNumber < matches[j].eventNumber })

		for _, e := range matches {
			out = append(out, streamindex.EventInfo{
				EventNumber: e.eventNumber,
				Timestamp:   e.timestamp,
				Ref:         chunk.RecordRef{ChunkID: chunkID, Pos: e.pos},
			})
			if len(out) >= maxCount {
				return out, nil
			}
		}
	}

	return out, nil
}

// Scavenge implements streamindex.Manager by rewriting every chunk's index
// file in place, dropping entries shouldKeep rejects.
func (m *Manager) Scavenge(ctx context.Context, shouldKeep func(streamHash uint64, info streamindex.EventInfo) bool) error {
	metas, err := m.chunkManager.List()
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}

	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := loadEntries(m.dir, meta.ID)
		if err != nil {
			if errors.Is(err, streamindex.ErrNotBuilt) {
				continue
			}
			return err
		}

		kept := entries[:0:0]
		for _, e := range entries {
			info := streamindex.EventInfo{
				EventNumber: e.eventNumber,
				Timestamp:   e.timestamp,
				Ref:         chunk.RecordRef{ChunkID: meta.ID, Pos: e.pos},
			}
			if shouldKeep(e.hash, info) {
				kept = append(kept, e)
			}
		}

		if len(kept) == len(entries) {
			continue
		}
		if err := saveEntries(m.dir, meta.ID, kept); err != nil {
			return fmt.Errorf("scavenge stream index for chunk %s: %w", meta.ID, err)
		}
	}

	return nil
}
