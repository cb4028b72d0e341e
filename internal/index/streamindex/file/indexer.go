package file

import (
	"context"
	"errors"
	"fmt"

	"gastrolog/internal/chunk"
	"gastrolog/internal/streamrecord"
)

// build reads every record in chunkID through chunkManager and produces the
// sorted entry list for its stream index. Records without stream attributes
// (not part of the event-sourced log) are skipped.
func build(chunkManager chunk.ChunkManager, hasher func(string) uint64, chunkID chunk.ChunkID) ([]entry, error) {
	cursor, err := chunkManager.OpenCursor(chunkID)
	if err != nil {
		return nil, fmt.Errorf("open cursor for stream index build: %w", err)
	}
	defer cursor.Close()

	var entries []entry
	for {
		rec, ref, err := cursor.Next()
		if err != nil {
			if errors.Is(err, chunk.ErrNoMoreRecords) {
				break
			}
			return nil, fmt.Errorf("read record for stream index build: %w", err)
		}

		info, ok := streamrecord.Decode(rec)
		if !ok {
			continue
		}

		entries = append(entries, entry{
			hash:        hasher(info.StreamID),
			eventNumber: info.EventNumber,
			timestamp:   streamrecord.EffectiveTimestamp(rec),
			pos:         ref.Pos,
		})
	}

	return entries, nil
}

// BuildForChunk implements streamindex.Manager.
func (m *Manager) BuildForChunk(_ context.Context, chunkID chunk.ChunkID) error {
	entries, err := build(m.chunkManager, m.hasher, chunkID)
	if err != nil {
		return err
	}
	return saveEntries(m.dir, chunkID, entries)
}
