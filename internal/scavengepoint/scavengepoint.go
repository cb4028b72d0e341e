// Package scavengepoint implements scavenge.ScavengePointSource by treating
// $scavenges as an ordinary stream addressed through chunk.ChunkManager,
// the same way internal/orchestrator treats metastreams as conventions
// layered on top of the generic chunk format rather than a separate
// storage mechanism.
package scavengepoint

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"gastrolog/internal/chunk"
	"gastrolog/internal/scavenge"
	"gastrolog/internal/streamrecord"
)

const attrThreshold = "threshold"

// Source appends and reads $scavenges stream markers through a
// chunk.ChunkManager.
type Source struct {
	chunkManager chunk.ChunkManager
	clock        scavenge.Clock

	mu          sync.Mutex
	eventNumber uint64
	seeded      bool
}

var _ scavenge.ScavengePointSource = (*Source)(nil)

// NewSource constructs a Source over chunkManager. clock defaults to
// scavenge.SystemClock if nil.
func NewSource(chunkManager chunk.ChunkManager, clock scavenge.Clock) *Source {
	if clock == nil {
		clock = scavenge.SystemClock
	}
	return &Source{chunkManager: chunkManager, clock: clock}
}

func (s *Source) orderedChunks() ([]chunk.ChunkMeta, error) {
	metas, err := s.chunkManager.List()
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID.Time().Before(metas[j].ID.Time()) })
	return metas, nil
}

// NextScavengePoint appends a new $scavenges record at the log's current
// tail and returns it. The event number sequence is seeded from the last
// recorded point on first use, so a restarted process continues the same
// monotonic sequence.
func (s *Source) NextScavengePoint(threshold int) (scavenge.ScavengePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		last, ok, err := s.lastScavengePointLocked()
		if err != nil {
			return scavenge.ScavengePoint{}, err
		}
		if ok {
			s.eventNumber = last.EventNumber + 1
		}
		s.seeded = true
	}

	now := s.clock()
	info := streamrecord.Info{
		StreamID:      streamrecord.ScavengesStreamName,
		EventNumber:   s.eventNumber,
		Kind:          streamrecord.KindScavengePoint,
		SelfCommitted: true,
	}
	rec := streamrecord.Encode(chunk.Record{SourceTS: now, WriteTS: now}, info)
	rec.Attrs[attrThreshold] = strconv.Itoa(threshold)

	chunkID, pos, err := s.chunkManager.Append(rec)
	if err != nil {
		return scavenge.ScavengePoint{}, fmt.Errorf("%w: append scavenge point: %v", scavenge.ErrIoFailure, err)
	}

	point := scavenge.ScavengePoint{
		EventNumber: s.eventNumber,
		Threshold:   threshold,
		Timestamp:   now,
		Ref:         chunk.RecordRef{ChunkID: chunkID, Pos: pos},
	}
	s.eventNumber++
	return point, nil
}

// LastScavengePoint returns the most recently appended scavenge point.
func (s *Source) LastScavengePoint() (scavenge.ScavengePoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScavengePointLocked()
}

func (s *Source) lastScavengePointLocked() (scavenge.ScavengePoint, bool, error) {
	metas, err := s.orderedChunks()
	if err != nil {
		return scavenge.ScavengePoint{}, false, err
	}

	for i := len(metas) - 1; i >= 0; i-- {
		point, ok, err := s.lastScavengePointInChunk(metas[i].ID)
		if err != nil {
			return scavenge.ScavengePoint{}, false, err
		}
		if ok {
			return point, true, nil
		}
	}
	return scavenge.ScavengePoint{}, false, nil
}

func (s *Source) lastScavengePointInChunk(chunkID chunk.ChunkID) (scavenge.ScavengePoint, bool, error) {
	cursor, err := s.chunkManager.OpenCursor(chunkID)
	if err != nil {
		return scavenge.ScavengePoint{}, false, fmt.Errorf("%w: open cursor for chunk %s: %v", scavenge.ErrIoFailure, chunkID, err)
	}
	defer cursor.Close()

	var found scavenge.ScavengePoint
	var ok bool
	for {
		rec, ref, err := cursor.Next()
		if err != nil {
			if errors.Is(err, chunk.ErrNoMoreRecords) {
				break
			}
			return scavenge.ScavengePoint{}, false, fmt.Errorf("%w: read record in chunk %s: %v", scavenge.ErrIoFailure, chunkID, err)
		}

		info, decoded := streamrecord.Decode(rec)
		if !decoded || info.StreamID != streamrecord.ScavengesStreamName {
			continue
		}

		threshold, _ := strconv.Atoi(rec.Attrs[attrThreshold])
		found = scavenge.ScavengePoint{
			EventNumber: info.EventNumber,
			Threshold:   threshold,
			Timestamp:   streamrecord.EffectiveTimestamp(rec),
			Ref:         ref,
		}
		ok = true
	}

	return found, ok, nil
}
