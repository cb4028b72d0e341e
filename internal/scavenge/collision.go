package scavenge

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// defaultCollisionCacheSize bounds the in-memory hash->stream id cache a
// CollisionDetector keeps in front of ScavengeState's durable collision
// table. 10,000 entries covers any realistic number of concurrently
// colliding streams without materially affecting memory.
const defaultCollisionCacheSize = 10_000

// CollisionDetector resolves whether a stream hash is known to collide with
// another stream, and if so maps (hash, streamID) to the StreamHandle the
// rest of the scavenge state maps should use to address it. A bounded LRU
// sits in front of the durable collisions table maintained in
// ScavengeState so the hot path (one lookup per record swept) rarely
// round-trips to the backing store.
type CollisionDetector struct {
	state StateForAccumulator
	cache *lru.Cache
}

// NewCollisionDetector creates a CollisionDetector backed by state, with an
// LRU cache sized per defaultCollisionCacheSize.
func NewCollisionDetector(state StateForAccumulator) (*CollisionDetector, error) {
	return NewCollisionDetectorSized(state, defaultCollisionCacheSize)
}

// NewCollisionDetectorSized is NewCollisionDetector with an explicit cache
// size, primarily for tests that want to force eviction.
func NewCollisionDetectorSized(state StateForAccumulator, cacheSize int) (*CollisionDetector, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create collision cache: %w", err)
	}
	return &CollisionDetector{state: state, cache: cache}, nil
}

// HandleFor returns the StreamHandle streamID should be addressed by: a
// plain hash handle, unless hash is known (or newly discovered here) to
// collide with a different stream, in which case it returns an id handle.
func (d *CollisionDetector) HandleFor(streamID string, hash uint64) (StreamHandle, error) {
	if cached, ok := d.cache.Get(hash); ok {
		if cached.(string) != streamID {
			return IDHandle(streamID, hash), nil
		}
		return HashHandle(hash), nil
	}

	isCollision, err := d.state.IsCollision(hash)
	if err != nil {
		return StreamHandle{}, fmt.Errorf("check collision for hash %d: %w", hash, err)
	}
	if isCollision {
		return IDHandle(streamID, hash), nil
	}

	d.cache.Add(hash, streamID)
	return HashHandle(hash), nil
}

// Observe records that streamID was seen at hash. If a different stream id
// was previously observed at the same hash, it records the collision in the
// durable state so every future lookup for hash (from this process or after
// a restart) resolves to an id handle instead of a hash handle.
func (d *CollisionDetector) Observe(streamID string, hash uint64) (StreamHandle, error) {
	if cached, ok := d.cache.Get(hash); ok {
		prev := cached.(string)
		if prev == streamID {
			return HashHandle(hash), nil
		}

		if err := d.state.RecordCollision(hash, prev); err != nil {
			return StreamHandle{}, fmt.Errorf("record collision for hash %d: %w", hash, err)
		}
		if err := d.state.RecordCollision(hash, streamID); err != nil {
			return StreamHandle{}, fmt.Errorf("record collision for hash %d: %w", hash, err)
		}
		// hash now collides: drop the cached single owner so later lookups
		// for either stream go to the durable table and get an id handle.
		d.cache.Remove(hash)
		return IDHandle(streamID, hash), nil
	}

	isCollision, err := d.state.IsCollision(hash)
	if err != nil {
		return StreamHandle{}, fmt.Errorf("check collision for hash %d: %w", hash, err)
	}
	if isCollision {
		if err := d.state.RecordCollision(hash, streamID); err != nil {
			return StreamHandle{}, fmt.Errorf("record collision for hash %d: %w", hash, err)
		}
		return IDHandle(streamID, hash), nil
	}

	d.cache.Add(hash, streamID)
	return HashHandle(hash), nil
}
