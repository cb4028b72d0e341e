package scavenge

import (
	"time"

	"gastrolog/internal/chunk"
	"gastrolog/internal/streamrecord"
)

// ScavengesStreamName is the well-known stream holding scavenge point markers.
const ScavengesStreamName = streamrecord.ScavengesStreamName

// StreamRecord is the scavenge core's view of a single chunk.Record: the
// stream-level facts the Accumulator reasons about, plus where the record
// lives. internal/streamrecord owns the attribute convention this is decoded
// from; this type exists so the rest of the scavenge package never touches
// chunk.Record.Attrs directly.
type StreamRecord struct {
	StreamID       string
	EventNumber    uint64
	Kind           streamrecord.Kind
	SelfCommitted  bool
	Timestamp      time.Time
	Ref            chunk.RecordRef
	TruncateBefore *uint64
	MaxAgeSeconds  *int64
	MaxCount       *uint64
}

// DecodeStreamRecord extracts the stream-level view of rec. ok is false for
// records that carry no stream attribute (not part of the event-sourced
// log), which the Accumulator skips entirely.
func DecodeStreamRecord(rec chunk.Record) (StreamRecord, bool) {
	info, ok := streamrecord.Decode(rec)
	if !ok {
		return StreamRecord{}, false
	}
	return StreamRecord{
		StreamID:       info.StreamID,
		EventNumber:    info.EventNumber,
		Kind:           info.Kind,
		SelfCommitted:  info.SelfCommitted,
		Timestamp:      streamrecord.EffectiveTimestamp(rec),
		Ref:            rec.Ref,
		TruncateBefore: info.TruncateBefore,
		MaxAgeSeconds:  info.MaxAgeSeconds,
		MaxCount:       info.MaxCount,
	}, true
}

// IsMetastream reports whether sr belongs to a metadata stream ("$X").
func (sr StreamRecord) IsMetastream() bool {
	return streamrecord.IsMetastream(sr.StreamID)
}

// OriginalStreamID returns the original stream name for a metastream
// record, and false if sr does not belong to a metastream.
func (sr StreamRecord) OriginalStreamID() (string, bool) {
	return streamrecord.OriginalStreamOf(sr.StreamID)
}
