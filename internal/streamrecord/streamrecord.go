// Package streamrecord defines the attribute convention that layers
// event-sourced streams on top of gastrolog's generic chunk.Record.
//
// gastrolog's chunk format (internal/chunk/types.go) already carries
// arbitrary key-value Attrs per record; the scavenge subsystem and its
// stream index use a small fixed set of attribute keys to recover stream
// identity, per-stream event numbers, and record kind without requiring any
// change to the chunk or index file formats.
package streamrecord

import (
	"strconv"
	"time"

	"gastrolog/internal/chunk"
)

// Attribute keys used to encode stream semantics onto a chunk.Record.
const (
	AttrStream         = "stream"
	AttrEventNumber    = "event_number"
	AttrKind           = "kind"
	AttrSelfCommitted  = "self_committed"
	AttrTruncateBefore = "truncate_before"
	AttrMaxAgeSeconds  = "max_age_seconds"
	AttrMaxCount       = "max_count"
)

// Kind distinguishes prepares from system/non-prepare records.
type Kind string

const (
	KindPrepare       Kind = "prepare"
	KindTombstone     Kind = "tombstone"
	KindMetadata      Kind = "metadata"
	KindScavengePoint Kind = "scavenge_point"
)

// Info is the decoded stream-level view of a chunk.Record.
type Info struct {
	StreamID      string
	EventNumber   uint64
	Kind          Kind
	SelfCommitted bool

	// TruncateBefore is set on KindMetadata records that declare an
	// explicit "$tb" style discard boundary for the governed stream: every
	// event number below it may be discarded.
	TruncateBefore *uint64

	// MaxAgeSeconds is set on KindMetadata records that declare a rolling
	// retention window for the governed stream.
	MaxAgeSeconds *int64

	// MaxCount is set on KindMetadata records that declare how many of the
	// governed stream's most recent events to keep; the Calculator resolves
	// it against the stream's last event number, since only it has index
	// access to that.
	MaxCount *uint64
}

// Decode extracts stream semantics from a record's attributes.
// ok is false if the record carries no "stream" attribute, meaning it is
// not part of the event-sourced log (e.g. a record from an unrelated
// gastrolog vault that never went through Encode).
func Decode(rec chunk.Record) (Info, bool) {
	streamID, ok := rec.Attrs[AttrStream]
	if !ok || streamID == "" {
		return Info{}, false
	}

	evNum, _ := strconv.ParseUint(rec.Attrs[AttrEventNumber], 10, 64)

	kind := Kind(rec.Attrs[AttrKind])
	if kind == "" {
		kind = KindPrepare
	}

	info := Info{
		StreamID:      streamID,
		EventNumber:   evNum,
		Kind:          kind,
		SelfCommitted: rec.Attrs[AttrSelfCommitted] == "1" || rec.Attrs[AttrSelfCommitted] == "",
	}

	if raw, ok := rec.Attrs[AttrTruncateBefore]; ok {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			info.TruncateBefore = &v
		}
	}
	if raw, ok := rec.Attrs[AttrMaxAgeSeconds]; ok {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			info.MaxAgeSeconds = &v
		}
	}
	if raw, ok := rec.Attrs[AttrMaxCount]; ok {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			info.MaxCount = &v
		}
	}

	return info, true
}

// Encode applies stream semantics onto a record's attributes, returning a
// copy with the stream-related keys set. Used when appending new events and
// by tests that build fixtures.
func Encode(rec chunk.Record, info Info) chunk.Record {
	attrs := rec.Attrs.Copy()
	if attrs == nil {
		attrs = chunk.Attributes{}
	}
	attrs[AttrStream] = info.StreamID
	attrs[AttrEventNumber] = strconv.FormatUint(info.EventNumber, 10)
	attrs[AttrKind] = string(info.Kind)
	if info.SelfCommitted {
		attrs[AttrSelfCommitted] = "1"
	} else {
		attrs[AttrSelfCommitted] = "0"
	}
	if info.TruncateBefore != nil {
		attrs[AttrTruncateBefore] = strconv.FormatUint(*info.TruncateBefore, 10)
	}
	if info.MaxAgeSeconds != nil {
		attrs[AttrMaxAgeSeconds] = strconv.FormatInt(*info.MaxAgeSeconds, 10)
	}
	if info.MaxCount != nil {
		attrs[AttrMaxCount] = strconv.FormatUint(*info.MaxCount, 10)
	}
	rec.Attrs = attrs
	return rec
}

// IsMetastream reports whether streamID names a metadata stream ("$X").
func IsMetastream(streamID string) bool {
	return len(streamID) >= 1 && streamID[0] == '$'
}

// MetastreamOf returns the metastream name for an original stream.
func MetastreamOf(streamID string) string {
	return "$" + streamID
}

// OriginalStreamOf returns the original stream name for a metastream,
// and false if streamID is not a metastream.
func OriginalStreamOf(streamID string) (string, bool) {
	if !IsMetastream(streamID) {
		return "", false
	}
	return streamID[1:], true
}

// ScavengesStreamName is the well-known stream holding scavenge point markers.
const ScavengesStreamName = "$scavenges"

// EffectiveTimestamp returns the timestamp used for retention decisions:
// SourceTS when set, falling back to WriteTS.
func EffectiveTimestamp(rec chunk.Record) time.Time {
	if !rec.SourceTS.IsZero() {
		return rec.SourceTS
	}
	return rec.WriteTS
}
