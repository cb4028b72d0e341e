// Package file provides a file-backed streamindex.Manager, one index file
// per chunk, following the same layout conventions as internal/index/file/time.
package file

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	gotime "time"

	"gastrolog/internal/chunk"
	"gastrolog/internal/format"
	"gastrolog/internal/index/streamindex"

	"github.com/google/uuid"
)

const (
	currentVersion = 0x01

	chunkIDSize    = 16
	entryCountSize = 4
	hashSize       = 8
	eventNumSize   = 8
	timestampSize  = 8
	posSize        = 4

	headerSize = format.HeaderSize + chunkIDSize + entryCountSize
	entrySize  = hashSize + eventNumSize + timestampSize + posSize

	indexFileName = "_stream.idx"
)

var (
	ErrIndexTooSmall     = errors.New("stream index too small")
	ErrChunkIDMismatch   = errors.New("stream index chunk ID mismatch")
	ErrEntrySizeMismatch = errors.New("stream index entry size mismatch")
)

// entry is the decoded on-disk representation of one stream index record.
type entry struct {
	hash        uint64
	eventNumber uint64
	timestamp   gotime.Time
	pos         uint64
}

// IndexPath returns the stream index file path for a chunk.
func IndexPath(dir string, chunkID chunk.ChunkID) string {
	return filepath.Join(dir, chunkID.String(), indexFileName)
}

// encode serializes entries, which must already be sorted by (hash, eventNumber).
//
// Layout:
//
//	Header (24 bytes): signature, type='x', version, flags, chunkID (16), entryCount (4)
//	Entries (28 bytes each): hash (8), eventNumber (8), timestamp unix-micros (8), pos (4)
func encode(chunkID chunk.ChunkID, entries []entry) []byte {
	buf := make([]byte, headerSize+len(entries)*entrySize)

	cursor := 0
	h := format.Header{Type: format.TypeStreamIndex, Version: currentVersion, Flags: 0}
	cursor += h.EncodeInto(buf[cursor:])

	uid := uuid.UUID(chunkID)
	copy(buf[cursor:cursor+chunkIDSize], uid[:])
	cursor += chunkIDSize

	binary.LittleEndian.PutUint32(buf[cursor:cursor+entryCountSize], uint32(len(entries))) //nolint:gosec // G115: bounded by caller
	cursor += entryCountSize

	for _, e := range entries {
		binary.LittleEndian.PutUint64(buf[cursor:cursor+hashSize], e.hash)
		cursor += hashSize
		binary.LittleEndian.PutUint64(buf[cursor:cursor+eventNumSize], e.eventNumber)
		cursor += eventNumSize
		binary.LittleEndian.PutUint64(buf[cursor:cursor+timestampSize], uint64(e.timestamp.UnixMicro())) //nolint:gosec // G115: unix micros fits
		cursor += timestampSize
		binary.LittleEndian.PutUint32(buf[cursor:cursor+posSize], uint32(e.pos)) //nolint:gosec // G115: position bounded by chunk size
		cursor += posSize
	}

	return buf
}

func decode(chunkID chunk.ChunkID, data []byte) ([]entry, error) {
	if len(data) < headerSize {
		return nil, ErrIndexTooSmall
	}

	if _, err := format.DecodeAndValidate(data, format.TypeStreamIndex, currentVersion); err != nil {
		return nil, fmt.Errorf("stream index: %w", err)
	}
	cursor := format.HeaderSize

	var storedID uuid.UUID
	copy(storedID[:], data[cursor:cursor+chunkIDSize])
	if storedID != uuid.UUID(chunkID) {
		return nil, ErrChunkIDMismatch
	}
	cursor += chunkIDSize

	count := binary.LittleEndian.Uint32(data[cursor : cursor+entryCountSize])
	cursor += entryCountSize

	expected := headerSize + int(count)*entrySize
	if len(data) != expected {
		return nil, ErrEntrySizeMismatch
	}

	entries := make([]entry, count)
	for i := range entries {
		entries[i].hash = binary.LittleEndian.Uint64(data[cursor : cursor+hashSize])
		cursor += hashSize
		entries[i].eventNumber = binary.LittleEndian.Uint64(data[cursor : cursor+eventNumSize])
		cursor += eventNumSize
		micros := int64(binary.LittleEndian.Uint64(data[cursor : cursor+timestampSize])) //nolint:gosec // G115: round-trip of stored value
		entries[i].timestamp = gotime.UnixMicro(micros)
		cursor += timestampSize
		entries[i].pos = uint64(binary.LittleEndian.Uint32(data[cursor : cursor+posSize]))
		cursor += posSize
	}

	return entries, nil
}

func loadEntries(dir string, chunkID chunk.ChunkID) ([]entry, error) {
	data, err := os.ReadFile(IndexPath(dir, chunkID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, streamindex.ErrNotBuilt
		}
		return nil, fmt.Errorf("read stream index: %w", err)
	}
	return decode(chunkID, data)
}

func saveEntries(dir string, chunkID chunk.ChunkID, entries []entry) error {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].hash != entries[j].hash {
			return entries[i].hash < entries[j].hash
		}
		return entries[i].eventNumber < entries[j].eventNumber
	})

	if err := os.MkdirAll(filepath.Join(dir, chunkID.String()), 0755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(dir, chunkID.String()), indexFileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp stream index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(encode(chunkID, entries)); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp stream index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp stream index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp stream index: %w", err)
	}

	return os.Rename(tmp.Name(), IndexPath(dir, chunkID))
}
