// Package sqlite provides a SQLite-backed scavenge.ScavengeState
// implementation: the durable store a production deployment uses so a
// scavenge run can resume from its checkpoint across a process restart.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"gastrolog/internal/chunk"
	"gastrolog/internal/scavenge"
)

const timeFormat = time.RFC3339Nano

// Store is a SQLite-backed scavenge.ScavengeState.
type Store struct {
	db   *sql.DB
	path string
}

var _ scavenge.ScavengeState = (*Store)(nil)

// NewStore opens a SQLite database at path and runs migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create scavenge state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set foreign_keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close implements scavenge.ScavengeState.
func (s *Store) Close() error { return s.db.Close() }

// streamKey splits a StreamHandle into the (hash, streamID) pair used as a
// composite primary key; streamID is "" for plain hash handles.
func streamKey(h scavenge.StreamHandle) (uint64, string) {
	id, _ := h.StreamID()
	return h.Hash(), id
}

// RecordCollision implements scavenge.StateForAccumulator.
func (s *Store) RecordCollision(hash uint64, streamID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO collisions (hash, stream_id) VALUES (?, ?)`,
		int64(hash), streamID,
	)
	if err != nil {
		return fmt.Errorf("record collision: %w", err)
	}
	return nil
}

// IsCollision implements scavenge.StateForAccumulator.
func (s *Store) IsCollision(hash uint64) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT count(*) FROM collisions WHERE hash = ?`, int64(hash)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check collision: %w", err)
	}
	return count > 1, nil
}

func (s *Store) getStreamData(table string, handle scavenge.StreamHandle) (scavenge.StreamData, bool, error) {
	hash, id := streamKey(handle)
	row := s.db.QueryRow(
		`SELECT discard_kind, discard_event_number, maybe_discard_kind, maybe_discard_event_number,
		        maybe_tombstoned, status, max_age_seconds, max_count, metastream_hash, metastream_stream_id
		 FROM `+table+` WHERE hash = ? AND stream_id = ?`,
		int64(hash), id,
	)

	var (
		kind                           int
		eventNumber                    int64
		maybeKind                      int
		maybeEventNumber               int64
		maybeTombstoned                int
		status                         int
		maxAge, maxCount, metaHash     sql.NullInt64
		metaStreamID                   sql.NullString
	)
	if err := row.Scan(&kind, &eventNumber, &maybeKind, &maybeEventNumber,
		&maybeTombstoned, &status, &maxAge, &maxCount, &metaHash, &metaStreamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scavenge.StreamData{}, false, nil
		}
		return scavenge.StreamData{}, false, fmt.Errorf("load stream data from %s: %w", table, err)
	}

	data := scavenge.StreamData{
		DiscardPoint:      discardPointFromRow(kind, eventNumber),
		MaybeDiscardPoint: discardPointFromRow(maybeKind, maybeEventNumber),
		MaybeTombstoned:   maybeTombstoned != 0,
		Status:            scavenge.StreamStatus(status),
	}
	if maxAge.Valid {
		data.MaxAgeSeconds = &maxAge.Int64
	}
	if maxCount.Valid {
		v := uint64(maxCount.Int64)
		data.MaxCount = &v
	}
	if metaHash.Valid {
		id := ""
		if metaStreamID.Valid {
			id = metaStreamID.String
		}
		var h scavenge.StreamHandle
		if id != "" {
			h = scavenge.IDHandle(id, uint64(metaHash.Int64))
		} else {
			h = scavenge.HashHandle(uint64(metaHash.Int64))
		}
		data.MetastreamHandle = &h
	}
	return data, true, nil
}

func (s *Store) setStreamData(table string, handle scavenge.StreamHandle, data scavenge.StreamData) error {
	hash, id := streamKey(handle)
	kind, eventNumber := discardPointToRow(data.DiscardPoint)
	maybeKind, maybeEventNumber := discardPointToRow(data.MaybeDiscardPoint)

	var maxAge, maxCount, metaHash sql.NullInt64
	var metaStreamID sql.NullString
	if data.MaxAgeSeconds != nil {
		maxAge = sql.NullInt64{Int64: *data.MaxAgeSeconds, Valid: true}
	}
	if data.MaxCount != nil {
		maxCount = sql.NullInt64{Int64: int64(*data.MaxCount), Valid: true}
	}
	if data.MetastreamHandle != nil {
		metaHash = sql.NullInt64{Int64: int64(data.MetastreamHandle.Hash()), Valid: true}
		if metaID, ok := data.MetastreamHandle.StreamID(); ok {
			metaStreamID = sql.NullString{String: metaID, Valid: true}
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO `+table+` (hash, stream_id, discard_kind, discard_event_number,
		                        maybe_discard_kind, maybe_discard_event_number, maybe_tombstoned,
		                        status, max_age_seconds, max_count, metastream_hash, metastream_stream_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (hash, stream_id) DO UPDATE SET
		   discard_kind = excluded.discard_kind,
		   discard_event_number = excluded.discard_event_number,
		   maybe_discard_kind = excluded.maybe_discard_kind,
		   maybe_discard_event_number = excluded.maybe_discard_event_number,
		   maybe_tombstoned = excluded.maybe_tombstoned,
		   status = excluded.status,
		   max_age_seconds = excluded.max_age_seconds,
		   max_count = excluded.max_count,
		   metastream_hash = excluded.metastream_hash,
		   metastream_stream_id = excluded.metastream_stream_id`,
		int64(hash), id, kind, eventNumber, maybeKind, maybeEventNumber, boolToInt(data.MaybeTombstoned),
		int(data.Status), maxAge, maxCount, metaHash, metaStreamID,
	)
	if err != nil {
		return fmt.Errorf("save stream data to %s: %w", table, err)
	}
	return nil
}

// GetOriginalStreamData implements scavenge.StateForAccumulator.
func (s *Store) GetOriginalStreamData(handle scavenge.StreamHandle) (scavenge.StreamData, bool, error) {
	return s.getStreamData("original_streams", handle)
}

// SetOriginalStreamData implements scavenge.StateForAccumulator.
func (s *Store) SetOriginalStreamData(handle scavenge.StreamHandle, data scavenge.StreamData) error {
	return s.setStreamData("original_streams", handle, data)
}

// GetMetastreamData implements scavenge.StateForAccumulator.
func (s *Store) GetMetastreamData(handle scavenge.StreamHandle) (scavenge.StreamData, bool, error) {
	return s.getStreamData("meta_streams", handle)
}

// SetMetastreamData implements scavenge.StateForAccumulator.
func (s *Store) SetMetastreamData(handle scavenge.StreamHandle, data scavenge.StreamData) error {
	return s.setStreamData("meta_streams", handle, data)
}

// SetChunkTimeStampRange implements scavenge.StateForAccumulator.
func (s *Store) SetChunkTimeStampRange(chunkID chunk.ChunkID, ts time.Time) error {
	id := chunkID.String()
	tsStr := ts.Format(timeFormat)

	_, err := s.db.Exec(
		`INSERT INTO chunk_ranges (chunk_id, start_ts, end_ts) VALUES (?, ?, ?)
		 ON CONFLICT (chunk_id) DO UPDATE SET
		   start_ts = MIN(start_ts, excluded.start_ts),
		   end_ts = MAX(end_ts, excluded.end_ts)`,
		id, tsStr, tsStr,
	)
	if err != nil {
		return fmt.Errorf("set chunk timestamp range: %w", err)
	}
	return nil
}

// GetChunkTimeStampRange implements scavenge.StateForAccumulator.
func (s *Store) GetChunkTimeStampRange(chunkID chunk.ChunkID) (time.Time, time.Time, bool, error) {
	var startStr, endStr string
	err := s.db.QueryRow(`SELECT start_ts, end_ts FROM chunk_ranges WHERE chunk_id = ?`, chunkID.String()).
		Scan(&startStr, &endStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, time.Time{}, false, nil
		}
		return time.Time{}, time.Time{}, false, fmt.Errorf("get chunk timestamp range: %w", err)
	}

	start, err := time.Parse(timeFormat, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse chunk range start: %w", err)
	}
	end, err := time.Parse(timeFormat, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse chunk range end: %w", err)
	}
	return start, end, true, nil
}

// AllStreamHandles implements scavenge.StateForCalculator and
// scavenge.StateForIndexExecutor.
func (s *Store) AllStreamHandles() ([]scavenge.StreamHandle, error) {
	rows, err := s.db.Query(`SELECT hash, stream_id FROM original_streams ORDER BY hash, stream_id`)
	if err != nil {
		return nil, fmt.Errorf("list stream handles: %w", err)
	}
	defer rows.Close()

	var handles []scavenge.StreamHandle
	for rows.Next() {
		var hash int64
		var id string
		if err := rows.Scan(&hash, &id); err != nil {
			return nil, fmt.Errorf("scan stream handle: %w", err)
		}
		if id != "" {
			handles = append(handles, scavenge.IDHandle(id, uint64(hash)))
		} else {
			handles = append(handles, scavenge.HashHandle(uint64(hash)))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream handles: %w", err)
	}
	return handles, nil
}

// AddChunkWeight implements scavenge.StateForCalculator.
func (s *Store) AddChunkWeight(chunkID chunk.ChunkID, weight float64) error {
	_, err := s.db.Exec(
		`INSERT INTO chunk_weights (chunk_id, weight) VALUES (?, ?)
		 ON CONFLICT (chunk_id) DO UPDATE SET weight = weight + excluded.weight`,
		chunkID.String(), weight,
	)
	if err != nil {
		return fmt.Errorf("add chunk weight: %w", err)
	}
	return nil
}

// GetChunkWeight implements scavenge.StateForCalculator.
func (s *Store) GetChunkWeight(chunkID chunk.ChunkID) (float64, error) {
	var weight float64
	err := s.db.QueryRow(`SELECT weight FROM chunk_weights WHERE chunk_id = ?`, chunkID.String()).Scan(&weight)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get chunk weight: %w", err)
	}
	return weight, nil
}

// ChunksAboveThreshold implements scavenge.StateForChunkExecutor.
func (s *Store) ChunksAboveThreshold(threshold float64) ([]chunk.ChunkID, error) {
	rows, err := s.db.Query(`SELECT chunk_id FROM chunk_weights WHERE weight >= ?`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list chunks above threshold: %w", err)
	}
	defer rows.Close()

	var out []chunk.ChunkID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		id, err := chunk.ParseChunkID(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: parse chunk id %q: %v", scavenge.ErrCorruptState, idStr, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks above threshold: %w", err)
	}
	return out, nil
}

// DeleteOriginalStreamData implements scavenge.StateForCleaner.
func (s *Store) DeleteOriginalStreamData(handle scavenge.StreamHandle) error {
	hash, id := streamKey(handle)
	if _, err := s.db.Exec(`DELETE FROM original_streams WHERE hash = ? AND stream_id = ?`, int64(hash), id); err != nil {
		return fmt.Errorf("delete original stream data: %w", err)
	}
	return nil
}

// DeleteMetastreamData implements scavenge.StateForCleaner.
func (s *Store) DeleteMetastreamData(handle scavenge.StreamHandle) error {
	hash, id := streamKey(handle)
	if _, err := s.db.Exec(`DELETE FROM meta_streams WHERE hash = ? AND stream_id = ?`, int64(hash), id); err != nil {
		return fmt.Errorf("delete metastream data: %w", err)
	}
	return nil
}

// ClearChunkWeights implements scavenge.StateForCleaner.
func (s *Store) ClearChunkWeights() error {
	if _, err := s.db.Exec(`DELETE FROM chunk_weights`); err != nil {
		return fmt.Errorf("clear chunk weights: %w", err)
	}
	return nil
}

// ClearChunkTimeStampRanges implements scavenge.StateForCleaner.
func (s *Store) ClearChunkTimeStampRanges() error {
	if _, err := s.db.Exec(`DELETE FROM chunk_ranges`); err != nil {
		return fmt.Errorf("clear chunk timestamp ranges: %w", err)
	}
	return nil
}

// LoadCheckpoint implements scavenge.ScavengeState.
func (s *Store) LoadCheckpoint() (scavenge.Checkpoint, error) {
	row := s.db.QueryRow(`
		SELECT phase, point_event_number, point_threshold, point_timestamp, point_chunk_id, point_pos,
		       done_accumulating_chunk_id, done_accumulating_pos, done_stream_hash, done_chunk_id
		FROM checkpoint WHERE id = 0`)

	var (
		phase                         int
		pointEventNumber              int64
		pointThreshold                int
		pointTimestamp, pointChunkID  string
		pointPos                      int64
		doneAccumulatingChunkID       string
		doneAccumulatingPos           int64
		doneStreamHash                int64
		doneChunkID                   string
	)
	err := row.Scan(&phase, &pointEventNumber, &pointThreshold, &pointTimestamp, &pointChunkID, &pointPos,
		&doneAccumulatingChunkID, &doneAccumulatingPos, &doneStreamHash, &doneChunkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scavenge.Checkpoint{}, nil
		}
		return scavenge.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}

	cp := scavenge.Checkpoint{
		Phase:          scavenge.Phase(phase),
		DoneStreamHash: uint64(doneStreamHash),
	}

	cp.Point.EventNumber = uint64(pointEventNumber)
	cp.Point.Threshold = pointThreshold
	if pointTimestamp != "" {
		if ts, err := time.Parse(timeFormat, pointTimestamp); err == nil {
			cp.Point.Timestamp = ts
		}
	}
	if pointChunkID != "" {
		if id, err := chunk.ParseChunkID(pointChunkID); err == nil {
			cp.Point.Ref = chunk.RecordRef{ChunkID: id, Pos: uint64(pointPos)}
		}
	}
	if doneAccumulatingChunkID != "" {
		if id, err := chunk.ParseChunkID(doneAccumulatingChunkID); err == nil {
			cp.DoneAccumulating = chunk.RecordRef{ChunkID: id, Pos: uint64(doneAccumulatingPos)}
		}
	}
	if doneChunkID != "" {
		if id, err := chunk.ParseChunkID(doneChunkID); err == nil {
			cp.DoneChunk = id
		}
	}

	return cp, nil
}

// SaveCheckpoint implements scavenge.ScavengeState.
func (s *Store) SaveCheckpoint(cp scavenge.Checkpoint) error {
	var pointChunkID string
	if cp.Point.Ref.ChunkID != (chunk.ChunkID{}) {
		pointChunkID = cp.Point.Ref.ChunkID.String()
	}
	var doneAccChunkID string
	if cp.DoneAccumulating.ChunkID != (chunk.ChunkID{}) {
		doneAccChunkID = cp.DoneAccumulating.ChunkID.String()
	}
	var doneChunkID string
	if cp.DoneChunk != (chunk.ChunkID{}) {
		doneChunkID = cp.DoneChunk.String()
	}

	_, err := s.db.Exec(`
		INSERT INTO checkpoint (id, phase, point_event_number, point_threshold, point_timestamp, point_chunk_id, point_pos,
		                        done_accumulating_chunk_id, done_accumulating_pos, done_stream_hash, done_chunk_id)
		VALUES (0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		  phase = excluded.phase,
		  point_event_number = excluded.point_event_number,
		  point_threshold = excluded.point_threshold,
		  point_timestamp = excluded.point_timestamp,
		  point_chunk_id = excluded.point_chunk_id,
		  point_pos = excluded.point_pos,
		  done_accumulating_chunk_id = excluded.done_accumulating_chunk_id,
		  done_accumulating_pos = excluded.done_accumulating_pos,
		  done_stream_hash = excluded.done_stream_hash,
		  done_chunk_id = excluded.done_chunk_id`,
		int(cp.Phase), int64(cp.Point.EventNumber), cp.Point.Threshold, cp.Point.Timestamp.Format(timeFormat), pointChunkID, int64(cp.Point.Ref.Pos),
		doneAccChunkID, int64(cp.DoneAccumulating.Pos), int64(cp.DoneStreamHash), doneChunkID,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// BeginTransaction implements scavenge.ScavengeState.
func (s *Store) BeginTransaction() (scavenge.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &txn{tx: tx}, nil
}

type txn struct {
	tx *sql.Tx
}

func (t *txn) Commit() error   { return t.tx.Commit() }
func (t *txn) Rollback() error { return t.tx.Rollback() }

func discardPointToRow(d scavenge.DiscardPoint) (kind int, eventNumber int64) {
	switch {
	case d.Compare(scavenge.KeepAll()) == 0:
		return 0, 0
	default:
		// Both DiscardBefore and DiscardIncluding collapse to the same
		// persisted shape: the first event number to keep. Re-hydrated as
		// DiscardBeforeEvent, which is semantically identical for every
		// consumer (only FirstEventToKeep is ever observed again).
		return 1, int64(d.FirstEventToKeep())
	}
}

func discardPointFromRow(kind int, eventNumber int64) scavenge.DiscardPoint {
	if kind == 0 {
		return scavenge.KeepAll()
	}
	return scavenge.DiscardBeforeEvent(uint64(eventNumber))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
