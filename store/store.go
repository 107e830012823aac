// Package store persists append-only records in SQLite. Resolution
// outcomes, cache tombstone audits, and data source registrations all land
// in one records table, discriminated by category. Nothing here updates or
// deletes: history is the point.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/concord/errors"
)

// Record categories written by the resolution pipeline.
const (
	CategoryResolution = "resolution"
	CategoryTombstone  = "cache_tombstone"
	CategoryDataSource = "data_source"
)

// Store is the append-only record store.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New creates a record store over an opened database.
func New(db *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger}
}

// Record is one persisted row. Payload is the stored JSON, decoded by the
// caller via Decode.
type Record struct {
	ID        int64           `json:"id"`
	Category  string          `json:"category"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the record payload into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return errors.Wrapf(err, "decode %s record %d", r.Category, r.ID)
	}
	return nil
}

// Append serializes record as JSON and inserts it under category.
// Returns the new row id.
func (s *Store) Append(category string, record any) (int64, error) {
	if category == "" {
		return 0, errors.Wrap(errors.ErrInvalidRequest, "record category is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return 0, errors.Wrapf(err, "marshal %s record", category)
	}

	result, err := s.db.Exec(`
		INSERT INTO records (category, payload, created_at)
		VALUES (?, ?, ?)
	`, category, string(payload), time.Now().UTC())
	if err != nil {
		err = errors.Wrapf(err, "append %s record", category)
		err = errors.WithDetail(err, fmt.Sprintf("Payload bytes: %d", len(payload)))
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "read inserted record id")
	}

	s.logger.Debugw("Appended record", "category", category, "record_id", id)
	return id, nil
}

// QueryByCategory returns records of one category, newest first.
// limit <= 0 means no limit.
func (s *Store) QueryByCategory(category string, limit int) ([]Record, error) {
	query := `
		SELECT id, category, payload, created_at
		FROM records
		WHERE category = ?
		ORDER BY id DESC`
	args := []any{category}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		err = errors.Wrapf(err, "query %s records", category)
		err = errors.WithDetail(err, fmt.Sprintf("Limit: %d", limit))
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Category, &payload, &rec.CreatedAt); err != nil {
			return nil, errors.Wrapf(err, "scan %s record", category)
		}
		rec.Payload = json.RawMessage(payload)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountByCategory returns the number of records stored under category.
func (s *Store) CountByCategory(category string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE category = ?`, category).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s records", category)
	}
	return count, nil
}
