// Package store implements the durable record store shared by the loader and
// the check-in processor: hash-like records addressed by key and field,
// single-scalar positions, and opaque blobs, all in the application's sqlite
// database. Mutations can be submitted one at a time or as a batch that runs
// inside a single transaction with per-operation results.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const recordSchema = `
CREATE TABLE IF NOT EXISTS records_v1 (
	key TEXT NOT NULL,
	field TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (key, field)
);

CREATE TABLE IF NOT EXISTS positions_v1 (
	name TEXT PRIMARY KEY NOT NULL,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blobs_v1 (
	name TEXT PRIMARY KEY NOT NULL,
	data BLOB NOT NULL
);
`

const setFieldSql = `
INSERT INTO records_v1 (key, field, value)
VALUES ($1, $2, $3)
ON CONFLICT (key, field)
DO UPDATE SET value = excluded.value;
`

const incrFieldSql = `
INSERT INTO records_v1 (key, field, value)
VALUES ($1, $2, $3)
ON CONFLICT (key, field)
DO UPDATE SET value = CAST(value AS INTEGER) + $3
RETURNING CAST(value AS INTEGER);
`

const getFieldSql = `
SELECT value FROM records_v1 WHERE key = $1 AND field = $2;
`

const getAllFieldsSql = `
SELECT field, value FROM records_v1 WHERE key = $1;
`

const putBlobSql = `
INSERT INTO blobs_v1 (name, data)
VALUES ($1, $2)
ON CONFLICT (name)
DO UPDATE SET data = excluded.data;
`

// RecordStore is a hash-like record store. Records are created implicitly on
// first write and fields hold untyped string values; counters are stored as
// their decimal representation and incremented atomically.
type RecordStore struct {
	db *sqlx.DB
}

// Open initializes the store schema and returns a handle on it.
func Open(db *sqlx.DB) (*RecordStore, error) {
	if _, err := db.Exec(recordSchema); err != nil {
		return nil, fmt.Errorf("failed to create record store tables: %w", err)
	}
	return &RecordStore{db: db}, nil
}

// Get returns the value of a single field, reporting whether it exists.
func (s *RecordStore) Get(ctx context.Context, key, field string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, getFieldSql, key, field)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s/%s: %w", key, field, err)
	}
	return value, true, nil
}

// GetAll returns every field of a record. A missing record yields an empty
// map.
func (s *RecordStore) GetAll(ctx context.Context, key string) (map[string]string, error) {
	var rows []struct {
		Field string `db:"field"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, getAllFieldsSql, key); err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	fields := make(map[string]string, len(rows))
	for _, row := range rows {
		fields[row.Field] = row.Value
	}
	return fields, nil
}

// Set upserts a single field.
func (s *RecordStore) Set(ctx context.Context, key, field, value string) error {
	if _, err := s.db.ExecContext(ctx, setFieldSql, key, field, value); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", key, field, err)
	}
	return nil
}

// SetAll upserts every field in the map onto one record.
func (s *RecordStore) SetAll(ctx context.Context, key string, fields map[string]string) error {
	batch := NewBatch()
	for field, value := range fields {
		batch.Set(key, field, value)
	}
	return s.Apply(ctx, batch)
}

// IncrBy atomically adds delta to a counter field and returns the
// post-increment value. A missing field counts from zero.
func (s *RecordStore) IncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var value int64
	if err := s.db.GetContext(ctx, &value, incrFieldSql, key, field, delta); err != nil {
		return 0, fmt.Errorf("failed to increment %s/%s: %w", key, field, err)
	}
	return value, nil
}

// PutBlob stores an opaque binary value under a name, replacing any previous
// value.
func (s *RecordStore) PutBlob(ctx context.Context, name string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, putBlobSql, name, data); err != nil {
		return fmt.Errorf("failed to put blob %s: %w", name, err)
	}
	return nil
}

// GetBlob returns a stored binary value, reporting whether it exists.
func (s *RecordStore) GetBlob(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, "SELECT data FROM blobs_v1 WHERE name = $1", name)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get blob %s: %w", name, err)
	}
	return data, true, nil
}

// DB exposes the underlying connection for components that maintain their own
// tables in the same database, such as the search index.
func (s *RecordStore) DB() *sqlx.DB {
	return s.db
}
