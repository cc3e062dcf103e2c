package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const setPositionSql = `
INSERT INTO positions_v1 (name, value)
VALUES ($1, $2)
ON CONFLICT (name)
DO UPDATE SET value = excluded.value;
`

const getPositionSql = `
SELECT value FROM positions_v1 WHERE name = $1;
`

// PositionStore holds named single-scalar positions, one row each. The
// check-in processor keeps its cursor here; the schema is created by
// store.Open alongside the record tables.
type PositionStore struct {
	db *sqlx.DB
}

func NewPositionStore(db *sqlx.DB) *PositionStore {
	return &PositionStore{db: db}
}

// Get returns the stored position, reporting whether one has ever been
// written.
func (s *PositionStore) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, getPositionSql, name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get position %s: %w", name, err)
	}
	return value, true, nil
}

// Set durably writes the position.
func (s *PositionStore) Set(ctx context.Context, name, value string) error {
	if _, err := s.db.ExecContext(ctx, setPositionSql, name, value); err != nil {
		return fmt.Errorf("failed to set position %s: %w", name, err)
	}
	return nil
}
