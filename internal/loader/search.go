package loader

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const searchSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS location_search_v1
USING fts4(location_id, name, category);
`

const insertSearchSql = `
INSERT INTO location_search_v1 (location_id, name, category)
VALUES ($1, $2, $3);
`

const deleteSearchSql = `
DELETE FROM location_search_v1 WHERE location_id = $1;
`

const querySearchSql = `
SELECT location_id FROM location_search_v1
WHERE location_search_v1 MATCH $1;
`

// SearchIndex is the full-text index over location names and categories,
// rebuilt by the bulk loader.
type SearchIndex struct {
	db *sqlx.DB
}

// OpenSearchIndex creates the index table if needed.
func OpenSearchIndex(db *sqlx.DB) (*SearchIndex, error) {
	if _, err := db.Exec(searchSchema); err != nil {
		return nil, fmt.Errorf("failed to create location search index: %w", err)
	}
	return &SearchIndex{db: db}, nil
}

// Add indexes one location, replacing any previous entry for the same id.
func (s *SearchIndex) Add(ctx context.Context, id, name, category string) error {
	if _, err := s.db.ExecContext(ctx, deleteSearchSql, id); err != nil {
		return fmt.Errorf("failed to reindex location %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, insertSearchSql, id, name, category); err != nil {
		return fmt.Errorf("failed to index location %s: %w", id, err)
	}
	return nil
}

// Search returns the ids of locations matching a full-text query over name
// and category.
func (s *SearchIndex) Search(ctx context.Context, query string) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, querySearchSql, query); err != nil {
		return nil, fmt.Errorf("failed to search locations for %q: %w", query, err)
	}
	return ids, nil
}
