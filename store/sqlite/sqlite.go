// Package sqlite provides a persistent Store backed by SQLite. This is the
// backend of choice for single-node deployments that must survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	st "github.com/phyarch/shellcache/store"
)

type Store struct {
	db *sql.DB
}

var _ st.Store = (*Store)(nil)

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	generation TEXT NOT NULL,
	path TEXT NOT NULL,
	payload BLOB NOT NULL,
	stored_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (generation, path)
);
`

// New opens (and migrates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(createEntriesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, generation, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM cache_entries WHERE generation = ? AND path = ?`,
		generation, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return payload, true, nil
}

func (s *Store) Put(ctx context.Context, generation, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (generation, path, payload, stored_at)
		 VALUES (?, ?, ?, ?)`,
		generation, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, generation, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE generation = ? AND path = ?`,
		generation, key,
	)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (s *Store) Generations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT generation FROM cache_entries ORDER BY generation`)
	if err != nil {
		return nil, fmt.Errorf("cache generations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("cache generations: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) Drop(ctx context.Context, generation string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE generation = ?`, generation)
	if err != nil {
		return fmt.Errorf("cache drop: %w", err)
	}
	return nil
}

func (s *Store) Close(context.Context) error { return s.db.Close() }
