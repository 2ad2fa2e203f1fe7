package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore implements Store on the variables table (see migrations).
// Writes upsert; reads are indexed by the (namespace, key) primary key.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the value for key in namespace ns.
func (s *SQLiteStore) Get(ctx context.Context, ns, key string) (string, error) {
	const query = `SELECT value FROM variables WHERE namespace = ? AND key = ?`

	var value string
	err := s.db.QueryRowContext(ctx, query, ns, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: reading %s/%s: %w", ns, key, err)
	}
	return value, nil
}

// Set writes the value for key in namespace ns.
func (s *SQLiteStore) Set(ctx context.Context, ns, key, value string) error {
	const query = `INSERT INTO variables (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, query, ns, key, value, now); err != nil {
		return fmt.Errorf("store: writing %s/%s: %w", ns, key, err)
	}
	return nil
}

// Flush removes every key in namespace ns.
func (s *SQLiteStore) Flush(ctx context.Context, ns string) error {
	const query = `DELETE FROM variables WHERE namespace = ?`

	if _, err := s.db.ExecContext(ctx, query, ns); err != nil {
		return fmt.Errorf("store: flushing %s: %w", ns, err)
	}
	return nil
}

// Keys lists the keys present in namespace ns.
func (s *SQLiteStore) Keys(ctx context.Context, ns string) ([]string, error) {
	const query = `SELECT key FROM variables WHERE namespace = ? ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, ns)
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", ns, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating %s: %w", ns, err)
	}
	return keys, nil
}
