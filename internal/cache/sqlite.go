package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	image_url  TEXT PRIMARY KEY,
	response   TEXT NOT NULL,
	updated_at DATETIME NOT NULL
)`

// SQLiteStore keeps cache entries in a single SQLite table
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens or creates the cache database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, imageURL string) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		"SELECT response FROM analysis_cache WHERE image_url = ?", imageURL,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query analysis cache: %w", err)
	}
	return text, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, imageURL, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (image_url, response, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(image_url) DO UPDATE SET response = excluded.response, updated_at = excluded.updated_at`,
		imageURL, text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, imageURL string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM analysis_cache WHERE image_url = ?", imageURL); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT image_url FROM analysis_cache ORDER BY image_url")
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis cache: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
