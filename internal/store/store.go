// Package store provides a SQLite-backed feedback store. Users rate answers
// (thumbs-up or thumbs-down, with an optional comment); entries persist
// across restarts so answer quality can be reviewed over time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Rating values. Stored as integers to match the API contract.
const (
	// RatingDown is a thumbs-down.
	RatingDown = 0
	// RatingUp is a thumbs-up.
	RatingUp = 1
)

// Feedback is one user rating of an answer.
type Feedback struct {
	// Query is the question the answer responded to.
	Query string `json:"query"`
	// Answer is the answer text being rated.
	Answer string `json:"answer"`
	// Rating is RatingUp or RatingDown; nil when only a comment was left.
	Rating *int `json:"rating,omitempty"`
	// Comment is optional free-text feedback.
	Comment string `json:"comment,omitempty"`
	// CreatedAt is when the feedback was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackStore persists and retrieves answer feedback. Implementations
// must be safe for concurrent use.
type FeedbackStore interface {
	// Append persists one feedback entry.
	Append(ctx context.Context, fb Feedback) error
	// Recent returns the most recent n entries, newest-first.
	Recent(ctx context.Context, n int) ([]Feedback, error)
	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a FeedbackStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the feedback database.
// It resolves to ~/.polai/feedback.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".polai")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "feedback.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS feedback (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    query        TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    rating       INTEGER CHECK(rating IN (0, 1)),
    comment      TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_feedback_created
    ON feedback (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists one feedback entry.
func (s *SQLiteStore) Append(ctx context.Context, fb Feedback) error {
	const q = `INSERT INTO feedback (query, answer, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`
	var rating any
	if fb.Rating != nil {
		rating = *fb.Rating
	}
	if _, err := s.db.ExecContext(ctx, q, fb.Query, fb.Answer, rating, fb.Comment, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Feedback, error) {
	const q = `
SELECT query, answer, rating, comment, created_at
FROM   feedback
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		var rating sql.NullInt64
		var ts int64
		if err := rows.Scan(&fb.Query, &fb.Answer, &rating, &fb.Comment, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if rating.Valid {
			v := int(rating.Int64)
			fb.Rating = &v
		}
		fb.CreatedAt = time.Unix(ts, 0)
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return out, nil
}

// Count returns the total number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
