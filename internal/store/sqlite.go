package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one download request outcome. Rows are terminal: written
// once after the request finishes, never updated.
type Record struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"` // video|audio|thumbnail
	URL       string    `json:"url"`
	Quality   string    `json:"quality"` // format_id as requested
	Title     string    `json:"title"`
	Status    string    `json:"status"` // ok|error
	Bytes     int64     `json:"bytes"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps an sql.DB and provides typed helpers for request history.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path and ensures schema.
func Open(path string) (*Store, error) {
	// Pragmas: busy timeout and WAL for better concurrency.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Conservative limits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY,
    kind TEXT NOT NULL,
    url TEXT NOT NULL,
    quality TEXT,
    title TEXT,
    status TEXT,
    bytes INTEGER,
    elapsed_ms INTEGER,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_kind ON history(kind);
CREATE INDEX IF NOT EXISTS idx_history_status ON history(status);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

// Add inserts a finished request record and returns its ID.
func (s *Store) Add(ctx context.Context, r Record) (int64, error) {
	if r.URL == "" {
		return 0, ErrEmptyURL
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO history (kind, url, quality, title, status, bytes, elapsed_ms, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Kind, r.URL, r.Quality, r.Title, normalizeStatus(r.Status), r.Bytes, r.ElapsedMS, r.Error)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get insert id: %w", err)
	}
	return id, nil
}

// ListFilter narrows and bounds a history listing.
type ListFilter struct {
	Kind   string // optional: video|audio|thumbnail
	Status string // optional: ok|error
	Limit  int
	Offset int
}

// List returns history records, newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Record, error) {
	var args []any
	var where []string
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, strings.ToLower(f.Kind))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, normalizeStatus(f.Status))
	}
	sb := strings.Builder{}
	sb.WriteString("SELECT id, kind, url, quality, title, status, bytes, elapsed_ms, error_message, created_at FROM history")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, limit)
	if f.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		var title, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &r.URL, &r.Quality, &title, &r.Status, &r.Bytes, &r.ElapsedMS, &errMsg, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Title = title.String
		r.Error = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatus returns the number of records with the given status.
func (s *Store) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE status = ?`, normalizeStatus(status)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "ok", "success":
		return "ok"
	case "error", "failed":
		return "error"
	default:
		return "ok"
	}
}
