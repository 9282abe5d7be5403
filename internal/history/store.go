/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package history persists answered and failed questions in a local
// SQLite database.
package history

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// Entry is one recorded question
type Entry struct {
	ID          string    `json:"id"`
	Database    string    `json:"database"`
	Question    string    `json:"question"`
	Fingerprint string    `json:"fingerprint"`
	Intent      string    `json:"intent,omitempty"`
	SQL         string    `json:"sql,omitempty"`
	RowCount    int       `json:"row_count"`
	DurationMS  int64     `json:"duration_ms"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Succeeded reports whether the question was answered
func (e *Entry) Succeeded() bool {
	return e.ErrorKind == ""
}

// Frequent is a group of questions sharing a fingerprint
type Frequent struct {
	Fingerprint string    `json:"fingerprint"`
	Question    string    `json:"question"`
	Count       int       `json:"count"`
	LastAsked   time.Time `json:"last_asked"`
}

// Store manages history persistence using SQLite
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewStore opens or creates the history database at path. A leading ~
// is expanded to the home directory.
func NewStore(path string) (*Store, error) {
	dbPath, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL lets readers run while a query is being recorded
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return store, nil
}

func expandHome(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("history path is empty")
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS query_history (
        id TEXT PRIMARY KEY,
        database_id TEXT NOT NULL,
        question TEXT NOT NULL,
        fingerprint TEXT NOT NULL,
        intent TEXT DEFAULT '',
        sql_text TEXT DEFAULT '',
        row_count INTEGER NOT NULL DEFAULT 0,
        duration_ms INTEGER NOT NULL DEFAULT 0,
        error_kind TEXT DEFAULT '',
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_query_history_created_at
        ON query_history(created_at DESC);

    CREATE INDEX IF NOT EXISTS idx_query_history_fingerprint
        ON query_history(fingerprint);
    `

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Fingerprint identifies a question independent of case, spacing and
// trailing punctuation
func Fingerprint(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	normalized = strings.TrimRightFunc(normalized, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	sum := blake2b.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Record appends an entry. The fingerprint and creation time are filled
// in when empty.
func (s *Store) Record(e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("history entry has no id")
	}
	if e.Fingerprint == "" {
		e.Fingerprint = Fingerprint(e.Question)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO query_history (id, database_id, question, fingerprint, intent, sql_text, row_count, duration_ms, error_kind, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Database, e.Question, e.Fingerprint, e.Intent, e.SQL,
		e.RowCount, e.DurationMS, e.ErrorKind, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Recent lists the newest entries first. An empty database matches all
// databases; limit is clamped to 1..100 with 50 as the default.
func (s *Store) Recent(limit int, database string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, database_id, question, fingerprint, intent, sql_text, row_count, duration_ms, error_kind, created_at
         FROM query_history
         WHERE ? = '' OR database_id = ?
         ORDER BY created_at DESC, rowid DESC
         LIMIT ?`,
		database, database, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Database, &e.Question, &e.Fingerprint, &e.Intent, &e.SQL,
			&e.RowCount, &e.DurationMS, &e.ErrorKind, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

// Frequent groups entries by fingerprint, most asked first. The latest
// wording of each question is reported.
func (s *Store) Frequent(limit int) ([]Frequent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT h.fingerprint, h.question, g.n, g.last
         FROM (
             SELECT fingerprint, COUNT(*) AS n, MAX(rowid) AS last_row, MAX(created_at) AS last
             FROM query_history
             GROUP BY fingerprint
         ) g
         JOIN query_history h ON h.rowid = g.last_row
         ORDER BY g.n DESC, g.last_row DESC
         LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequent questions: %w", err)
	}
	defer rows.Close()

	var out []Frequent
	for rows.Next() {
		var f Frequent
		var last interface{}
		if err := rows.Scan(&f.Fingerprint, &f.Question, &f.Count, &last); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f.LastAsked = parseTime(last)
		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// parseTime reads an aggregated timestamp, which loses its column type
// and usually comes back as text
func parseTime(v interface{}) time.Time {
	var s string
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		return time.Time{}
	}
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Clear deletes every entry and returns how many were removed
func (s *Store) Clear() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM query_history")
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return result.RowsAffected()
}
