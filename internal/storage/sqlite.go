// Package storage provides the SQLite ledger of host runs and observer sessions.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/cloudsync/internal/replication"
)

// Store manages the SQLite database connection for the session ledger.
type Store struct {
	db *sql.DB
}

// Run is one host run.
type Run struct {
	RunID      string
	StartedAt  time.Time
	Seed       int64
	ConfigYAML string
}

// Session is one observer connection of a run.
type Session struct {
	ID           int64
	RunID        string
	ConnID       string
	JoinedAt     time.Time
	LastFullSync time.Time // Zero if the snapshot never went out
	LeftAt       time.Time
	Sent         uint64
	Dropped      uint64
}

// Duration is how long the observer stayed connected.
func (s Session) Duration() time.Duration {
	if s.LeftAt.IsZero() {
		return 0
	}
	return s.LeftAt.Sub(s.JoinedAt)
}

// RunStats contains aggregated session statistics for a run.
type RunStats struct {
	RunID    string
	Sessions int
	Sent     uint64
	Dropped  uint64
	LastLeft time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// Session saves arrive from concurrent goroutines; sqlite has one writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL DEFAULT 0,
			config_yaml TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS observer_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			conn_id TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			last_full_sync_at TEXT,
			left_at TEXT NOT NULL,
			messages_sent INTEGER NOT NULL DEFAULT 0,
			messages_dropped INTEGER NOT NULL DEFAULT 0,
			UNIQUE(run_id, conn_id)
		);
		CREATE INDEX IF NOT EXISTS idx_observer_sessions_run ON observer_sessions(run_id);
		CREATE INDEX IF NOT EXISTS idx_observer_sessions_left ON observer_sessions(left_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateRun records the start of a host run.
func (s *Store) CreateRun(run Run) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (run_id, started_at, seed, config_yaml) VALUES (?, ?, ?, ?)",
		run.RunID, formatTime(run.StartedAt), run.Seed, run.ConfigYAML,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save run: %w", err)
	}
	return nil
}

// RunByID retrieves a run. Returns nil if it does not exist.
func (s *Store) RunByID(runID string) (*Run, error) {
	var run Run
	var startedAt string
	err := s.db.QueryRow(
		"SELECT run_id, started_at, seed, config_yaml FROM runs WHERE run_id = ?",
		runID,
	).Scan(&run.RunID, &startedAt, &run.Seed, &run.ConfigYAML)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	return &run, nil
}

// RecentRuns retrieves the most recently started runs.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT run_id, started_at, seed, config_yaml
		 FROM runs
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt string
		if err := rows.Scan(&run.RunID, &startedAt, &run.Seed, &run.ConfigYAML); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		run.StartedAt = parseTime(startedAt)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return runs, nil
}

// SaveSession records a finished observer session.
// A repeated save of the same connection overwrites the earlier row.
func (s *Store) SaveSession(rec replication.SessionRecord) error {
	var lastSync sql.NullString
	if !rec.LastFullSync.IsZero() {
		lastSync = sql.NullString{String: formatTime(rec.LastFullSync), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO observer_sessions
		 (run_id, conn_id, joined_at, last_full_sync_at, left_at, messages_sent, messages_dropped)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, conn_id) DO UPDATE SET
		   last_full_sync_at = excluded.last_full_sync_at,
		   left_at = excluded.left_at,
		   messages_sent = excluded.messages_sent,
		   messages_dropped = excluded.messages_dropped`,
		rec.RunID,
		rec.ConnID,
		formatTime(rec.JoinedAt),
		lastSync,
		formatTime(rec.LeftAt),
		int64(rec.Sent),
		int64(rec.Dropped),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save session: %w", err)
	}
	return nil
}

// Ensure Store implements SessionRecorder
var _ replication.SessionRecorder = (*Store)(nil)

// ListSessions retrieves the most recent sessions, newest first.
// An empty runID lists sessions of every run.
func (s *Store) ListSessions(runID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, run_id, conn_id, joined_at, last_full_sync_at, left_at, messages_sent, messages_dropped
		 FROM observer_sessions`
	args := []any{}
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY left_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var joinedAt, leftAt string
		var lastSync sql.NullString
		var sent, dropped int64
		if err := rows.Scan(
			&sess.ID,
			&sess.RunID,
			&sess.ConnID,
			&joinedAt,
			&lastSync,
			&leftAt,
			&sent,
			&dropped,
		); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		sess.JoinedAt = parseTime(joinedAt)
		sess.LeftAt = parseTime(leftAt)
		if lastSync.Valid {
			sess.LastFullSync = parseTime(lastSync.String)
		}
		sess.Sent = uint64(sent)
		sess.Dropped = uint64(dropped)
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return sessions, nil
}

// GetRunStats retrieves aggregated session statistics for a run.
func (s *Store) GetRunStats(runID string) (*RunStats, error) {
	stats := &RunStats{RunID: runID}
	var sent, dropped int64
	var lastLeft sql.NullString
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(messages_sent), 0), COALESCE(SUM(messages_dropped), 0), MAX(left_at)
		 FROM observer_sessions WHERE run_id = ?`,
		runID,
	).Scan(&stats.Sessions, &sent, &dropped, &lastLeft)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get run stats: %w", err)
	}
	stats.Sent = uint64(sent)
	stats.Dropped = uint64(dropped)
	if lastLeft.Valid {
		stats.LastLeft = parseTime(lastLeft.String)
	}
	return stats, nil
}

// timeLayout is RFC 3339 with a fixed nine-digit fraction, so stored
// timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
		return t
	}
	return time.Time{}
}
