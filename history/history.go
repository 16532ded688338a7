// Package history persists finished VPN sessions in a local SQLite
// database so past connections can be reviewed.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bastiaanwilliams/OCL/common"
)

// Outcome classifies how a session ended.
type Outcome string

const (
	// OutcomeDisconnected marks a session the user ended.
	OutcomeDisconnected Outcome = "disconnected"
	// OutcomeAuthFailed marks a session the server rejected.
	OutcomeAuthFailed Outcome = "auth_failed"
	// OutcomeFailed marks a session that died for any other reason.
	OutcomeFailed Outcome = "failed"
)

// OutcomeFor classifies a session's failure reason. A nil reason means
// the user disconnected.
func OutcomeFor(reason error) Outcome {
	switch {
	case reason == nil:
		return OutcomeDisconnected
	case errors.Is(reason, common.ErrAuthFailed):
		return OutcomeAuthFailed
	default:
		return OutcomeFailed
	}
}

// Record is one finished session.
type Record struct {
	ID         string
	Profile    string
	ConfigPath string
	Username   string
	StartedAt  time.Time
	EndedAt    time.Time
	Outcome    Outcome
	Address    string
	SentBytes  uint64
	RecvBytes  uint64
}

// Duration returns how long the session lasted.
func (r *Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	profile     TEXT NOT NULL DEFAULT '',
	config_path TEXT NOT NULL,
	username    TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	sent_bytes  INTEGER NOT NULL DEFAULT 0,
	recv_bytes  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions (started_at DESC);
`

// Store is the session history database.
type Store struct {
	conn *sql.DB
}

// Open opens the history database in the user's data directory,
// creating it when absent.
func Open() (*Store, error) {
	dataDir, err := common.GetDataDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(filepath.Join(dataDir, common.HistoryFileName))
}

// OpenAt opens the history database at path, creating it when absent.
func OpenAt(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		common.LogDebug("History database WAL mode unavailable: %v", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Add inserts a finished session. A blank ID is assigned; zero
// timestamps default to now.
func (s *Store) Add(rec Record) error {
	if s == nil || s.conn == nil {
		return fmt.Errorf("history store is not open")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeDisconnected
	}

	_, err := s.conn.Exec(
		`INSERT INTO sessions (id, profile, config_path, username, started_at, ended_at, outcome, address, sent_bytes, recv_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Profile,
		rec.ConfigPath,
		rec.Username,
		rec.StartedAt.Unix(),
		rec.EndedAt.Unix(),
		string(rec.Outcome),
		rec.Address,
		rec.SentBytes,
		rec.RecvBytes,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Recent returns the newest sessions first. A non-positive limit
// returns up to 50.
func (s *Store) Recent(limit int) ([]Record, error) {
	if s == nil || s.conn == nil {
		return nil, fmt.Errorf("history store is not open")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(
		`SELECT id, profile, config_path, username, started_at, ended_at, outcome, address, sent_bytes, recv_bytes
		   FROM sessions
		  ORDER BY started_at DESC, id DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			startedAt int64
			endedAt   int64
			outcome   string
		)
		if err := rows.Scan(&rec.ID, &rec.Profile, &rec.ConfigPath, &rec.Username,
			&startedAt, &endedAt, &outcome, &rec.Address, &rec.SentBytes, &rec.RecvBytes); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = time.Unix(startedAt, 0)
		rec.EndedAt = time.Unix(endedAt, 0)
		rec.Outcome = Outcome(outcome)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Purge deletes all recorded sessions and returns how many were
// removed.
func (s *Store) Purge() (int64, error) {
	if s == nil || s.conn == nil {
		return 0, fmt.Errorf("history store is not open")
	}

	res, err := s.conn.Exec(`DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
