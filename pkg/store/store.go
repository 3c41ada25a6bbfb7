// Package store manages the game master's SQLite session journal.
//
// The journal records who connected to each session and every START/STOP
// broadcast with its Lamport timestamp. Round results are not
// stored; the text report is the only record of outcomes. At startup the
// coordinator seeds its Lamport clock from MaxLamport so logical time keeps
// increasing across restarts that share a journal.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/gamemaster/pkg/model"

	_ "modernc.org/sqlite"
)

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp from retry.go with the default config.
// All store write operations should use this to handle transient SQLite
// errors (BUSY, LOCKED, IOERR_SHORT_READ) under concurrent access.
func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		variant       TEXT NOT NULL,
		participants  INTEGER NOT NULL,
		round_seconds INTEGER NOT NULL,
		listen        TEXT NOT NULL,
		started_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS participants (
		session_id   TEXT NOT NULL REFERENCES sessions(id),
		seq          INTEGER NOT NULL,
		remote_addr  TEXT NOT NULL,
		connected_at TEXT NOT NULL,
		left_at      TEXT,
		reason       TEXT,
		PRIMARY KEY (session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		lamport_ts INTEGER NOT NULL,
		round      INTEGER NOT NULL,
		kind       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_events_lamport ON events(lamport_ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// StartSession records a new session.
func (s *Store) StartSession(sess *model.Session) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO sessions (id, variant, participants, round_seconds, listen, started_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, string(sess.Variant), sess.Participants, sess.RoundSeconds, sess.Listen,
			sess.StartedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// LatestSession returns the most recently started session, or
// sql.ErrNoRows if the journal is empty.
func (s *Store) LatestSession() (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, variant, participants, round_seconds, listen, started_at
		 FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	)
	return scanSession(row)
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, variant, participants, round_seconds, listen, started_at
		 FROM sessions WHERE id = ?`, id,
	)
	return scanSession(row)
}

// ListSessions returns sessions, newest first.
func (s *Store) ListSessions(limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, variant, participants, round_seconds, listen, started_at
		 FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var sess model.Session
	var variant, startedStr string
	if err := row.Scan(&sess.ID, &variant, &sess.Participants, &sess.RoundSeconds,
		&sess.Listen, &startedStr); err != nil {
		return nil, err
	}
	sess.Variant = model.Variant(variant)
	var parseErr error
	sess.StartedAt, parseErr = time.Parse(time.RFC3339Nano, startedStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse started_at for session %s: %w", sess.ID, parseErr)
	}
	return &sess, nil
}

// ---------------------------------------------------------------------------
// Participants
// ---------------------------------------------------------------------------

// AddParticipant records an accepted connection.
func (s *Store) AddParticipant(p *model.Participant) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO participants (session_id, seq, remote_addr, connected_at)
			 VALUES (?, ?, ?, ?)`,
			p.SessionID, p.Seq, p.RemoteAddr, p.ConnectedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// MarkParticipantLeft records when and why a participant was dropped.
// Only the first call per participant takes effect.
func (s *Store) MarkParticipantLeft(sessionID string, seq int, reason string, at time.Time) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`UPDATE participants SET left_at = ?, reason = ?
			 WHERE session_id = ? AND seq = ? AND left_at IS NULL`,
			at.UTC().Format(time.RFC3339Nano), reason, sessionID, seq,
		)
		return err
	})
}

// ListParticipants returns a session's roster in connection order.
func (s *Store) ListParticipants(sessionID string) ([]model.Participant, error) {
	rows, err := s.db.Query(
		`SELECT session_id, seq, remote_addr, connected_at, COALESCE(left_at,''), COALESCE(reason,'')
		 FROM participants WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		var connStr, leftStr string
		if err := rows.Scan(&p.SessionID, &p.Seq, &p.RemoteAddr, &connStr, &leftStr, &p.Reason); err != nil {
			return nil, err
		}
		var parseErr error
		p.ConnectedAt, parseErr = time.Parse(time.RFC3339Nano, connStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse connected_at for participant %d: %w", p.Seq, parseErr)
		}
		if leftStr != "" {
			left, parseErr := time.Parse(time.RFC3339Nano, leftStr)
			if parseErr != nil {
				return nil, fmt.Errorf("parse left_at for participant %d: %w", p.Seq, parseErr)
			}
			p.LeftAt = &left
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// InsertEvent appends a broadcast to the log. Returns the auto-generated row ID.
func (s *Store) InsertEvent(e *model.Event) (int64, error) {
	var lastID int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(
			`INSERT INTO events (session_id, lamport_ts, round, kind, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			e.SessionID, e.LamportTS, e.Round, string(e.Kind),
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		lastID, err = res.LastInsertId()
		return err
	})
	return lastID, err
}

// ListEvents returns a session's broadcasts in log order, starting after
// row ID sinceID.
func (s *Store) ListEvents(sessionID string, sinceID int64, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, lamport_ts, round, kind, created_at
		 FROM events WHERE session_id = ? AND id > ?
		 ORDER BY id ASC LIMIT ?`,
		sessionID, sinceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var kindStr, createdStr string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.LamportTS, &e.Round, &kindStr, &createdStr); err != nil {
			return nil, err
		}
		e.Kind = model.EventKind(kindStr)
		var parseErr error
		e.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, createdStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse created_at time for event %d: %w", e.ID, parseErr)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MaxLamport returns the highest Lamport timestamp ever journaled, or 0 if
// the log is empty.
func (s *Store) MaxLamport() (int64, error) {
	var ts int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(lamport_ts), 0) FROM events`).Scan(&ts)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return ts, nil
}
