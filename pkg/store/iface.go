// iface.go defines the StoreInterface for dependency injection and testing.
//
// The concrete *Store type satisfies this interface. The coordinator only
// needs the write side and accepts its own narrower interface; the CLI's
// journal command uses the read side.
package store

import (
	"time"

	"github.com/daviddao/gamemaster/pkg/model"
)

// StoreInterface defines the full set of store operations.
// The concrete *Store type implements this interface.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// --- Sessions ---

	// StartSession records a new session.
	StartSession(sess *model.Session) error

	// GetSession retrieves a session by ID.
	GetSession(id string) (*model.Session, error)

	// LatestSession returns the most recently started session.
	LatestSession() (*model.Session, error)

	// ListSessions returns sessions, newest first.
	ListSessions(limit int) ([]model.Session, error)

	// --- Participants ---

	// AddParticipant records an accepted connection.
	AddParticipant(p *model.Participant) error

	// MarkParticipantLeft records when and why a participant was dropped.
	MarkParticipantLeft(sessionID string, seq int, reason string, at time.Time) error

	// ListParticipants returns a session's roster in connection order.
	ListParticipants(sessionID string) ([]model.Participant, error)

	// --- Events ---

	// InsertEvent appends a broadcast to the log. Returns the row ID.
	InsertEvent(e *model.Event) (int64, error)

	// ListEvents returns a session's broadcasts after row ID sinceID.
	ListEvents(sessionID string, sinceID int64, limit int) ([]model.Event, error)

	// MaxLamport returns the highest journaled Lamport timestamp.
	MaxLamport() (int64, error)
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)
