// Package model defines the core domain types for the game master.
//
// A session runs a fixed set of players through repeated rounds. In every
// round the game master broadcasts START, waits, broadcasts STOP and then
// evaluates the throws the players reported in between:
//
//   - Variant A (plain): throws carry wall-clock timestamps only, and every
//     throw received before evaluation counts for the current round.
//
//   - Variant B (causal): broadcasts and throws additionally carry Lamport
//     timestamps. A throw counts for a round only if its Lamport time lies
//     strictly inside the round's window (lc_start, lc_stop).
package model

import (
	"fmt"
	"time"
)

// Variant selects the protocol spoken for the whole session. The string
// value is the token sent in the WELCOME message.
type Variant string

const (
	VariantPlain  Variant = "A"
	VariantCausal Variant = "B"
)

// ParseVariant maps a wire or config token to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantPlain, VariantCausal:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown protocol variant %q (want A or B)", s)
}

// Causal reports whether the variant attaches Lamport timestamps.
func (v Variant) Causal() bool { return v == VariantCausal }

// Timestamp is a wall-clock instant as reported by a player. It carries no
// date and is only used for display.
type Timestamp struct {
	Hours        uint32 `json:"hours"`
	Minutes      uint32 `json:"minutes"`
	Seconds      uint32 `json:"seconds"`
	Microseconds uint32 `json:"microseconds"`
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d:%d:%d.%d", t.Hours, t.Minutes, t.Seconds, t.Microseconds)
}

// Throw is one reported result. It is a tagged variant: Lamport is only
// meaningful when Variant is VariantCausal.
type Throw struct {
	Variant Variant   `json:"variant"`
	Value   uint32    `json:"value"`
	Start   Timestamp `json:"start"`
	End     Timestamp `json:"end"`
	Lamport int64     `json:"lamport,omitempty"`
}

// HasClock reports whether the throw carries a Lamport timestamp.
func (t Throw) HasClock() bool { return t.Variant.Causal() }

// String renders the throw the way it appears in a round report.
func (t Throw) String() string {
	if t.HasClock() {
		return fmt.Sprintf("%d! (START received: %s, reply sent: %s, Lamport time: %d)",
			t.Value, t.Start, t.End, t.Lamport)
	}
	return fmt.Sprintf("%d! (START received: %s, reply sent: %s)", t.Value, t.Start, t.End)
}

// Window is the Lamport interval of one round: the clock values sampled
// for the START and STOP broadcasts.
type Window struct {
	Start int64 `json:"lc_start"`
	Stop  int64 `json:"lc_stop"`
}

// Entry is a player's surviving throw in a round report.
type Entry struct {
	Player string `json:"player"`
	Throw  Throw  `json:"throw"`
}

// Report is the evaluated outcome of one round.
type Report struct {
	Session string    `json:"session,omitempty"`
	Round   int64     `json:"round"`
	Variant Variant   `json:"variant"`
	Started time.Time `json:"started_at"`
	Ended   time.Time `json:"ended_at"`
	// Window is only set for the causal variant.
	Window  *Window `json:"window,omitempty"`
	Entries []Entry `json:"entries"`
	Winner  *Entry  `json:"winner,omitempty"`
	// Dropped counts throws rejected by the window filter.
	Dropped int `json:"dropped"`
}

// EventKind enumerates the broadcasts recorded in the session journal.
type EventKind string

const (
	EventStart EventKind = "start"
	EventStop  EventKind = "stop"
)

// Event is a single broadcast entry in the append-only session journal.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	LamportTS int64     `json:"lamport_ts"`
	Round     int64     `json:"round"`
	Kind      EventKind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Session describes one run of the game master.
type Session struct {
	ID           string    `json:"id"`
	Variant      Variant   `json:"variant"`
	Participants int       `json:"participants"`
	RoundSeconds int64     `json:"round_seconds"`
	Listen       string    `json:"listen"`
	StartedAt    time.Time `json:"started_at"`
}

// Participant is a connection accepted during a session. Players name
// themselves inside each WURF message, so the roster only knows the
// connection order and the remote address.
type Participant struct {
	SessionID   string     `json:"session_id"`
	Seq         int        `json:"seq"`
	RemoteAddr  string     `json:"remote_addr"`
	ConnectedAt time.Time  `json:"connected_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}
