// Package protocol encodes the game master's broadcasts and decodes the
// throws players send back.
//
// Messages are whitespace-separated text without a trailing newline. There
// is no length framing: one transport read is one message.
//
//	server -> player   WELCOME <variant>
//	server -> player   START [<lc>]
//	server -> player   STOP [<lc>]
//	player -> server   WURF <name> <value> [<lc>] <sh> <sm> <ss> <sus> <eh> <em> <es> <eus>
//
// The bracketed <lc> fields are present only in the causal variant.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/daviddao/gamemaster/pkg/clock"
	"github.com/daviddao/gamemaster/pkg/model"
)

// MaxMessageSize is the read buffer size used per message.
const MaxMessageSize = 512

const throwVerb = "WURF"

// Token counts of a WURF message, verb included.
const (
	plainThrowTokens  = 11
	causalThrowTokens = 12
)

var (
	// ErrEmptyMessage is returned for a message that is blank after
	// trimming. Handlers treat it as a protocol violation.
	ErrEmptyMessage = errors.New("empty message")

	// ErrNotThrow is returned for a non-empty message that is not a WURF.
	ErrNotThrow = errors.New("not a throw message")

	// ErrWrongFormat is returned for a WURF with the wrong token count for
	// the active variant. The message is discarded; the sender may retry.
	ErrWrongFormat = errors.New("wrong message format")

	// ErrMissingClock is returned when a causal throw has no parsable
	// Lamport field, or one above clock.MaxReceivable. It is unrecoverable
	// for the sending connection.
	ErrMissingClock = errors.New("missing lamport time")
)

// Welcome encodes the greeting sent right after a connection is accepted.
func Welcome(v model.Variant) []byte {
	return []byte("WELCOME " + string(v))
}

// Start encodes the START broadcast. lc is only sent for the causal variant.
func Start(v model.Variant, lc int64) []byte {
	return withClock("START", v, lc)
}

// Stop encodes the STOP broadcast. lc is only sent for the causal variant.
func Stop(v model.Variant, lc int64) []byte {
	return withClock("STOP", v, lc)
}

func withClock(verb string, v model.Variant, lc int64) []byte {
	if !v.Causal() {
		return []byte(verb)
	}
	return []byte(verb + " " + strconv.FormatInt(lc, 10))
}

// Decode turns raw bytes from one transport read into a message string.
// Invalid UTF-8 is replaced rather than rejected.
func Decode(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

// ParseThrow parses a WURF message for the given variant and returns the
// player's self-assigned name and the throw.
//
// Numeric fields that fail to parse default to zero, except the Lamport
// field of a causal throw, which yields ErrMissingClock.
func ParseThrow(v model.Variant, msg string) (string, model.Throw, error) {
	parts := strings.Fields(msg)
	if len(parts) == 0 {
		return "", model.Throw{}, ErrEmptyMessage
	}
	if parts[0] != throwVerb {
		return "", model.Throw{}, ErrNotThrow
	}

	want := plainThrowTokens
	if v.Causal() {
		want = causalThrowTokens
	}
	if len(parts) != want {
		return "", model.Throw{}, fmt.Errorf("%w: got %d tokens, want %d", ErrWrongFormat, len(parts), want)
	}

	name := parts[1]
	throw := model.Throw{
		Variant: v,
		Value:   parseField(parts[2]),
	}

	rest := parts[3:]
	if v.Causal() {
		lc, err := strconv.ParseUint(parts[3], 10, 63)
		if err != nil || int64(lc) > clock.MaxReceivable {
			return "", model.Throw{}, fmt.Errorf("%w: %q", ErrMissingClock, parts[3])
		}
		throw.Lamport = int64(lc)
		rest = parts[4:]
	}

	throw.Start = parseTimestamp(rest[0:4])
	throw.End = parseTimestamp(rest[4:8])
	return name, throw, nil
}

func parseTimestamp(f []string) model.Timestamp {
	return model.Timestamp{
		Hours:        parseField(f[0]),
		Minutes:      parseField(f[1]),
		Seconds:      parseField(f[2]),
		Microseconds: parseField(f[3]),
	}
}

// parseField parses a non-essential unsigned field, defaulting to zero.
func parseField(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
