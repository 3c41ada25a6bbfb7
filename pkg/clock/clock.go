// Package clock implements the game master's Lamport logical clock.
//
// From Lamport (1978), two implementation rules govern the clock:
//
//	IR1 (internal event): Before any internal event, increment the clock.
//	IR2 (message receipt): On receiving a message with timestamp t,
//	     set the clock to max(own, t) + 1.
//
// One Clock is shared by the round coordinator (IR1 before every START and
// STOP broadcast) and by every connection handler (IR2 for every reported
// throw). All mutators take the same mutex, so each Tick and Receive is a
// single atomic read-modify-write relative to the others.
package clock

import (
	"math"
	"sync"
)

// MaxReceivable is the largest timestamp accepted from a peer. It leaves
// headroom below math.MaxInt64 for the local ticks that follow a merge.
const MaxReceivable int64 = 1<<62 - 1

// Clock is a goroutine-safe Lamport logical clock. The zero value is a
// clock at time 0, ready to use.
type Clock struct {
	mu sync.Mutex
	ts int64
}

// Tick implements IR1: increment the clock before an internal event.
// Returns the new timestamp.
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return c.ts
}

// Receive implements IR2: on receiving a message with timestamp received,
// set the clock to max(own, received) + 1. Returns the new timestamp.
func (c *Clock) Receive(received int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if received > c.ts {
		c.ts = received
	}
	c.advance()
	return c.ts
}

// Value returns the current clock value without advancing it.
func (c *Clock) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Set seeds the clock, typically from the journal's highest recorded
// timestamp at startup. Set never moves the clock backwards.
func (c *Clock) Set(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.ts {
		c.ts = v
	}
}

// advance increments the clock, saturating at math.MaxInt64 instead of
// wrapping. Callers hold c.mu.
func (c *Clock) advance() {
	if c.ts < math.MaxInt64 {
		c.ts++
	}
}
