// Package results holds the throws reported during the current round.
package results

import (
	"sync"

	"github.com/daviddao/gamemaster/pkg/model"
)

// Table maps a player's self-assigned name to the latest throw received
// since the table was last drained. A single mutex guards every access;
// it is the only point of contention between connection handlers and the
// round coordinator.
type Table struct {
	mu      sync.Mutex
	entries map[string]model.Throw
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[string]model.Throw)}
}

// Put records a throw for player. A later throw from the same name
// overwrites the earlier one.
func (t *Table) Put(player string, th model.Throw) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[player] = th
}

// Len returns the number of players with a recorded throw.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Drain runs fn with exclusive access to the current entries and then
// clears the table, including entries fn chose to ignore. No Put can
// interleave with fn. fn must not retain the map.
func (t *Table) Drain(fn func(entries map[string]model.Throw)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.entries)
	clear(t.entries)
}
