package clock

import (
	"math"
	"sync"
	"testing"
)

func TestTickMonotonicallyIncreases(t *testing.T) {
	var c Clock
	prev := c.Value()
	for i := 0; i < 100; i++ {
		ts := c.Tick()
		if ts <= prev {
			t.Fatalf("Tick %d: got %d, want > %d", i, ts, prev)
		}
		prev = ts
	}
}

func TestTickStartsFromZero(t *testing.T) {
	var c Clock
	if v := c.Value(); v != 0 {
		t.Fatalf("new clock: got %d, want 0", v)
	}
	if ts := c.Tick(); ts != 1 {
		t.Fatalf("first Tick: got %d, want 1", ts)
	}
}

func TestReceiveMaxPlusOne(t *testing.T) {
	var c Clock
	c.Set(5)

	// Receive a higher timestamp: should set to max(5, 10)+1 = 11
	ts := c.Receive(10)
	if ts != 11 {
		t.Fatalf("Receive(10) from 5: got %d, want 11", ts)
	}

	// Receive a lower timestamp: should set to max(11, 3)+1 = 12
	ts = c.Receive(3)
	if ts != 12 {
		t.Fatalf("Receive(3) from 11: got %d, want 12", ts)
	}
}

func TestReceiveEqualTimestamp(t *testing.T) {
	var c Clock
	c.Set(10)
	ts := c.Receive(10)
	if ts != 11 {
		t.Fatalf("Receive(10) from 10: got %d, want 11", ts)
	}
}

func TestReceiveStrictlyGreaterThanBothOperands(t *testing.T) {
	var c Clock
	merges := []int64{0, 7, 3, 3, 42, 1, 43, 100, 0}
	for _, m := range merges {
		before := c.Value()
		after := c.Receive(m)
		if after <= before || after <= m {
			t.Fatalf("Receive(%d) from %d: got %d, want > both", m, before, after)
		}
	}
}

func TestReceiveNeverWrapsAtLimit(t *testing.T) {
	var c Clock
	c.Set(5)
	if ts := c.Receive(math.MaxInt64); ts != math.MaxInt64 {
		t.Fatalf("Receive(MaxInt64): got %d, want saturation at %d", ts, int64(math.MaxInt64))
	}
	if ts := c.Tick(); ts != math.MaxInt64 {
		t.Fatalf("Tick at limit: got %d, want %d", ts, int64(math.MaxInt64))
	}
}

func TestReceiveLargestReceivableStaysIncreasing(t *testing.T) {
	var c Clock
	c.Set(5)
	after := c.Receive(MaxReceivable)
	if after <= MaxReceivable {
		t.Fatalf("Receive(MaxReceivable): got %d, want > %d", after, MaxReceivable)
	}
	if next := c.Tick(); next <= after {
		t.Fatalf("Tick after merge: got %d, want > %d", next, after)
	}
}

func TestSetAndValue(t *testing.T) {
	var c Clock
	c.Set(42)
	if v := c.Value(); v != 42 {
		t.Fatalf("after Set(42): got %d, want 42", v)
	}
}

func TestSetNeverMovesBackwards(t *testing.T) {
	var c Clock
	c.Set(42)
	c.Set(7)
	if v := c.Value(); v != 42 {
		t.Fatalf("after Set(42), Set(7): got %d, want 42", v)
	}
}

func TestSetThenTick(t *testing.T) {
	var c Clock
	c.Set(100)
	ts := c.Tick()
	if ts != 101 {
		t.Fatalf("Tick after Set(100): got %d, want 101", ts)
	}
}

func TestConcurrentMutatorsNeverLoseUpdates(t *testing.T) {
	var c Clock
	const workers, perWorker = 8, 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if w%2 == 0 {
					c.Tick()
				} else {
					// Merging 0 never raises the clock beyond the +1.
					c.Receive(0)
				}
			}
		}(w)
	}
	wg.Wait()

	if got, want := c.Value(), int64(workers*perWorker); got != want {
		t.Fatalf("after %d concurrent mutations: got %d, want %d", want, got, want)
	}
}
