package results

import (
	"fmt"
	"sync"
	"testing"

	"github.com/daviddao/gamemaster/pkg/model"
)

func throw(v uint32) model.Throw {
	return model.Throw{Variant: model.VariantPlain, Value: v}
}

func TestPut_LastWriteWins(t *testing.T) {
	tbl := New()
	tbl.Put("alice", throw(2))
	tbl.Put("alice", throw(5))

	if n := tbl.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
	tbl.Drain(func(entries map[string]model.Throw) {
		if got := entries["alice"].Value; got != 5 {
			t.Fatalf("alice = %d, want 5", got)
		}
	})
}

func TestDrain_AlwaysEmptiesTable(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		t.Run(fmt.Sprintf("%d entries", n), func(t *testing.T) {
			tbl := New()
			for i := 0; i < n; i++ {
				tbl.Put(fmt.Sprintf("p%d", i), throw(uint32(i)))
			}
			seen := -1
			tbl.Drain(func(entries map[string]model.Throw) { seen = len(entries) })
			if seen != n {
				t.Fatalf("Drain saw %d entries, want %d", seen, n)
			}
			if got := tbl.Len(); got != 0 {
				t.Fatalf("Len after Drain = %d, want 0", got)
			}
			// A second drain is a no-op on an empty table.
			tbl.Drain(func(entries map[string]model.Throw) { seen = len(entries) })
			if seen != 0 {
				t.Fatalf("second Drain saw %d entries, want 0", seen)
			}
		})
	}
}

func TestDrain_ClearsEntriesTheCallbackIgnored(t *testing.T) {
	tbl := New()
	tbl.Put("late", throw(6))
	tbl.Drain(func(map[string]model.Throw) {})
	if got := tbl.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
}

func TestConcurrentPutsAndDrains(t *testing.T) {
	tbl := New()
	const writers = 8

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tbl.Put(fmt.Sprintf("p%d", w), throw(uint32(i)))
			}
		}(w)
	}

	for i := 0; i < 50; i++ {
		tbl.Drain(func(entries map[string]model.Throw) {
			if len(entries) > writers {
				t.Errorf("drain saw %d entries, want <= %d", len(entries), writers)
			}
		})
	}
	wg.Wait()

	if got := tbl.Len(); got > writers {
		t.Fatalf("Len = %d, want <= %d", got, writers)
	}
}
