// Package round evaluates the throws collected during one round and
// renders the resulting report.
package round

import (
	"sort"
	"time"

	"github.com/daviddao/gamemaster/pkg/model"
	"github.com/daviddao/gamemaster/pkg/window"
)

// Params describes the round being evaluated.
type Params struct {
	Session string
	Round   int64
	Variant model.Variant
	// Window is only consulted for the causal variant.
	Window  model.Window
	Started time.Time
	Ended   time.Time
}

// Evaluate filters entries by the round window (causal variant only),
// picks the winner and returns the report. It does not modify entries.
//
// Entries are listed in ascending player order. The winner is the highest
// value; ties go to the lexicographically smallest player name.
func Evaluate(p Params, entries map[string]model.Throw) *model.Report {
	r := &model.Report{
		Session: p.Session,
		Round:   p.Round,
		Variant: p.Variant,
		Started: p.Started,
		Ended:   p.Ended,
		Entries: []model.Entry{},
	}

	admitted := entries
	if p.Variant.Causal() {
		w := p.Window
		r.Window = &w
		var rejected []string
		admitted, rejected = window.Partition(w, entries)
		r.Dropped = len(rejected)
	}

	for player, th := range admitted {
		r.Entries = append(r.Entries, model.Entry{Player: player, Throw: th})
	}
	sort.Slice(r.Entries, func(i, j int) bool {
		return r.Entries[i].Player < r.Entries[j].Player
	})

	for i := range r.Entries {
		if r.Winner == nil || Beats(r.Entries[i], *r.Winner) {
			e := r.Entries[i]
			r.Winner = &e
		}
	}
	return r
}

// Beats defines the total order used for winner selection: a beats b if
//
//	a.Value > b.Value, or
//	a.Value == b.Value and a.Player < b.Player (lexicographic)
func Beats(a, b model.Entry) bool {
	if a.Throw.Value != b.Throw.Value {
		return a.Throw.Value > b.Throw.Value
	}
	return a.Player < b.Player
}
