// Package window decides which causal throws belong to a round.
//
// A round's window is the open Lamport interval between the clock value
// stamped on its START broadcast and the one stamped on its STOP broadcast.
// A throw whose Lamport time is not strictly inside that interval was
// produced before the player could have seen this round's START, or after
// the game master had already moved on, and is rejected.
//
// Plain throws carry no logical time and are always admitted: a reply that
// arrives after STOP but before evaluation still counts for the round.
package window

import "github.com/daviddao/gamemaster/pkg/model"

// Contains reports whether lc lies strictly inside w.
func Contains(w model.Window, lc int64) bool {
	return w.Start < lc && lc < w.Stop
}

// Admits reports whether th belongs to the round described by w.
func Admits(w model.Window, th model.Throw) bool {
	if !th.HasClock() {
		return true
	}
	return Contains(w, th.Lamport)
}

// Partition splits entries into the throws the window admits and the
// names of the players whose throws it rejects.
func Partition(w model.Window, entries map[string]model.Throw) (admitted map[string]model.Throw, rejected []string) {
	admitted = make(map[string]model.Throw, len(entries))
	for player, th := range entries {
		if Admits(w, th) {
			admitted[player] = th
		} else {
			rejected = append(rejected, player)
		}
	}
	return admitted, rejected
}
