package window

import (
	"sort"
	"testing"

	"github.com/daviddao/gamemaster/pkg/model"
)

func causal(lc int64) model.Throw {
	return model.Throw{Variant: model.VariantCausal, Value: 1, Lamport: lc}
}

func TestContains_BoundsAreExclusive(t *testing.T) {
	w := model.Window{Start: 10, Stop: 20}
	cases := []struct {
		lc   int64
		want bool
	}{
		{0, false},
		{9, false},
		{10, false},
		{11, true},
		{15, true},
		{19, true},
		{20, false},
		{21, false},
	}
	for _, tc := range cases {
		if got := Contains(w, tc.lc); got != tc.want {
			t.Errorf("Contains(%v, %d) = %v, want %v", w, tc.lc, got, tc.want)
		}
	}
}

func TestContains_AdjacentSamplesAdmitNothing(t *testing.T) {
	w := model.Window{Start: 4, Stop: 5}
	for lc := int64(0); lc < 10; lc++ {
		if Contains(w, lc) {
			t.Fatalf("Contains(%v, %d) = true, want false", w, lc)
		}
	}
}

func TestAdmits_PlainThrowsIgnoreWindow(t *testing.T) {
	w := model.Window{Start: 10, Stop: 20}
	plain := model.Throw{Variant: model.VariantPlain, Value: 3, Lamport: 99}
	if !Admits(w, plain) {
		t.Fatal("plain throw should always be admitted")
	}
}

func TestPartition(t *testing.T) {
	w := model.Window{Start: 10, Stop: 20}
	entries := map[string]model.Throw{
		"early":   causal(10),
		"inside":  causal(12),
		"late":    causal(20),
		"inside2": causal(19),
	}

	admitted, rejected := Partition(w, entries)

	if len(admitted) != 2 {
		t.Fatalf("admitted %d entries, want 2", len(admitted))
	}
	for _, name := range []string{"inside", "inside2"} {
		if _, ok := admitted[name]; !ok {
			t.Fatalf("%s should be admitted", name)
		}
	}
	sort.Strings(rejected)
	if len(rejected) != 2 || rejected[0] != "early" || rejected[1] != "late" {
		t.Fatalf("rejected = %v, want [early late]", rejected)
	}
}

func TestPartition_Empty(t *testing.T) {
	admitted, rejected := Partition(model.Window{Start: 1, Stop: 2}, nil)
	if len(admitted) != 0 || len(rejected) != 0 {
		t.Fatalf("empty input: got %d admitted, %d rejected", len(admitted), len(rejected))
	}
}
