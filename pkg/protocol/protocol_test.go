package protocol

import (
	"errors"
	"testing"

	"github.com/daviddao/gamemaster/pkg/clock"
	"github.com/daviddao/gamemaster/pkg/model"
)

func TestBroadcastEncoding(t *testing.T) {
	cases := []struct {
		name string
		got  []byte
		want string
	}{
		{"welcome plain", Welcome(model.VariantPlain), "WELCOME A"},
		{"welcome causal", Welcome(model.VariantCausal), "WELCOME B"},
		{"start plain ignores clock", Start(model.VariantPlain, 7), "START"},
		{"start causal", Start(model.VariantCausal, 7), "START 7"},
		{"stop plain ignores clock", Stop(model.VariantPlain, 8), "STOP"},
		{"stop causal", Stop(model.VariantCausal, 8), "STOP 8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if string(tc.got) != tc.want {
				t.Fatalf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestParseThrow_PlainRoundTrip(t *testing.T) {
	name, th, err := ParseThrow(model.VariantPlain, "WURF alice 5 10 11 12 13 14 15 16 17")
	if err != nil {
		t.Fatalf("ParseThrow: %v", err)
	}
	if name != "alice" {
		t.Fatalf("name = %q, want alice", name)
	}
	want := model.Throw{
		Variant: model.VariantPlain,
		Value:   5,
		Start:   model.Timestamp{Hours: 10, Minutes: 11, Seconds: 12, Microseconds: 13},
		End:     model.Timestamp{Hours: 14, Minutes: 15, Seconds: 16, Microseconds: 17},
	}
	if th != want {
		t.Fatalf("throw = %+v, want %+v", th, want)
	}
}

func TestParseThrow_CausalRoundTrip(t *testing.T) {
	name, th, err := ParseThrow(model.VariantCausal, "WURF bob 6 42 1 2 3 4 5 6 7 8")
	if err != nil {
		t.Fatalf("ParseThrow: %v", err)
	}
	if name != "bob" {
		t.Fatalf("name = %q, want bob", name)
	}
	want := model.Throw{
		Variant: model.VariantCausal,
		Value:   6,
		Lamport: 42,
		Start:   model.Timestamp{Hours: 1, Minutes: 2, Seconds: 3, Microseconds: 4},
		End:     model.Timestamp{Hours: 5, Minutes: 6, Seconds: 7, Microseconds: 8},
	}
	if th != want {
		t.Fatalf("throw = %+v, want %+v", th, want)
	}
}

func TestParseThrow_ToleratesSurroundingWhitespace(t *testing.T) {
	_, th, err := ParseThrow(model.VariantPlain, "  WURF carol 3\t0 0 0 0\n0 0 1 0  \r\n")
	if err != nil {
		t.Fatalf("ParseThrow: %v", err)
	}
	if th.Value != 3 || th.End.Seconds != 1 {
		t.Fatalf("throw = %+v", th)
	}
}

func TestParseThrow_UnparsableFieldsDefaultToZero(t *testing.T) {
	_, th, err := ParseThrow(model.VariantPlain, "WURF dave six -1 x 3 4 5 6 7 99999999999")
	if err != nil {
		t.Fatalf("ParseThrow: %v", err)
	}
	want := model.Throw{
		Variant: model.VariantPlain,
		Start:   model.Timestamp{Hours: 0, Minutes: 0, Seconds: 3, Microseconds: 4},
		End:     model.Timestamp{Hours: 5, Minutes: 6, Seconds: 7, Microseconds: 0},
	}
	if th != want {
		t.Fatalf("throw = %+v, want %+v", th, want)
	}
}

func TestParseThrow_Errors(t *testing.T) {
	cases := []struct {
		name    string
		variant model.Variant
		msg     string
		want    error
	}{
		{"blank", model.VariantPlain, " \n\t", ErrEmptyMessage},
		{"other verb", model.VariantPlain, "HELLO there", ErrNotThrow},
		{"plain too short", model.VariantPlain, "WURF a 1 0 0 0 0 0 0 0", ErrWrongFormat},
		{"plain gets causal layout", model.VariantPlain, "WURF a 1 9 0 0 0 0 0 0 0 0", ErrWrongFormat},
		{"causal gets plain layout", model.VariantCausal, "WURF a 1 0 0 0 0 0 0 0 0", ErrWrongFormat},
		{"causal clock unparsable", model.VariantCausal, "WURF a 1 soon 0 0 0 0 0 0 0 0", ErrMissingClock},
		{"causal clock negative", model.VariantCausal, "WURF a 1 -4 0 0 0 0 0 0 0 0", ErrMissingClock},
		{"causal clock at int64 limit", model.VariantCausal, "WURF a 1 9223372036854775807 0 0 0 0 0 0 0 0", ErrMissingClock},
		{"causal clock above receivable", model.VariantCausal, "WURF a 1 4611686018427387904 0 0 0 0 0 0 0 0", ErrMissingClock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseThrow(tc.variant, tc.msg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ParseThrow(%q) err = %v, want %v", tc.msg, err, tc.want)
			}
		})
	}
}

func TestParseThrow_AcceptsLargestReceivableClock(t *testing.T) {
	_, th, err := ParseThrow(model.VariantCausal, "WURF a 1 4611686018427387903 0 0 0 0 0 0 0 0")
	if err != nil {
		t.Fatalf("ParseThrow: %v", err)
	}
	if th.Lamport != clock.MaxReceivable {
		t.Fatalf("Lamport = %d, want %d", th.Lamport, clock.MaxReceivable)
	}
}

func TestDecode_ReplacesInvalidUTF8(t *testing.T) {
	got := Decode([]byte{'W', 'U', 'R', 'F', ' ', 0xff, 'x'})
	if got != "WURF \uFFFDx" {
		t.Fatalf("Decode = %q", got)
	}
}
