package round

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/daviddao/gamemaster/pkg/model"
)

// NoWinnerLine is written when no throw survived evaluation.
const NoWinnerLine = "Looks like every player was too slow for the game master :)"

// Format writes the human-readable block for r, terminated by a blank line.
func Format(w io.Writer, r *model.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d - started at %s - ended at %s:\n",
		r.Round, r.Started.Format(time.RFC3339Nano), r.Ended.Format(time.RFC3339Nano))
	if r.Window != nil {
		fmt.Fprintf(&b, "Lamport time at round start: %d and at round end: %d\n",
			r.Window.Start, r.Window.Stop)
	}
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%s rolled a %s\n", e.Player, e.Throw)
	}
	b.WriteString(WinnerLine(r))
	b.WriteString("\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WinnerLine returns the closing line of a report.
func WinnerLine(r *model.Report) string {
	if r.Winner == nil {
		return NoWinnerLine
	}
	return fmt.Sprintf("Round %d was won by %s with a roll of %d!",
		r.Round, r.Winner.Player, r.Winner.Throw.Value)
}
