// Package report delivers evaluated round reports: to the append-only text
// file players and operators read, to the log, and optionally to NATS.
package report

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/daviddao/gamemaster/pkg/model"
	"github.com/daviddao/gamemaster/pkg/round"
)

// Sink receives one report per round.
type Sink interface {
	WriteReport(r *model.Report) error
}

// FileSink appends formatted report blocks to a text file.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenFile opens (or creates) path for appending.
func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open report file %q: %w", path, err)
	}
	return &FileSink{f: f, path: path}, nil
}

// WriteReport appends r's block and syncs it to disk.
func (s *FileSink) WriteReport(r *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := round.Format(s.f, r); err != nil {
		return fmt.Errorf("write report to %s: %w", s.path, err)
	}
	return s.f.Sync()
}

// Close closes the underlying file.
func (s *FileSink) Close() error { return s.f.Close() }

// LogSink writes every report to the global zerolog logger.
type LogSink struct{}

func (LogSink) WriteReport(r *model.Report) error {
	for _, e := range r.Entries {
		log.Info().
			Int64("round", r.Round).
			Str("participant", e.Player).
			Msg(e.Player + " rolled a " + e.Throw.String())
	}
	ev := log.Info().
		Str("session", r.Session).
		Int64("round", r.Round).
		Int("entries", len(r.Entries)).
		Int("dropped", r.Dropped)
	if r.Window != nil {
		ev = ev.Int64("lc_start", r.Window.Start).Int64("lc_stop", r.Window.Stop)
	}
	if r.Winner != nil {
		ev = ev.Str("winner", r.Winner.Player).Uint32("value", r.Winner.Throw.Value)
	}
	ev.Msg(round.WinnerLine(r))
	return nil
}

// Multi fans a report out to several sinks. Every sink is attempted; the
// errors of the failing ones are joined.
type Multi []Sink

func (m Multi) WriteReport(r *model.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteReport(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort wraps a sink whose failures must not stop the game: errors
// are logged and swallowed.
type BestEffort struct {
	Name string
	Sink Sink
}

func (b BestEffort) WriteReport(r *model.Report) error {
	if err := b.Sink.WriteReport(r); err != nil {
		log.Warn().Err(err).Str("sink", b.Name).Int64("round", r.Round).Msg("report delivery failed")
	}
	return nil
}
