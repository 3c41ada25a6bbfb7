package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/daviddao/gamemaster/pkg/clock"
	"github.com/daviddao/gamemaster/pkg/config"
	"github.com/daviddao/gamemaster/pkg/gamemaster"
	"github.com/daviddao/gamemaster/pkg/report"
	"github.com/daviddao/gamemaster/pkg/store"
)

// app holds the resources of a running game master.
type app struct {
	cfg     config.Config
	store   *store.Store // nil when the journal is off
	file    *report.FileSink
	nats    *report.NATSPublisher
	lamport *clock.Clock
	coord   *gamemaster.Coordinator
}

func setupLogging(level zerolog.Level) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(level)
}

// openJournal opens the session journal, creating its directory if needed.
func openJournal(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	s, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open journal %q: %w", path, err)
	}
	return s, nil
}

// newApp opens every sink and the journal and builds the coordinator.
// On error, whatever was already opened is closed again.
func newApp(cfg config.Config) (a *app, err error) {
	a = &app{cfg: cfg, lamport: &clock.Clock{}}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	opts := gamemaster.Options{
		Variant:       cfg.Variant,
		RoundDuration: cfg.RoundDuration(),
		Participants:  cfg.Participants,
		Listen:        cfg.Listen,
		Lamport:       a.lamport,
	}

	if cfg.JournalEnabled() {
		if a.store, err = openJournal(cfg.JournalPath); err != nil {
			return a, err
		}
		// Logical time keeps increasing across restarts sharing a journal.
		last, merr := a.store.MaxLamport()
		if merr != nil {
			return a, fmt.Errorf("read journal clock: %w", merr)
		}
		a.lamport.Set(last)
		opts.Journal = a.store
		log.Info().Str("path", cfg.JournalPath).Int64("lamport", last).Msg("journal opened")
	}

	if a.file, err = report.OpenFile(cfg.ReportPath); err != nil {
		return a, err
	}
	sinks := report.Multi{a.file, report.LogSink{}}

	if cfg.NATSURL != "" {
		natsCfg := report.DefaultNATSConfig(cfg.NATSURL)
		natsCfg.Subject = cfg.NATSSubject
		if a.nats, err = report.DialNATS(natsCfg); err != nil {
			return a, err
		}
		sinks = append(sinks, report.BestEffort{Name: "nats", Sink: a.nats})
		log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("publishing reports to NATS")
	}
	opts.Sink = sinks

	if a.coord, err = gamemaster.New(opts); err != nil {
		return a, err
	}
	return a, nil
}

// Close releases the sinks and the journal.
func (a *app) Close() {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			log.Warn().Err(err).Msg("NATS drain failed")
		}
	}
	if a.file != nil {
		a.file.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// cmdServe runs the game until interrupted.
func cmdServe(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fatal("%v", err)
	}
	setupLogging(cfg.Level())

	a, err := newApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("session", a.coord.SessionID()).
		Str("variant", string(cfg.Variant)).
		Str("report", cfg.ReportPath).
		Msg("game master starting")

	if err := a.coord.ListenAndServe(ctx); err != nil {
		log.Error().Err(err).Msg("game master stopped")
		return 1
	}
	log.Info().Int64("rounds", a.coord.Round()-1).Msg("game master stopped")
	return 0
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
