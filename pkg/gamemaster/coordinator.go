// Package gamemaster runs the dice game: it admits a fixed number of
// players over TCP, then plays timed rounds forever. Each round is opened
// with START and closed with STOP; the throws players report in between
// are evaluated and the winner is written to the report sink.
package gamemaster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/daviddao/gamemaster/pkg/clock"
	"github.com/daviddao/gamemaster/pkg/model"
	"github.com/daviddao/gamemaster/pkg/protocol"
	"github.com/daviddao/gamemaster/pkg/report"
	"github.com/daviddao/gamemaster/pkg/results"
	"github.com/daviddao/gamemaster/pkg/round"
)

// Journal records the session roster and the broadcast log. Journal
// failures are logged and never interrupt the game.
type Journal interface {
	StartSession(sess *model.Session) error
	AddParticipant(p *model.Participant) error
	MarkParticipantLeft(sessionID string, seq int, reason string, at time.Time) error
	InsertEvent(e *model.Event) (int64, error)
}

type nopJournal struct{}

func (nopJournal) StartSession(*model.Session) error                        { return nil }
func (nopJournal) AddParticipant(*model.Participant) error                  { return nil }
func (nopJournal) MarkParticipantLeft(string, int, string, time.Time) error { return nil }
func (nopJournal) InsertEvent(*model.Event) (int64, error)                  { return 0, nil }

// Options configures a Coordinator. Sink, Participants and RoundDuration
// are required; the rest have working defaults.
type Options struct {
	Variant       model.Variant
	RoundDuration time.Duration
	Participants  int
	// Listen is the bind address used by ListenAndServe.
	Listen string

	Sink    report.Sink
	Journal Journal
	// Clock drives round timing and wall-clock report stamps.
	// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
	Clock clockwork.Clock
	// Lamport is the logical clock shared with the connection handlers.
	// It may be pre-seeded, e.g. from the journal.
	Lamport *clock.Clock
	// WriteTimeout bounds each write to a player. A player that does not
	// drain its socket within it is dropped. Defaults to DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// DefaultWriteTimeout is used when Options.WriteTimeout is zero.
const DefaultWriteTimeout = 2 * time.Second

// Coordinator owns a game session: the player connections, the Lamport
// clock and the result table.
type Coordinator struct {
	opts      Options
	sessionID string
	log       zerolog.Logger

	lamport *clock.Clock
	table   *results.Table
	round   atomic.Int64

	mu      sync.Mutex
	players []*participant
	nextSeq int
}

// New validates opts and returns a coordinator for a fresh session.
func New(opts Options) (*Coordinator, error) {
	if _, err := model.ParseVariant(string(opts.Variant)); err != nil {
		return nil, err
	}
	if opts.Participants <= 0 {
		return nil, fmt.Errorf("participants must be positive, got %d", opts.Participants)
	}
	if opts.RoundDuration <= 0 {
		return nil, fmt.Errorf("round duration must be positive, got %v", opts.RoundDuration)
	}
	if opts.Sink == nil {
		return nil, errors.New("report sink is required")
	}
	if opts.Journal == nil {
		opts.Journal = nopJournal{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Lamport == nil {
		opts.Lamport = &clock.Clock{}
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	id := uuid.New().String()
	c := &Coordinator{
		opts:      opts,
		sessionID: id,
		log: log.With().
			Str("session", id[:8]).
			Str("variant", string(opts.Variant)).
			Logger(),
		lamport: opts.Lamport,
		table:   results.New(),
	}
	c.round.Store(1)
	return c, nil
}

// SessionID returns the identifier of this coordinator's session.
func (c *Coordinator) SessionID() string { return c.sessionID }

// Round returns the number of the round currently being played.
func (c *Coordinator) Round() int64 { return c.round.Load() }

// Connected returns the number of players still receiving broadcasts.
func (c *Coordinator) Connected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.players)
}

// Pending returns the number of throws recorded for the current round.
func (c *Coordinator) Pending() int { return c.table.Len() }

// ListenAndServe binds the configured address and calls Serve.
func (c *Coordinator) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.opts.Listen)
	if err != nil {
		return fmt.Errorf("bind %s: %w", c.opts.Listen, err)
	}
	return c.Serve(ctx, ln)
}

// Serve admits players from ln until the session is full, closes ln and
// then plays rounds until ctx is cancelled or the report sink fails.
// Cancellation is not an error.
func (c *Coordinator) Serve(ctx context.Context, ln net.Listener) error {
	stopAccept := context.AfterFunc(ctx, func() { ln.Close() })
	defer stopAccept()

	c.log.Info().
		Str("addr", ln.Addr().String()).
		Int("participants", c.opts.Participants).
		Dur("round", c.opts.RoundDuration).
		Msg("game master listening")

	c.journal("start session", c.opts.Journal.StartSession(&model.Session{
		ID:           c.sessionID,
		Variant:      c.opts.Variant,
		Participants: c.opts.Participants,
		RoundSeconds: int64(c.opts.RoundDuration / time.Second),
		Listen:       ln.Addr().String(),
		StartedAt:    c.opts.Clock.Now().UTC(),
	}))

	g, gctx := errgroup.WithContext(ctx)
	stopHangup := context.AfterFunc(gctx, func() { c.dropAll("shutdown") })
	defer stopHangup()

	if err := c.accept(gctx, g, ln); err != nil {
		c.dropAll("shutdown")
		werr := g.Wait()
		if ctx.Err() != nil {
			return nil
		}
		return errors.Join(err, werr)
	}

	g.Go(func() error { return c.runRounds(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// accept admits players until the session is full. Every admitted player
// gets its own handler goroutine. Players that leave early still count
// towards the session size.
func (c *Coordinator) accept(ctx context.Context, g *errgroup.Group, ln net.Listener) error {
	defer ln.Close()

	for admitted := 0; admitted < c.opts.Participants; {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}

		remote := conn.RemoteAddr().String()
		if err := c.write(conn, protocol.Welcome(c.opts.Variant)); err != nil {
			c.log.Warn().Err(err).Str("remote", remote).Msg("failed to send WELCOME, dropping connection")
			conn.Close()
			continue
		}

		p := c.admit(conn)
		admitted++
		g.Go(func() error {
			c.handle(ctx, p)
			return nil
		})
	}

	c.log.Info().Int("participants", c.opts.Participants).Msg("all players connected, closing listener")
	return nil
}

// runRounds plays rounds back to back until ctx is done.
func (c *Coordinator) runRounds(ctx context.Context) error {
	for {
		if err := c.playRound(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// playRound runs one START / wait / STOP / evaluate cycle.
func (c *Coordinator) playRound(ctx context.Context) error {
	n := c.round.Load()
	logger := c.log.With().Int64("round", n).Logger()

	started := c.opts.Clock.Now()
	lcStart := c.lamport.Tick()
	c.broadcast(protocol.Start(c.opts.Variant, lcStart))
	c.recordEvent(n, lcStart, model.EventStart)
	logger.Info().Int64("lamport", lcStart).Int("players", c.Connected()).Msg("round started")

	timer := c.opts.Clock.NewTimer(c.opts.RoundDuration)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.Chan():
	}

	lcStop := c.lamport.Tick()
	ended := c.opts.Clock.Now()
	c.broadcast(protocol.Stop(c.opts.Variant, lcStop))
	c.recordEvent(n, lcStop, model.EventStop)
	logger.Info().Int64("lamport", lcStop).Msg("round stopped")

	var rep *model.Report
	c.table.Drain(func(entries map[string]model.Throw) {
		rep = round.Evaluate(round.Params{
			Session: c.sessionID,
			Round:   n,
			Variant: c.opts.Variant,
			Window:  model.Window{Start: lcStart, Stop: lcStop},
			Started: started,
			Ended:   ended,
		}, entries)
	})

	if err := c.opts.Sink.WriteReport(rep); err != nil {
		return fmt.Errorf("report round %d: %w", n, err)
	}
	c.round.Add(1)
	return nil
}

// broadcast writes msg to every live player. A player whose write fails
// or times out is dropped; the others still receive msg.
func (c *Coordinator) broadcast(msg []byte) {
	for _, p := range c.live() {
		if err := c.write(p.conn, msg); err != nil {
			c.log.Warn().Err(err).
				Int("participant", p.seq).
				Str("remote", p.remote).
				Msg("broadcast failed, dropping player")
			c.drop(p, "write failed")
		}
	}
}

// write sends msg under the write timeout. Deadlines are wall-clock time
// and independent of opts.Clock.
func (c *Coordinator) write(conn net.Conn, msg []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(msg)
	return err
}

func (c *Coordinator) recordEvent(n, lc int64, kind model.EventKind) {
	_, err := c.opts.Journal.InsertEvent(&model.Event{
		SessionID: c.sessionID,
		LamportTS: lc,
		Round:     n,
		Kind:      kind,
		CreatedAt: c.opts.Clock.Now().UTC(),
	})
	c.journal("record "+string(kind), err)
}

func (c *Coordinator) journal(op string, err error) {
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Msg("journal write failed")
	}
}
