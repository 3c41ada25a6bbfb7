package gamemaster

import (
	"context"
	"errors"
	"io"
	"net"
	"slices"
	"sync"

	"github.com/daviddao/gamemaster/pkg/model"
	"github.com/daviddao/gamemaster/pkg/protocol"
)

// participant is one admitted player connection.
type participant struct {
	seq    int
	conn   net.Conn
	remote string

	leave sync.Once
}

// admit registers conn as the next participant and journals it.
func (c *Coordinator) admit(conn net.Conn) *participant {
	c.mu.Lock()
	c.nextSeq++
	p := &participant{seq: c.nextSeq, conn: conn, remote: conn.RemoteAddr().String()}
	c.players = append(c.players, p)
	c.mu.Unlock()

	c.journal("add participant", c.opts.Journal.AddParticipant(&model.Participant{
		SessionID:   c.sessionID,
		Seq:         p.seq,
		RemoteAddr:  p.remote,
		ConnectedAt: c.opts.Clock.Now().UTC(),
	}))
	c.log.Info().Int("participant", p.seq).Str("remote", p.remote).Msg("player connected")
	return p
}

// live returns a snapshot of the players that still receive broadcasts.
func (c *Coordinator) live() []*participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.players)
}

// drop removes p from future broadcasts and closes its connection. Only
// the first call for a participant has any effect.
func (c *Coordinator) drop(p *participant, reason string) {
	p.leave.Do(func() {
		c.mu.Lock()
		c.players = slices.DeleteFunc(c.players, func(q *participant) bool { return q == p })
		c.mu.Unlock()

		p.conn.Close()
		c.journal("mark participant left",
			c.opts.Journal.MarkParticipantLeft(c.sessionID, p.seq, reason, c.opts.Clock.Now().UTC()))
		c.log.Info().Int("participant", p.seq).Str("remote", p.remote).Str("reason", reason).Msg("player dropped")
	})
}

func (c *Coordinator) dropAll(reason string) {
	for _, p := range c.live() {
		c.drop(p, reason)
	}
}

// handle reads throws from p until the connection ends or p violates the
// protocol. One transport read is one message.
//
// Throws with the wrong token count and messages other than WURF are
// discarded. A blank message, a zero-byte read, or a causal throw without
// a usable Lamport time ends the handler and drops the player.
func (c *Coordinator) handle(ctx context.Context, p *participant) {
	logger := c.log.With().Int("participant", p.seq).Str("remote", p.remote).Logger()
	buf := make([]byte, protocol.MaxMessageSize)

	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			msg := protocol.Decode(buf[:n])
			logger.Debug().Str("msg", msg).Msg("received")

			name, throw, perr := protocol.ParseThrow(c.opts.Variant, msg)
			switch {
			case perr == nil:
				if throw.HasClock() {
					lc := c.lamport.Receive(throw.Lamport)
					logger.Debug().Int64("lamport", lc).Int64("sent", throw.Lamport).Msg("clock merged")
				}
				c.table.Put(name, throw)
				logger.Debug().Str("player", name).Uint32("value", throw.Value).Msg("throw recorded")
			case errors.Is(perr, protocol.ErrWrongFormat):
				logger.Warn().Err(perr).Str("msg", msg).Msg("wrong message format, discarded")
			case errors.Is(perr, protocol.ErrNotThrow):
				logger.Debug().Str("msg", msg).Msg("ignoring non-throw message")
			default:
				logger.Warn().Err(perr).Str("msg", msg).Msg("protocol violation, closing connection")
				c.drop(p, perr.Error())
				return
			}
		}

		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, net.ErrClosed):
				logger.Debug().Err(err).Msg("connection closed")
				c.drop(p, "shutdown")
			case errors.Is(err, io.EOF):
				logger.Warn().Msg("empty read, closing connection")
				c.drop(p, "empty read")
			default:
				logger.Debug().Err(err).Msg("read failed")
				c.drop(p, "read failed")
			}
			return
		}
	}
}
