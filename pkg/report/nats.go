package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/daviddao/gamemaster/pkg/model"
)

// NATSConfig configures the report publisher.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the publisher defaults for url.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Subject:       "gamemaster.rounds",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// publisher is the subset of *nats.Conn used to emit reports.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes every round report as JSON. The subject is
// "<subject>.<variant>", e.g. gamemaster.rounds.B.
type NATSPublisher struct {
	nc      *nats.Conn
	pub     publisher
	subject string
}

// DialNATS connects to the configured server.
func DialNATS(cfg NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("gamemaster"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, pub: nc, subject: cfg.Subject}, nil
}

// WriteReport publishes r on the variant-specific subject.
func (p *NATSPublisher) WriteReport(r *model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	subject := p.subject + "." + string(r.Variant)
	if err := p.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish round %d to %s: %w", r.Round, subject, err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}
