package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/nats-io/nats.go"
)

var ErrNotStarted = errors.New("publisher is not started")

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
	Close()
}

// natsConnect is a seam for tests.
var natsConnect = func(url string, opts ...nats.Option) (conn, error) {
	c, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NATSPublisher publishes JSON-encoded events to core NATS subjects of the
// form <prefix>.<subject>.
type NATSPublisher struct {
	url    string
	prefix string
	logger logging.Logger

	mu   sync.RWMutex
	conn conn
}

func NewNATSPublisher(url, prefix string, logger logging.Logger) *NATSPublisher {
	return &NATSPublisher{url: url, prefix: prefix, logger: logger.With("module", "events")}
}

// Start connects to the broker. Calling Start on a started publisher is a no-op.
func (p *NATSPublisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return nil
	}

	c, err := natsConnect(p.url,
		nats.Name("taskflow-auth"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn(context.Background(), "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.logger.Info(context.Background(), "nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	p.conn = c
	p.logger.Info(ctx, "event publisher started", "url", p.url)
	return nil
}

// Stop drains buffered messages and closes the connection.
func (p *NATSPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	c := p.conn
	p.conn = nil
	p.mu.Unlock()
	if c == nil {
		return nil
	}

	if err := c.FlushWithContext(ctx); err != nil {
		p.logger.Warn(ctx, "flush before drain failed", "error", err)
	}
	if err := c.Drain(); err != nil {
		c.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	p.logger.Info(ctx, "event publisher stopped")
	return nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, ev Event) error {
	p.mu.RLock()
	c := p.conn
	p.mu.RUnlock()
	if c == nil {
		return ErrNotStarted
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	subj := p.subject(subject)
	if err := c.Publish(subj, data); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.EventType(), subj, err)
	}
	p.logger.Debug(ctx, "event published", "subject", subj, "type", ev.EventType())
	return nil
}

func (p *NATSPublisher) subject(s string) string {
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}
