package relay

import (
	"context"
	"fmt"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"agentarena/pkg/metrics"
	"agentarena/pkg/wire"
)

// natsPublisher publishes each message as JSON on a subject. Core NATS,
// at-most-once: a flaky broker loses events, which matches the gossip
// contract.
type natsPublisher struct {
	conn    *nats.Conn
	subject string
	ch      chan *wire.Message
	dropped atomic.Uint64
	errlog  func(format string, v ...any)
}

func newNATSPublisher(url, subject string, errlog func(format string, v ...any)) (*natsPublisher, error) {
	if subject == "" {
		subject = "arena.events"
	}
	conn, err := nats.Connect(url, nats.Name("agentarena-relay"))
	if err != nil {
		return nil, fmt.Errorf("relay: connect nats %s: %w", url, err)
	}
	return &natsPublisher{
		conn:    conn,
		subject: subject,
		ch:      make(chan *wire.Message, relayBuffer),
		errlog:  errlog,
	}, nil
}

func (p *natsPublisher) Publish(msg *wire.Message) {
	select {
	case p.ch <- msg:
	default:
		p.dropped.Add(1)
		metrics.RelayDropped.Inc()
	}
}

func (p *natsPublisher) Dropped() uint64 { return p.dropped.Load() }

func (p *natsPublisher) Run(ctx context.Context) error {
	defer p.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.ch:
			data, err := json.Marshal(msg)
			if err != nil {
				p.dropped.Add(1)
				metrics.RelayDropped.Inc()
				continue
			}
			if err := p.conn.Publish(p.subject, data); err != nil {
				p.dropped.Add(1)
				metrics.RelayDropped.Inc()
				p.errlog("relay: nats publish: %v", err)
			}
		}
	}
}
