// Package relay publishes the validated event firehose to an external
// gossip endpoint. Publishing is strictly best effort: the simulation hands
// messages to a bounded channel and never waits; transport failures are
// logged and dropped.
package relay

import (
	"context"
	"sync/atomic"

	"agentarena/pkg/wire"
)

type Publisher interface {
	// Publish hands one message to the relay worker without blocking.
	Publish(msg *wire.Message)
	// Run drives the worker until ctx is cancelled.
	Run(ctx context.Context) error
	// Dropped counts messages lost to backpressure or transport failure.
	Dropped() uint64
}

type Config struct {
	Mode    string // off, http or nats
	URL     string // http endpoint
	NATSURL string
	Subject string
}

// New selects the publisher for the configured mode.
func New(cfg Config, errlog func(format string, v ...any)) (Publisher, error) {
	switch cfg.Mode {
	case "http":
		return newHTTPPublisher(cfg.URL, errlog), nil
	case "nats":
		return newNATSPublisher(cfg.NATSURL, cfg.Subject, errlog)
	default:
		return &Noop{}, nil
	}
}

// Noop swallows everything. Used when no relay is configured and in tests.
type Noop struct{ dropped atomic.Uint64 }

func (n *Noop) Publish(*wire.Message) {}

func (n *Noop) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n *Noop) Dropped() uint64 { return n.dropped.Load() }
