// Package metrics holds the Prometheus collectors shared across the
// server. Collectors register themselves on the default registry at
// init; the /metrics route serves them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AgentsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_agents_active",
		Help: "Agents currently present in the world",
	})

	BattlesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_battles_active",
		Help: "Battles currently in progress",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_queue_depth",
		Help: "Commands waiting in the tick queue",
	})

	Observers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_observers",
		Help: "Connected websocket observers",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Wall time spent inside a single world tick",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_commands_total",
		Help: "Commands accepted or rejected, by result token",
	}, []string{"result"})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_events_total",
		Help: "World events applied, by message type",
	}, []string{"type"})

	RelayDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_relay_dropped_total",
		Help: "Events dropped because the relay buffer was full",
	})

	StoreDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_store_dropped_total",
		Help: "Events dropped because the store buffer was full",
	})

	SlowTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_slow_ticks_total",
		Help: "Ticks that overran their budget",
	})
)
