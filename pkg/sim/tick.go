package sim

import (
	"context"
	"time"

	"agentarena/pkg/metrics"
	"agentarena/pkg/wire"
)

const tickPeriod = wire.TickMillis * time.Millisecond

// tickHook runs at the top of the step on its own cadence. Hooks fire
// timers: phase and zone progression, the 1 Hz battle timeout scan and
// the bucket sweeps.
type tickHook struct {
	name  string
	every int64 // ticks between runs
	fn    func(nowMs int64)
}

// eventHook consumes the tick's event list after application: the
// relay firehose, the sqlite sink and the per-type counters.
type eventHook struct {
	name string
	fn   func(events []*wire.Message)
}

func (h *Hub) registerHooks() {
	h.hooks = []tickHook{
		{name: "arena", every: 1, fn: h.arena.Tick},
		{name: "battle-timeouts", every: wire.TickRate, fn: h.battles.CheckTimeouts},
		{name: "queue-sweep", every: wire.TickRate, fn: h.queue.Sweep},
		{name: "bet-sweep", every: wire.TickRate, fn: h.sweepBetsLocked},
	}

	h.eventHooks = append(h.eventHooks, eventHook{name: "metrics", fn: countEvents})
	if h.relay != nil {
		h.eventHooks = append(h.eventHooks, eventHook{name: "relay", fn: func(events []*wire.Message) {
			for _, ev := range events {
				h.relay.Publish(ev)
			}
		}})
	}
	if h.store != nil {
		h.eventHooks = append(h.eventHooks, eventHook{name: "store", fn: func(events []*wire.Message) {
			for _, ev := range events {
				h.store.Record(ev)
			}
		}})
	}
}

func countEvents(events []*wire.Message) {
	for _, ev := range events {
		metrics.Events.WithLabelValues(string(ev.Type)).Inc()
	}
}

func (h *Hub) sweepBetsLocked(nowMs int64) {
	for tx, seen := range h.betTx {
		if nowMs-seen > betTxRetentionMs {
			delete(h.betTx, tx)
		}
	}
}

// Run drives the simulation at the nominal rate until ctx is cancelled.
// Deadlines advance by the fixed period so a fast tick does not shorten
// the next one; when the loop falls more than two periods behind it
// re-anchors to the wall clock instead of replaying missed ticks.
func (h *Hub) Run(ctx context.Context) error {
	h.infolog("tick loop started (rate=%dHz room=%s)", wire.TickRate, h.roomName)

	timer := time.NewTimer(tickPeriod)
	defer timer.Stop()
	deadline := time.Now().Add(tickPeriod)

	for {
		select {
		case <-ctx.Done():
			h.infolog("tick loop stopped at tick %d", h.tick)
			return ctx.Err()
		case <-timer.C:
		}

		h.Step()

		now := time.Now()
		deadline = deadline.Add(tickPeriod)
		if now.Sub(deadline) > 2*tickPeriod {
			deadline = now.Add(tickPeriod)
		}
		wait := time.Until(deadline)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Step executes one simulation step. Exported so tests can drive the
// clock by hand instead of sleeping.
func (h *Hub) Step() {
	start := time.Now()

	h.mu.Lock()
	h.tick++
	now := h.nowLocked()

	for _, hk := range h.hooks {
		if h.tick%hk.every == 0 {
			h.runTickHookLocked(hk, now)
		}
	}

	batch := h.queue.Drain()
	for _, msg := range batch {
		h.applyCommandLocked(msg)
	}

	events := h.pending
	h.pending = nil
	for _, eh := range h.eventHooks {
		h.runEventHookLocked(eh, events)
	}

	h.grid.Reset()
	h.world.ForEachPosition(h.grid.Insert)

	for o := range h.observers {
		if o.follow == "" {
			continue
		}
		if p := h.world.Position(o.follow); p != nil {
			o.viewX, o.viewZ = p.X, p.Z
		}
	}

	h.fanOutLocked(events, now)

	metrics.AgentsActive.Set(float64(h.world.AgentCount()))
	metrics.BattlesActive.Set(float64(h.battles.Count()))
	metrics.QueueDepth.Set(float64(h.queue.Len()))
	metrics.Observers.Set(float64(len(h.observers)))
	tick := h.tick
	h.mu.Unlock()

	elapsed := time.Since(start)
	metrics.TickDuration.Observe(elapsed.Seconds())
	if elapsed > tickPeriod {
		metrics.SlowTicks.Inc()
		h.slowStreak++
		h.errlog("tick %d slow: %s (commands=%d streak=%d)", tick, elapsed, len(batch), h.slowStreak)
	} else {
		h.slowStreak = 0
	}
}

// applyCommandLocked folds one drained command into the world. A panic
// here is a bug in apply, not a reason to stall the simulation: log it
// with enough context to reproduce and keep going.
func (h *Hub) applyCommandLocked(msg *wire.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.errlog("tick %d: apply %s from %s panicked: %v", h.tick, msg.Type, msg.AgentID, r)
		}
	}()
	h.emitLocked(msg)
}

func (h *Hub) runTickHookLocked(hk tickHook, nowMs int64) {
	defer func() {
		if r := recover(); r != nil {
			h.errlog("tick %d: hook %s panicked: %v", h.tick, hk.name, r)
		}
	}()
	hk.fn(nowMs)
}

func (h *Hub) runEventHookLocked(eh eventHook, events []*wire.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.errlog("tick %d: event hook %s panicked: %v", h.tick, eh.name, r)
		}
	}()
	eh.fn(events)
}

// Tick returns the current tick counter.
func (h *Hub) Tick() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tick
}
