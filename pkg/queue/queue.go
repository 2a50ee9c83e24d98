// Package queue implements the validated admission queue between agent
// transports and the simulation. Enqueue is safe from any goroutine; Drain
// is called once per tick by the simulation loop.
package queue

import (
	"math"
	"sync"

	"agentarena/pkg/wire"
)

type Queue struct {
	mu        sync.Mutex
	pending   []*wire.Message
	capacity  int
	obstacles []wire.Obstacle
	windows   map[string]*rateWindow
	limit     int
	windowMs  int64
	dropped   uint64
}

func New() *Queue {
	return &Queue{
		capacity: wire.QueueCapacity,
		windows:  make(map[string]*rateWindow),
		limit:    wire.AgentRateLimit,
		windowMs: 1000,
	}
}

// SetObstacles installs the static world geometry. Called once at startup,
// before the queue accepts traffic.
func (q *Queue) SetObstacles(obs []wire.Obstacle) {
	q.mu.Lock()
	q.obstacles = obs
	q.mu.Unlock()
}

// Enqueue validates the message and appends it to the pending batch.
// A nil return means accepted; otherwise the error names the reason and
// nothing was mutated except the rate window bookkeeping.
func (q *Queue) Enqueue(msg *wire.Message) *wire.CommandError {
	if msg == nil || msg.AgentID == "" {
		return wire.Reject(wire.ErrInvalidAgentID)
	}
	if msg.Timestamp <= 0 {
		return wire.Reject(wire.ErrInvalidTimestamp)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if msg.Type.RateLimited() {
		if over, retry := q.overLimit(msg.AgentID, msg.Timestamp); over {
			return &wire.CommandError{Token: wire.ErrRateLimited, RetryAfterMs: retry}
		}
	}
	if err := q.validate(msg); err != nil {
		return err
	}
	if len(q.pending) >= q.capacity {
		q.dropped++
		return wire.Reject(wire.ErrQueueFull)
	}
	q.pending = append(q.pending, msg)
	if msg.Type.RateLimited() {
		q.record(msg.AgentID, msg.Timestamp)
	}
	return nil
}

func (q *Queue) validate(msg *wire.Message) *wire.CommandError {
	switch msg.Type {
	case wire.TypePosition:
		return q.validatePosition(msg)
	case wire.TypeChat, wire.TypeWhisper:
		if msg.Text == "" {
			return wire.Reject(wire.ErrInvalidText)
		}
		if len([]rune(msg.Text)) > wire.MaxChatLength {
			return wire.Reject(wire.ErrTextTooLong)
		}
	}
	return nil
}

func (q *Queue) validatePosition(msg *wire.Message) *wire.CommandError {
	if msg.X == nil || msg.Z == nil {
		return wire.Reject(wire.ErrInvalidPosition)
	}
	x, z := *msg.X, *msg.Z
	if !finite(x) || !finite(z) {
		return wire.Reject(wire.ErrInvalidPosition)
	}
	if msg.Y != nil && !finite(*msg.Y) {
		return wire.Reject(wire.ErrInvalidPosition)
	}
	if msg.Rotation != nil && !finite(*msg.Rotation) {
		return wire.Reject(wire.ErrInvalidPosition)
	}
	if math.Abs(x) > wire.HalfWorld || math.Abs(z) > wire.HalfWorld {
		return wire.Reject(wire.ErrOutOfBounds)
	}
	for _, ob := range q.obstacles {
		dx, dz := x-ob.X, z-ob.Z
		min := ob.Radius + 1.0
		if dx*dx+dz*dz < min*min {
			return wire.Reject(wire.ErrCollision)
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Drain returns the pending batch in enqueue order and clears it.
func (q *Queue) Drain() []*wire.Message {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	return batch
}

// PruneAgent drops the agent's queued messages and rate bookkeeping.
func (q *Queue) PruneAgent(agentID string) {
	q.mu.Lock()
	kept := q.pending[:0]
	for _, m := range q.pending {
		if m.AgentID != agentID {
			kept = append(kept, m)
		}
	}
	q.pending = kept
	delete(q.windows, agentID)
	q.mu.Unlock()
}

// Sweep evicts rate buckets idle longer than the stale cutoff. Driven by a
// tick hook, roughly once per second.
func (q *Queue) Sweep(nowMs int64) {
	q.mu.Lock()
	for id, w := range q.windows {
		if nowMs-w.lastTouch > wire.RateBucketIdleMs {
			delete(q.windows, id)
		}
	}
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	n := len(q.pending)
	q.mu.Unlock()
	return n
}

// Dropped returns the number of messages rejected for capacity.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	n := q.dropped
	q.mu.Unlock()
	return n
}
