package world

import (
	"math"
	"math/rand"
	"time"

	"agentarena/pkg/wire"
)

// spawner picks join positions. Explicit finite coordinates are clamped to
// the island interior; otherwise it samples the spawn disc, avoiding other
// agents, short-lived reservations and obstacles.
type spawner struct {
	reservations []reservation
}

type reservation struct {
	x, z      float64
	expiresAt int64
}

func newSpawner() *spawner { return &spawner{} }

func (sp *spawner) choose(msg *wire.Message, positions map[string]*wire.AgentPosition, obstacles []wire.Obstacle) wire.AgentPosition {
	nowMs := time.Now().UnixMilli()
	sp.prune(nowMs)

	if msg.X != nil && msg.Z != nil && msg.Rotation != nil &&
		finite(*msg.X) && finite(*msg.Z) && finite(*msg.Rotation) {
		limit := float64(wire.HalfWorld) - wire.SpawnMargin
		return wire.AgentPosition{
			X:        clamp(*msg.X, -limit, limit),
			Z:        clamp(*msg.Z, -limit, limit),
			Rotation: *msg.Rotation,
		}
	}

	for i := 0; i < wire.SpawnAttempts; i++ {
		r := wire.SpawnRadius * math.Sqrt(rand.Float64())
		theta := 2 * math.Pi * rand.Float64()
		x := r * math.Cos(theta)
		z := r * math.Sin(theta)
		if sp.blocked(x, z, positions, obstacles) {
			continue
		}
		sp.reserve(x, z, nowMs)
		return wire.AgentPosition{X: x, Z: z, Rotation: 2 * math.Pi * rand.Float64()}
	}

	// Crowded: fall back to an annulus around the origin.
	r := 12 + 10*rand.Float64()
	theta := 2 * math.Pi * rand.Float64()
	x, z := r*math.Cos(theta), r*math.Sin(theta)
	sp.reserve(x, z, nowMs)
	return wire.AgentPosition{X: x, Z: z, Rotation: 2 * math.Pi * rand.Float64()}
}

func (sp *spawner) blocked(x, z float64, positions map[string]*wire.AgentPosition, obstacles []wire.Obstacle) bool {
	minGap2 := wire.SpawnMinGap * wire.SpawnMinGap
	for _, p := range positions {
		dx, dz := x-p.X, z-p.Z
		if dx*dx+dz*dz < minGap2 {
			return true
		}
	}
	for _, rsv := range sp.reservations {
		dx, dz := x-rsv.x, z-rsv.z
		if dx*dx+dz*dz < minGap2 {
			return true
		}
	}
	for _, ob := range obstacles {
		dx, dz := x-ob.X, z-ob.Z
		min := ob.Radius + 1.2
		if dx*dx+dz*dz < min*min {
			return true
		}
	}
	return false
}

func (sp *spawner) reserve(x, z float64, nowMs int64) {
	sp.reservations = append(sp.reservations, reservation{x: x, z: z, expiresAt: nowMs + wire.ReservationMs})
}

func (sp *spawner) prune(nowMs int64) {
	kept := sp.reservations[:0]
	for _, r := range sp.reservations {
		if r.expiresAt > nowMs {
			kept = append(kept, r)
		}
	}
	sp.reservations = kept
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
