package arena

import (
	"math"

	"agentarena/pkg/wire"
)

// --- Safe Zone ---

// The showdown phase shrinks a circular safe zone around the origin.
// Agents caught outside accrue zone damage on a fixed cadence until they
// are eliminated.
const (
	zoneFinalRadius   = 30.0
	zoneDamagePerTick = 5
	zoneSweepMs       = 5_000
	zoneDeathAt       = 100
)

type zoneState struct {
	active      bool
	startedAt   int64
	duration    int64
	lastSweepAt int64
	damage      map[string]int
}

func (a *Arena) startZone(nowMs int64) {
	a.zone = zoneState{
		active:      true,
		startedAt:   nowMs,
		duration:    a.durations.ShowdownMs,
		lastSweepAt: nowMs,
		damage:      make(map[string]int),
	}
	a.phase.SafeZoneRadius = wire.HalfWorld
	a.emitTerritory(nowMs)
}

func (a *Arena) tickZone(nowMs int64) {
	if !a.zone.active || a.phase.Phase != wire.PhaseShowdown {
		return
	}
	a.phase.SafeZoneRadius = a.radiusAt(nowMs)
	if nowMs-a.zone.lastSweepAt < zoneSweepMs {
		return
	}
	a.zone.lastSweepAt = nowMs
	a.emitTerritory(nowMs)
	a.sweepZone(nowMs)
}

// radiusAt interpolates linearly from the full island down to the final
// circle across the showdown duration.
func (a *Arena) radiusAt(nowMs int64) float64 {
	if a.zone.duration <= 0 {
		return zoneFinalRadius
	}
	frac := float64(nowMs-a.zone.startedAt) / float64(a.zone.duration)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return wire.HalfWorld - (wire.HalfWorld-zoneFinalRadius)*frac
}

func (a *Arena) sweepZone(nowMs int64) {
	radius := a.phase.SafeZoneRadius
	for _, id := range a.deps.PresentIDs() {
		if a.deps.IsPermanentlyDead(id) {
			continue
		}
		pos := a.deps.Position(id)
		if pos == nil {
			continue
		}
		if math.Sqrt(pos.X*pos.X+pos.Z*pos.Z) <= radius {
			continue
		}
		a.zone.damage[id] += zoneDamagePerTick
		total := a.zone.damage[id]
		eliminated := total >= zoneDeathAt
		a.deps.Emit(&wire.Message{
			Type:      wire.TypeZoneDamage,
			AgentID:   id,
			Timestamp: nowMs,
			ZoneDamage: &wire.ZoneDamageEvent{
				Damage:      zoneDamagePerTick,
				Accumulated: total,
				Radius:      radius,
				Eliminated:  eliminated,
			},
		})
		if eliminated {
			a.deps.Eliminate(id, "zone")
		}
	}
}

func (a *Arena) emitTerritory(nowMs int64) {
	a.deps.Emit(&wire.Message{
		Type:      wire.TypeTerritory,
		AgentID:   "world",
		Timestamp: nowMs,
		Territory: &wire.TerritoryEvent{CenterX: 0, CenterZ: 0, Radius: a.phase.SafeZoneRadius},
	})
}
