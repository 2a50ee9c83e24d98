// Package arena layers the round structure over the world: coarse phases
// that gate combat, the survival contract that settles the prize pool,
// alliances, and the shrinking safe zone of the final phase. Like the
// battle manager it holds no locks; the hub serializes every call.
package arena

import (
	"agentarena/pkg/wire"
)

// Deps are the hub-wired callbacks into the rest of the engine.
type Deps struct {
	Now               func() int64
	Emit              func(msg *wire.Message)
	PresentIDs        func() []string
	IsPermanentlyDead func(agentID string) bool
	HasRefused        func(agentID string) bool
	RefusalIDs        func() []string
	Position          func(agentID string) *wire.AgentPosition
	Eliminate         func(agentID, cause string)
	EjectAll          func()
	ReviveAll         func() int
	ResetBattles      func()
}

// Durations configures the phase timers.
type Durations struct {
	LobbyMs    int64
	BattleMs   int64
	ShowdownMs int64
}

// DefaultDurations is the standard 48h / 72h / 48h round.
func DefaultDurations() Durations {
	const hour = int64(60 * 60 * 1000)
	return Durations{LobbyMs: 48 * hour, BattleMs: 72 * hour, ShowdownMs: 48 * hour}
}

// Alliance size caps per phase. Transitions trim oversized alliances.
var allianceCaps = map[wire.PhaseName]int{
	wire.PhaseLobby:    5,
	wire.PhaseBattle:   3,
	wire.PhaseShowdown: 2,
}

type Arena struct {
	deps      Deps
	durations Durations
	phase     wire.PhaseState
	survival  wire.SurvivalState
	alliances *allianceBook
	zone      zoneState
}

func New(durations Durations, deps Deps) *Arena {
	a := &Arena{
		deps:      deps,
		durations: durations,
		phase: wire.PhaseState{
			Phase:          wire.PhaseLobby,
			SafeZoneRadius: wire.HalfWorld,
			RoundNumber:    1,
		},
		survival:  wire.SurvivalState{Status: wire.SurvivalWaiting},
		alliances: newAllianceBook(),
	}
	a.phase.EndsAt = deps.Now() + durations.LobbyMs
	return a
}

// --- Phase Lifecycle ---

// PhaseState returns a copy of the current phase.
func (a *Arena) PhaseState() wire.PhaseState { return a.phase }

// Tick advances phase timers, the safe zone and the survival round timer.
// Driven once per simulation tick.
func (a *Arena) Tick(nowMs int64) {
	if a.phase.EndsAt > 0 && nowMs >= a.phase.EndsAt {
		switch a.phase.Phase {
		case wire.PhaseLobby:
			a.transition(wire.PhaseBattle, nowMs)
		case wire.PhaseBattle:
			a.transition(wire.PhaseShowdown, nowMs)
		case wire.PhaseShowdown:
			// Terminal until settlement or reset.
			a.phase.EndsAt = 0
		}
	}
	a.tickZone(nowMs)
	a.tickRoundTimer(nowMs)
}

func (a *Arena) transition(next wire.PhaseName, nowMs int64) {
	a.phase.Phase = next
	switch next {
	case wire.PhaseLobby:
		a.phase.EndsAt = nowMs + a.durations.LobbyMs
		a.phase.SafeZoneRadius = wire.HalfWorld
	case wire.PhaseBattle:
		a.phase.EndsAt = nowMs + a.durations.BattleMs
		a.phase.SafeZoneRadius = wire.HalfWorld
	case wire.PhaseShowdown:
		a.phase.EndsAt = nowMs + a.durations.ShowdownMs
		a.startZone(nowMs)
	}
	a.trimAlliances(nowMs)
	a.emitPhase(nowMs)
}

// ForcePhase jumps straight to the named phase. Admin only.
func (a *Arena) ForcePhase(next wire.PhaseName, nowMs int64) bool {
	switch next {
	case wire.PhaseLobby, wire.PhaseBattle, wire.PhaseShowdown:
		a.transition(next, nowMs)
		return true
	}
	return false
}

func (a *Arena) emitPhase(nowMs int64) {
	sv := a.SurvivalState()
	a.deps.Emit(&wire.Message{
		Type:      wire.TypePhase,
		AgentID:   "world",
		Timestamp: nowMs,
		Phase: &wire.PhaseEvent{
			Phase:          a.phase.Phase,
			RoundNumber:    a.phase.RoundNumber,
			EndsAt:         a.phase.EndsAt,
			SafeZoneRadius: a.phase.SafeZoneRadius,
			Survival:       &sv,
		},
	})
}

// --- Gates ---

// CombatGate reports why a duel may not start right now, nil when combat
// is allowed.
func (a *Arena) CombatGate() *wire.CommandError {
	if a.survival.Status != wire.SurvivalActive {
		return wire.RejectHint(wire.ErrSurvivalClosed, "the survival round is not active")
	}
	if !a.phase.Phase.CombatAllowed() {
		return wire.RejectHint(wire.ErrCombatPhaseLocked, "combat unlocks in the battle phase")
	}
	return nil
}

// RegistrationOpen reports whether new agents may register. Settled rounds
// close the door until a reset.
func (a *Arena) RegistrationOpen() bool {
	return a.survival.Status != wire.SurvivalWinner && a.survival.Status != wire.SurvivalRefused
}
