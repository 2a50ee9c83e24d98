package arena

import (
	"fmt"
	"strings"

	"agentarena/pkg/wire"
)

// --- Survival Contract ---

// SurvivalState returns a copy with the refusal list filled in from the
// registry.
func (a *Arena) SurvivalState() wire.SurvivalState {
	sv := a.survival
	sv.RefusalAgentIDs = a.deps.RefusalIDs()
	if sv.RefusalAgentIDs == nil {
		sv.RefusalAgentIDs = []string{}
	}
	sv.WinnerAgentIDs = append([]string(nil), a.survival.WinnerAgentIDs...)
	return sv
}

// StartRound opens the round: combat becomes possible subject to phase.
// durationMs <= 0 means no timer; the round runs until attrition settles it.
func (a *Arena) StartRound(durationMs int64, prizePoolUsd float64, nowMs int64) wire.SurvivalState {
	a.survival = wire.SurvivalState{
		Status:         wire.SurvivalActive,
		PrizePoolUsd:   prizePoolUsd,
		RoundStartedAt: nowMs,
	}
	if durationMs > 0 {
		a.survival.RoundEndsAt = nowMs + durationMs
		a.survival.RoundDurationMs = durationMs
	}
	a.emitPhase(nowMs)
	return a.SurvivalState()
}

// tickRoundTimer settles the round when its timer expires.
func (a *Arena) tickRoundTimer(nowMs int64) {
	if a.survival.Status != wire.SurvivalActive || a.survival.RoundEndsAt <= 0 {
		return
	}
	if nowMs < a.survival.RoundEndsAt {
		return
	}
	survivors := a.livingNonRefusers()
	a.survival.Status = wire.SurvivalTimerEnded
	a.survival.SettledAt = nowMs
	a.survival.WinnerAgentIDs = survivors
	switch len(survivors) {
	case 0:
		a.survival.Summary = "round timer expired with no eligible survivors"
	case 1:
		a.survival.WinnerAgentID = survivors[0]
		a.survival.Summary = fmt.Sprintf("round timer expired, %s takes the pool", survivors[0])
	default:
		a.survival.Summary = fmt.Sprintf("round timer expired, %d survivors split the pool: %s",
			len(survivors), strings.Join(survivors, ", "))
	}
	a.emitPhase(nowMs)
}

// EndRound settles immediately as if the timer had expired. Admin only.
func (a *Arena) EndRound(nowMs int64) wire.SurvivalState {
	if a.survival.Status == wire.SurvivalActive {
		if a.survival.RoundEndsAt <= 0 || a.survival.RoundEndsAt > nowMs {
			a.survival.RoundEndsAt = nowMs
		}
		a.tickRoundTimer(nowMs)
	}
	return a.SurvivalState()
}

// Reevaluate checks the attrition conditions after a permanent elimination:
// one living non-refuser left wins the pool; none left while refusers
// remain means everyone declined.
func (a *Arena) Reevaluate(nowMs int64) {
	if a.survival.Status != wire.SurvivalActive {
		return
	}
	living := a.livingPresent()
	if len(living) == 0 {
		return
	}
	var nonRefusers []string
	for _, id := range living {
		if !a.deps.HasRefused(id) {
			nonRefusers = append(nonRefusers, id)
		}
	}
	switch {
	case len(nonRefusers) == 1:
		winner := nonRefusers[0]
		a.survival.Status = wire.SurvivalWinner
		a.survival.WinnerAgentID = winner
		a.survival.WinnerAgentIDs = []string{winner}
		a.survival.SettledAt = nowMs
		a.survival.Summary = fmt.Sprintf("%s is the last one standing", winner)
		a.emitPhase(nowMs)
	case len(nonRefusers) == 0:
		a.survival.Status = wire.SurvivalRefused
		a.survival.SettledAt = nowMs
		a.survival.Summary = "every living agent refused the prize"
		a.emitPhase(nowMs)
	}
}

// Reset returns the contract to waiting: revive everyone, clear battles,
// eject all agents, restart the phase cycle.
func (a *Arena) Reset(nowMs int64) wire.SurvivalState {
	a.deps.ResetBattles()
	revived := a.deps.ReviveAll()
	a.deps.EjectAll()
	a.alliances = newAllianceBook()
	a.zone = zoneState{}
	a.survival = wire.SurvivalState{
		Status:  wire.SurvivalWaiting,
		Summary: fmt.Sprintf("round reset, %d profiles revived", revived),
	}
	a.phase.RoundNumber++
	a.transition(wire.PhaseLobby, nowMs)
	return a.SurvivalState()
}

// AfterRefusal runs once a refusal flag changes: the settlement
// conditions may now hold, and observers need the new roster either way.
func (a *Arena) AfterRefusal(nowMs int64) {
	before := a.survival.Status
	a.Reevaluate(nowMs)
	if a.survival.Status == before {
		a.emitPhase(nowMs)
	}
}

// livingPresent lists in-world agents that are not permanently dead.
func (a *Arena) livingPresent() []string {
	var out []string
	for _, id := range a.deps.PresentIDs() {
		if !a.deps.IsPermanentlyDead(id) {
			out = append(out, id)
		}
	}
	return out
}

func (a *Arena) livingNonRefusers() []string {
	var out []string
	for _, id := range a.livingPresent() {
		if !a.deps.HasRefused(id) {
			out = append(out, id)
		}
	}
	return out
}
