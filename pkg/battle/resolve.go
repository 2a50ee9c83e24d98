package battle

import (
	"math"

	"agentarena/pkg/wire"
)

// --- Combat Tables ---

// staminaCost of each intent. Guard costs nothing and recovers instead.
var staminaCost = map[wire.Intent]int{
	wire.IntentStrike:   20,
	wire.IntentFeint:    15,
	wire.IntentApproach: 5,
	wire.IntentRetreat:  10,
	wire.IntentGuard:    0,
}

const guardRecovery = 10

// baseDamage[attacker][defender]. Guard and retreat deal nothing.
var baseDamage = map[wire.Intent]map[wire.Intent]int{
	wire.IntentStrike: {
		wire.IntentGuard: 10, wire.IntentStrike: 18, wire.IntentFeint: 28,
		wire.IntentRetreat: 30, wire.IntentApproach: 22,
	},
	wire.IntentFeint: {
		wire.IntentGuard: 10, wire.IntentStrike: 14, wire.IntentFeint: 14,
		wire.IntentRetreat: 22, wire.IntentApproach: 14,
	},
	wire.IntentApproach: {
		wire.IntentGuard: 4, wire.IntentStrike: 4, wire.IntentFeint: 4,
		wire.IntentRetreat: 12, wire.IntentApproach: 4,
	},
	wire.IntentGuard:   {},
	wire.IntentRetreat: {},
}

const readBonus = 5

// --- Intent Submission ---

// SubmitResult reports what an intent submission did.
type SubmitResult struct {
	BattleID string
	Intent   wire.Intent // the intent actually booked, after any downgrade
	Forced   bool        // true when stamina forced a guard
	Resolved bool        // true when this submission completed the turn
}

// SubmitIntent books one agent's intent for the current turn. When both
// sides have submitted, the turn resolves immediately.
func (m *Manager) SubmitIntent(agentID, battleID string, intent wire.Intent) (*SubmitResult, *wire.CommandError) {
	rec := m.get(battleID)
	if rec == nil {
		return nil, wire.Reject(wire.ErrBattleNotFound)
	}
	if !rec.has(agentID) {
		return nil, wire.Reject(wire.ErrNotParticipant)
	}
	if !wire.ValidIntent(string(intent)) {
		return nil, wire.RejectHint(wire.ErrInvalidIntent, "intent must be approach, strike, guard, feint or retreat")
	}
	if _, dup := rec.Intents[agentID]; dup {
		return nil, wire.Reject(wire.ErrAlreadySubmitted)
	}
	if (intent == wire.IntentStrike || intent == wire.IntentFeint) && m.deps.HasRefused(agentID) {
		return nil, wire.Reject(wire.ErrRefusedViolence)
	}

	forced := false
	if staminaCost[intent] > rec.Stamina[agentID] {
		intent = wire.IntentGuard
		forced = true
	}
	rec.Intents[agentID] = intent
	rec.forced[agentID] = forced
	rec.UpdatedAt = m.deps.Now()

	res := &SubmitResult{BattleID: battleID, Intent: intent, Forced: forced}
	if len(rec.Intents) < 2 {
		ev := &wire.BattleEvent{
			Phase:        wire.BattleIntent,
			BattleID:     rec.ID,
			Participants: rec.Participants[:],
			Turn:         rec.Turn,
		}
		if forced {
			ev.Forced = []string{agentID}
		}
		m.deps.Emit(&wire.Message{Type: wire.TypeBattle, AgentID: agentID, Timestamp: rec.UpdatedAt, Battle: ev})
		return res, nil
	}
	m.resolveTurn(rec, nil)
	res.Resolved = true
	return res, nil
}

// --- Turn Resolution ---

// resolveTurn applies stamina, momentum reads and damage, then evaluates
// end conditions. timedOut carries ids whose guard was assigned by the
// timeout scan, for the round report.
func (m *Manager) resolveTurn(rec *Record, timedOut []string) {
	a, b := rec.Participants[0], rec.Participants[1]
	ia, ib := rec.Intents[a], rec.Intents[b]
	now := m.deps.Now()

	// Stamina first: guard recovers, everything else burns.
	for id, intent := range rec.Intents {
		if intent == wire.IntentGuard {
			rec.Stamina[id] = minInt(100, rec.Stamina[id]+guardRecovery)
		} else {
			rec.Stamina[id] = maxInt(0, rec.Stamina[id]-staminaCost[intent])
		}
	}

	dmgA, bonusA := m.damageFrom(rec, a, ia, b, ib)
	dmgB, bonusB := m.damageFrom(rec, b, ib, a, ia)

	rec.HP[b] = maxInt(0, rec.HP[b]-dmgA)
	rec.HP[a] = maxInt(0, rec.HP[a]-dmgB)
	rec.PrevIntents = map[string]wire.Intent{a: ia, b: ib}
	rec.UpdatedAt = now

	forced := forcedList(rec)
	ev := &wire.BattleEvent{
		Phase:        wire.BattleRound,
		BattleID:     rec.ID,
		Participants: rec.Participants[:],
		Turn:         rec.Turn,
		HP:           copyInts(rec.HP),
		Stamina:      copyInts(rec.Stamina),
		Intents:      map[string]wire.Intent{a: ia, b: ib},
		Damage:       map[string]int{a: dmgA, b: dmgB},
		Forced:       forced,
		TimedOut:     timedOut,
	}
	if bonusA > 0 || bonusB > 0 {
		ev.ReadBonus = map[string]int{}
		if bonusA > 0 {
			ev.ReadBonus[a] = bonusA
		}
		if bonusB > 0 {
			ev.ReadBonus[b] = bonusB
		}
	}
	m.deps.Emit(&wire.Message{Type: wire.TypeBattle, AgentID: a, Timestamp: now, Battle: ev})

	if m.checkEnd(rec, ia, ib) {
		return
	}
	rec.Turn++
	rec.Intents = make(map[string]wire.Intent)
	rec.forced = make(map[string]bool)
	rec.TurnStartedAt = now
}

// damageFrom computes the attacker's outgoing damage for this turn: matrix
// base scaled by power and rounded (never below 1 when the base is
// positive), plus the flat momentum read when the defender repeated their
// previous intent.
func (m *Manager) damageFrom(rec *Record, attacker string, atkIntent wire.Intent, defender string, defIntent wire.Intent) (dmg, bonus int) {
	base := baseDamage[atkIntent][defIntent]
	if base <= 0 {
		return 0, 0
	}
	dmg = int(math.Round(float64(base) * rec.Power[attacker]))
	if dmg < 1 {
		dmg = 1
	}
	if prev, ok := rec.PrevIntents[defender]; ok && prev == defIntent {
		bonus = readBonus
		dmg += bonus
	}
	return dmg, bonus
}

func forcedList(rec *Record) []string {
	var out []string
	for _, id := range rec.Participants {
		if rec.forced[id] {
			out = append(out, id)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
