package battle

import (
	"fmt"

	"agentarena/pkg/wire"
)

// --- End Conditions ---

// checkEnd evaluates the fixed-order termination rules after a resolved
// turn. Returns true when the battle was closed.
func (m *Manager) checkEnd(rec *Record, ia, ib wire.Intent) bool {
	a, b := rec.Participants[0], rec.Participants[1]
	switch {
	case ia == wire.IntentRetreat && ib == wire.IntentRetreat:
		m.finish(rec, Outcome{
			Reason:  wire.EndDraw,
			Summary: fmt.Sprintf("%s and %s both withdrew on turn %d", a, b, rec.Turn),
		})
		return true
	case ia == wire.IntentRetreat || ib == wire.IntentRetreat:
		runner := a
		if ib == wire.IntentRetreat {
			runner = b
		}
		m.finish(rec, Outcome{
			Reason:  wire.EndFlee,
			Summary: fmt.Sprintf("%s fled on turn %d", runner, rec.Turn),
		})
		return true
	case rec.HP[a] <= 0 && rec.HP[b] <= 0:
		m.finish(rec, Outcome{
			Reason:      wire.EndDraw,
			DefeatedIDs: []string{a, b},
			Summary:     fmt.Sprintf("%s and %s fell together on turn %d", a, b, rec.Turn),
		})
		return true
	case rec.HP[a] <= 0:
		m.finish(rec, Outcome{
			Reason: wire.EndKO, WinnerID: b, LoserID: a, DefeatedIDs: []string{a},
			Summary: fmt.Sprintf("%s knocked out %s on turn %d", b, a, rec.Turn),
		})
		return true
	case rec.HP[b] <= 0:
		m.finish(rec, Outcome{
			Reason: wire.EndKO, WinnerID: a, LoserID: b, DefeatedIDs: []string{b},
			Summary: fmt.Sprintf("%s knocked out %s on turn %d", a, b, rec.Turn),
		})
		return true
	}
	return false
}

// finish emits the ended event, removes the record and hands the outcome to
// the hub for death bookkeeping and survival re-evaluation.
func (m *Manager) finish(rec *Record, o Outcome) {
	o.BattleID = rec.ID
	o.Participants = rec.Participants
	o.EndedAt = m.deps.Now()

	delete(m.battles, rec.ID)
	delete(m.byAgent, rec.Participants[0])
	delete(m.byAgent, rec.Participants[1])

	m.deps.Emit(&wire.Message{
		Type:      wire.TypeBattle,
		AgentID:   rec.Participants[0],
		Timestamp: o.EndedAt,
		Battle: &wire.BattleEvent{
			Phase:        wire.BattleEnded,
			BattleID:     rec.ID,
			Participants: rec.Participants[:],
			Turn:         rec.Turn,
			HP:           copyInts(rec.HP),
			Reason:       o.Reason,
			WinnerID:     o.WinnerID,
			LoserID:      o.LoserID,
			DefeatedIDs:  o.DefeatedIDs,
			Summary:      o.Summary,
		},
	})
	if m.deps.OnEnd != nil {
		m.deps.OnEnd(o)
	}
}

// --- Truce, Surrender, Disconnect ---

// ProposeTruce registers a truce offer. The battle ends peacefully once
// both sides have proposed; offers persist across turns.
func (m *Manager) ProposeTruce(agentID, battleID string) (accepted bool, err *wire.CommandError) {
	rec := m.get(battleID)
	if rec == nil {
		return false, wire.Reject(wire.ErrBattleNotFound)
	}
	if !rec.has(agentID) {
		return false, wire.Reject(wire.ErrNotParticipant)
	}
	other := rec.opponent(agentID)
	rec.TruceProposals[agentID] = struct{}{}
	if _, ok := rec.TruceProposals[other]; ok {
		m.finish(rec, Outcome{
			Reason:  wire.EndTruce,
			Summary: fmt.Sprintf("%s and %s agreed to a truce on turn %d", rec.Participants[0], rec.Participants[1], rec.Turn),
		})
		return true, nil
	}
	m.deps.Emit(&wire.Message{
		Type:      wire.TypeBattle,
		AgentID:   agentID,
		Timestamp: m.deps.Now(),
		Battle: &wire.BattleEvent{
			Phase:        wire.BattleIntent,
			BattleID:     rec.ID,
			Participants: rec.Participants[:],
			Turn:         rec.Turn,
			TruceBy:      agentID,
		},
	})
	return false, nil
}

// Surrender concedes the battle to the opponent.
func (m *Manager) Surrender(agentID, battleID string) *wire.CommandError {
	rec := m.get(battleID)
	if rec == nil {
		return wire.Reject(wire.ErrBattleNotFound)
	}
	if !rec.has(agentID) {
		return wire.Reject(wire.ErrNotParticipant)
	}
	winner := rec.opponent(agentID)
	m.finish(rec, Outcome{
		Reason: wire.EndSurrender, WinnerID: winner, LoserID: agentID,
		Summary: fmt.Sprintf("%s surrendered to %s on turn %d", agentID, winner, rec.Turn),
	})
	return nil
}

// HandleAgentLeave closes the agent's battle, if any, in the opponent's
// favor. Called when a leave message is applied.
func (m *Manager) HandleAgentLeave(agentID string) {
	battleID, ok := m.byAgent[agentID]
	if !ok {
		return
	}
	rec := m.get(battleID)
	if rec == nil {
		return
	}
	winner := rec.opponent(agentID)
	m.finish(rec, Outcome{
		Reason: wire.EndDisconnect, WinnerID: winner, LoserID: agentID,
		Summary: fmt.Sprintf("%s disconnected, %s takes the battle", agentID, winner),
	})
}

// --- Timeouts ---

// CheckTimeouts assigns guard to every missing intent in battles whose turn
// has run past the deadline, then resolves those turns. Driven by a tick
// hook roughly once per second.
func (m *Manager) CheckTimeouts(nowMs int64) {
	var expired []*Record
	for _, rec := range m.battles {
		if nowMs-rec.TurnStartedAt >= wire.TurnTimeoutMs {
			expired = append(expired, rec)
		}
	}
	for _, rec := range expired {
		var timedOut []string
		for _, id := range rec.Participants {
			if _, ok := rec.Intents[id]; !ok {
				rec.Intents[id] = wire.IntentGuard
				timedOut = append(timedOut, id)
			}
		}
		if len(timedOut) == 0 {
			continue
		}
		m.deps.Emit(&wire.Message{
			Type:      wire.TypeBattle,
			AgentID:   timedOut[0],
			Timestamp: nowMs,
			Battle: &wire.BattleEvent{
				Phase:        wire.BattleIntent,
				BattleID:     rec.ID,
				Participants: rec.Participants[:],
				Turn:         rec.Turn,
				TimedOut:     timedOut,
			},
		})
		m.resolveTurn(rec, timedOut)
	}
}
