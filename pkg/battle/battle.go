// Package battle runs the turn-based duels. Each battle is a small state
// machine over simultaneous intent submission: both sides pick an intent,
// the turn resolves damage and stamina, and end conditions are checked in a
// fixed order. The manager holds no locks of its own; every call is
// serialized by the simulation hub.
package battle

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"agentarena/pkg/wire"
)

// Deps supplies the world facts battles depend on. The hub wires these to
// the other engine components so this package never imports them.
type Deps struct {
	Now           func() int64
	Position      func(agentID string) *wire.AgentPosition
	Kills         func(agentID string) int
	HasRefused    func(agentID string) bool
	Allied        func(a, b string) bool
	CombatAllowed func() *wire.CommandError
	Emit          func(msg *wire.Message)
	OnEnd         func(o Outcome)
}

// Record is one active duel.
type Record struct {
	ID             string
	Participants   [2]string
	HP             map[string]int
	Stamina        map[string]int
	Power          map[string]float64
	Turn           int
	Intents        map[string]wire.Intent
	PrevIntents    map[string]wire.Intent
	forced         map[string]bool
	TruceProposals map[string]struct{}
	TurnStartedAt  int64
	StartedAt      int64
	UpdatedAt      int64
}

func (r *Record) opponent(agentID string) string {
	if r.Participants[0] == agentID {
		return r.Participants[1]
	}
	return r.Participants[0]
}

func (r *Record) has(agentID string) bool {
	return r.Participants[0] == agentID || r.Participants[1] == agentID
}

// Outcome describes a finished battle for the hub's side effects.
type Outcome struct {
	BattleID     string
	Participants [2]string
	Reason       wire.EndReason
	WinnerID     string
	LoserID      string
	DefeatedIDs  []string
	Summary      string
	EndedAt      int64
}

type Manager struct {
	deps    Deps
	battles map[string]*Record
	byAgent map[string]string // agent id -> battle id
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:    deps,
		battles: make(map[string]*Record),
		byAgent: make(map[string]string),
	}
}

// --- Start ---

// Start opens a duel between two agents after checking every precondition.
func (m *Manager) Start(agentID, targetID string) (*Record, *wire.CommandError) {
	if agentID == "" || targetID == "" || agentID == targetID {
		return nil, wire.RejectHint(wire.ErrInvalidArgs, "need two distinct agents")
	}
	pa := m.deps.Position(agentID)
	if pa == nil {
		return nil, wire.RejectHint(wire.ErrUnknownAgent, "agent is not in the world")
	}
	pb := m.deps.Position(targetID)
	if pb == nil {
		return nil, wire.RejectHint(wire.ErrUnknownTarget, "target is not in the world")
	}
	if _, fighting := m.byAgent[agentID]; fighting {
		return nil, wire.RejectHint(wire.ErrAgentInBattle, "finish your current battle first")
	}
	if _, fighting := m.byAgent[targetID]; fighting {
		return nil, wire.RejectHint(wire.ErrAgentInBattle, "target is already in a battle")
	}
	dx, dz := pa.X-pb.X, pa.Z-pb.Z
	dist := math.Sqrt(dx*dx + dz*dz)
	if dist > wire.BattleStartRange {
		return nil, wire.RejectHint(wire.ErrTooFar,
			fmt.Sprintf("too far: %.1f > %d", dist, wire.BattleStartRange))
	}
	if err := m.deps.CombatAllowed(); err != nil {
		return nil, err
	}
	if m.deps.HasRefused(agentID) || m.deps.HasRefused(targetID) {
		return nil, wire.Reject(wire.ErrRefusedViolence)
	}
	if m.deps.Allied(agentID, targetID) {
		return nil, wire.Reject(wire.ErrCannotAttackAlly)
	}

	now := m.deps.Now()
	rec := &Record{
		ID:           uuid.NewString(),
		Participants: [2]string{agentID, targetID},
		HP:           map[string]int{agentID: 100, targetID: 100},
		Stamina:      map[string]int{agentID: 100, targetID: 100},
		Power: map[string]float64{
			agentID:  powerFor(m.deps.Kills(agentID)),
			targetID: powerFor(m.deps.Kills(targetID)),
		},
		Turn:           1,
		Intents:        make(map[string]wire.Intent),
		PrevIntents:    make(map[string]wire.Intent),
		forced:         make(map[string]bool),
		TruceProposals: make(map[string]struct{}),
		TurnStartedAt:  now,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	m.battles[rec.ID] = rec
	m.byAgent[agentID] = rec.ID
	m.byAgent[targetID] = rec.ID

	m.deps.Emit(&wire.Message{
		Type:      wire.TypeBattle,
		AgentID:   agentID,
		Timestamp: now,
		Battle: &wire.BattleEvent{
			Phase:        wire.BattleStarted,
			BattleID:     rec.ID,
			Participants: rec.Participants[:],
			Turn:         rec.Turn,
			HP:           copyInts(rec.HP),
			Stamina:      copyInts(rec.Stamina),
			Power:        copyFloats(rec.Power),
		},
	})
	return rec, nil
}

// powerFor maps lifetime kills onto the damage multiplier.
func powerFor(kills int) float64 {
	p := 1 + 0.03*float64(kills)
	if p < 1.0 {
		p = 1.0
	}
	if p > 1.5 {
		p = 1.5
	}
	return p
}

// --- Lookups ---

func (m *Manager) InBattle(agentID string) (string, bool) {
	id, ok := m.byAgent[agentID]
	return id, ok
}

// Reset drops every active battle without emitting events. Used by the
// round reset.
func (m *Manager) Reset() {
	m.battles = make(map[string]*Record)
	m.byAgent = make(map[string]string)
}

func (m *Manager) Count() int { return len(m.battles) }

func (m *Manager) get(battleID string) *Record { return m.battles[battleID] }

// StateOf returns an observer-facing copy of one battle.
func (m *Manager) StateOf(battleID string) *wire.BattleState {
	rec := m.battles[battleID]
	if rec == nil {
		return nil
	}
	return recState(rec)
}

// ActiveStates lists every running battle, oldest first.
func (m *Manager) ActiveStates() []wire.BattleState {
	out := make([]wire.BattleState, 0, len(m.battles))
	for _, rec := range m.battles {
		out = append(out, *recState(rec))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartedAt < out[j-1].StartedAt; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func recState(rec *Record) *wire.BattleState {
	return &wire.BattleState{
		BattleID:      rec.ID,
		Participants:  append([]string(nil), rec.Participants[:]...),
		HP:            copyInts(rec.HP),
		Stamina:       copyInts(rec.Stamina),
		Turn:          rec.Turn,
		TurnStartedAt: rec.TurnStartedAt,
		StartedAt:     rec.StartedAt,
	}
}

func copyInts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
