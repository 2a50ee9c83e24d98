// Package world is the authoritative store for live agent state: positions,
// current actions and the recent event history ring. All mutation happens on
// the simulation tick via Apply; transports never touch it directly.
package world

import (
	"fmt"

	"agentarena/pkg/registry"
	"agentarena/pkg/wire"
)

type State struct {
	positions map[string]*wire.AgentPosition
	actions   map[string]string
	ring      *eventRing
	reg       *registry.Registry
	obstacles []wire.Obstacle
	spawner   *spawner
}

func New(reg *registry.Registry) *State {
	return &State{
		positions: make(map[string]*wire.AgentPosition),
		actions:   make(map[string]string),
		ring:      newEventRing(wire.EventRingSize),
		reg:       reg,
		spawner:   newSpawner(),
	}
}

// SetObstacles installs static geometry used by spawn selection.
func (s *State) SetObstacles(obs []wire.Obstacle) {
	s.obstacles = obs
}

// Apply folds one validated message into world state. Position and action
// messages update transient per-agent state; every other kind is recorded
// in the event ring for late joiners.
func (s *State) Apply(msg *wire.Message) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}
	switch msg.Type {
	case wire.TypePosition:
		s.applyPosition(msg)
	case wire.TypeAction:
		s.actions[msg.AgentID] = msg.Action
		s.reg.Touch(msg.AgentID, msg.Timestamp)
	case wire.TypeJoin:
		s.applyJoin(msg)
		s.ring.push(msg)
	case wire.TypeLeave:
		delete(s.positions, msg.AgentID)
		delete(s.actions, msg.AgentID)
		s.ring.push(msg)
	case wire.TypeProfile:
		s.reg.Merge(msg.AgentID, msg.Profile, msg.Timestamp)
		s.ring.push(msg)
	case wire.TypeChat, wire.TypeEmote:
		s.reg.Touch(msg.AgentID, msg.Timestamp)
		s.ring.push(msg)
	case wire.TypeBattle:
		if msg.Battle != nil {
			for _, id := range msg.Battle.Participants {
				s.reg.Touch(id, msg.Timestamp)
			}
		}
		s.ring.push(msg)
	default:
		// whisper, alliance, phase, territory, bet, zone_damage
		s.ring.push(msg)
	}
	return nil
}

func (s *State) applyPosition(msg *wire.Message) {
	pos := &wire.AgentPosition{
		AgentID:   msg.AgentID,
		X:         *msg.X,
		Z:         *msg.Z,
		Timestamp: msg.Timestamp,
	}
	if msg.Y != nil {
		pos.Y = *msg.Y
	}
	if msg.Rotation != nil {
		pos.Rotation = *msg.Rotation
	}
	s.positions[msg.AgentID] = pos
	s.reg.Touch(msg.AgentID, msg.Timestamp)
}

func (s *State) applyJoin(msg *wire.Message) {
	s.reg.Merge(msg.AgentID, msg.Profile, msg.Timestamp)
	if _, ok := s.positions[msg.AgentID]; !ok {
		pos := s.spawner.choose(msg, s.positions, s.obstacles)
		pos.AgentID = msg.AgentID
		pos.Timestamp = msg.Timestamp
		s.positions[msg.AgentID] = &pos
	}
	if _, ok := s.actions[msg.AgentID]; !ok {
		s.actions[msg.AgentID] = "idle"
	}
}

// --- Accessors ---

func (s *State) Position(agentID string) *wire.AgentPosition {
	p := s.positions[agentID]
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func (s *State) HasPosition(agentID string) bool {
	_, ok := s.positions[agentID]
	return ok
}

func (s *State) Action(agentID string) string { return s.actions[agentID] }

func (s *State) AgentCount() int { return len(s.positions) }

// ForEachPosition visits every live position. Used for the per-tick grid
// rebuild and the zone sweep.
func (s *State) ForEachPosition(visit func(id string, x, z float64)) {
	for id, p := range s.positions {
		visit(id, p.X, p.Z)
	}
}

// PresentIDs returns ids currently in world, unordered.
func (s *State) PresentIDs() []string {
	out := make([]string, 0, len(s.positions))
	for id := range s.positions {
		out = append(out, id)
	}
	return out
}

// Snapshot joins recently seen profiles with live positions and actions.
func (s *State) Snapshot(nowMs int64) []wire.SnapshotAgent {
	ids := s.reg.SeenWithin(nowMs, wire.OnlineWindowMs)
	out := make([]wire.SnapshotAgent, 0, len(ids))
	for _, id := range ids {
		p := s.reg.Get(id)
		if p == nil {
			continue
		}
		row := wire.SnapshotAgent{Profile: *p}
		if pos := s.positions[id]; pos != nil {
			cp := *pos
			row.Position = &cp
		}
		if a := s.actions[id]; a != "" {
			row.Action = a
		}
		out = append(out, row)
	}
	return out
}

// Events returns ring events newer than sinceTs, oldest first, clamped to
// limit. Whispers are only visible to their sender and target, so forAgent
// scopes the scan; pass "" for an observer-side scan that skips them.
func (s *State) Events(sinceTs int64, limit int, forAgent string) []*wire.Message {
	return s.ring.scan(sinceTs, limit, forAgent)
}
