package arena

import (
	"sort"

	"github.com/google/uuid"

	"agentarena/pkg/wire"
)

// --- Alliances ---

const inviteTTLMs = 5 * 60 * 1000

type Alliance struct {
	ID        string   `json:"allianceId"`
	Members   []string `json:"members"` // join order, oldest first
	CreatedAt int64    `json:"createdAt"`
}

type invite struct {
	from      string
	expiresAt int64
}

type allianceBook struct {
	alliances map[string]*Alliance
	byAgent   map[string]string // agent id -> alliance id
	invites   map[string]invite // invitee id -> pending invite
}

func newAllianceBook() *allianceBook {
	return &allianceBook{
		alliances: make(map[string]*Alliance),
		byAgent:   make(map[string]string),
		invites:   make(map[string]invite),
	}
}

// Allied reports whether two agents share an alliance.
func (a *Arena) Allied(x, y string) bool {
	ax, ok := a.alliances.byAgent[x]
	if !ok {
		return false
	}
	return a.alliances.byAgent[y] == ax
}

// Alliances lists every alliance, oldest first.
func (a *Arena) Alliances() []Alliance {
	out := make([]Alliance, 0, len(a.alliances.alliances))
	for _, al := range a.alliances.alliances {
		cp := *al
		cp.Members = append([]string(nil), al.Members...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// AllianceOf returns the agent's alliance id, empty when solo.
func (a *Arena) AllianceOf(agentID string) string { return a.alliances.byAgent[agentID] }

// Invite asks the target to ally with the caller (joining the caller's
// existing alliance when there is one).
func (a *Arena) Invite(from, to string, nowMs int64) *wire.CommandError {
	if from == "" || to == "" || from == to {
		return wire.RejectHint(wire.ErrInvalidArgs, "need a distinct target agent")
	}
	if a.Allied(from, to) {
		return wire.Reject(wire.ErrAlreadyAllied)
	}
	if id := a.alliances.byAgent[from]; id != "" {
		if len(a.alliances.alliances[id].Members) >= a.capNow() {
			return wire.RejectHint(wire.ErrInvalidArgs, "alliance is at the phase cap")
		}
	}
	a.alliances.invites[to] = invite{from: from, expiresAt: nowMs + inviteTTLMs}
	a.deps.Emit(&wire.Message{
		Type: wire.TypeAlliance, AgentID: from, Timestamp: nowMs, TargetID: to,
		Alliance: &wire.AllianceEvent{Action: "invited", AllianceID: a.alliances.byAgent[from]},
	})
	return nil
}

// Accept takes the pending invite addressed to the agent.
func (a *Arena) Accept(agentID string, nowMs int64) (*Alliance, *wire.CommandError) {
	inv, ok := a.alliances.invites[agentID]
	if !ok || inv.expiresAt <= nowMs || a.deps.IsPermanentlyDead(inv.from) {
		delete(a.alliances.invites, agentID)
		return nil, wire.Reject(wire.ErrNoInvite)
	}
	delete(a.alliances.invites, agentID)
	if a.alliances.byAgent[agentID] != "" {
		return nil, wire.Reject(wire.ErrAlreadyAllied)
	}

	al := a.alliances.alliances[a.alliances.byAgent[inv.from]]
	action := "joined"
	if al == nil {
		al = &Alliance{ID: uuid.NewString(), Members: []string{inv.from}, CreatedAt: nowMs}
		a.alliances.alliances[al.ID] = al
		a.alliances.byAgent[inv.from] = al.ID
		action = "formed"
	} else if len(al.Members) >= a.capNow() {
		return nil, wire.RejectHint(wire.ErrInvalidArgs, "alliance is at the phase cap")
	}
	al.Members = append(al.Members, agentID)
	a.alliances.byAgent[agentID] = al.ID

	a.deps.Emit(&wire.Message{
		Type: wire.TypeAlliance, AgentID: agentID, Timestamp: nowMs,
		Alliance: &wire.AllianceEvent{Action: action, AllianceID: al.ID, Members: append([]string(nil), al.Members...)},
	})
	cp := *al
	cp.Members = append([]string(nil), al.Members...)
	return &cp, nil
}

// LeaveAlliance removes the agent; emptied alliances dissolve.
func (a *Arena) LeaveAlliance(agentID string, nowMs int64) *wire.CommandError {
	id := a.alliances.byAgent[agentID]
	if id == "" {
		return wire.Reject(wire.ErrAllianceNotFound)
	}
	a.removeMember(agentID, nowMs, "left")
	return nil
}

// DropAgent silently detaches a dead or departed agent from its alliance.
func (a *Arena) DropAgent(agentID string, nowMs int64) {
	if a.alliances.byAgent[agentID] != "" {
		a.removeMember(agentID, nowMs, "left")
	}
	delete(a.alliances.invites, agentID)
}

func (a *Arena) removeMember(agentID string, nowMs int64, action string) {
	id := a.alliances.byAgent[agentID]
	al := a.alliances.alliances[id]
	delete(a.alliances.byAgent, agentID)
	if al == nil {
		return
	}
	kept := al.Members[:0]
	for _, m := range al.Members {
		if m != agentID {
			kept = append(kept, m)
		}
	}
	al.Members = kept

	ev := &wire.AllianceEvent{Action: action, AllianceID: al.ID, Removed: []string{agentID}}
	if len(al.Members) < 2 {
		for _, m := range al.Members {
			delete(a.alliances.byAgent, m)
		}
		delete(a.alliances.alliances, al.ID)
		ev.Action = "dissolved"
	} else {
		ev.Members = append([]string(nil), al.Members...)
	}
	a.deps.Emit(&wire.Message{Type: wire.TypeAlliance, AgentID: agentID, Timestamp: nowMs, Alliance: ev})
}

func (a *Arena) capNow() int { return allianceCaps[a.phase.Phase] }

// trimAlliances enforces the phase cap, cutting newest members first.
func (a *Arena) trimAlliances(nowMs int64) {
	limit := a.capNow()
	if limit <= 0 {
		return
	}
	for _, al := range a.alliances.alliances {
		if len(al.Members) <= limit {
			continue
		}
		removed := append([]string(nil), al.Members[limit:]...)
		al.Members = al.Members[:limit]
		for _, id := range removed {
			delete(a.alliances.byAgent, id)
		}
		a.deps.Emit(&wire.Message{
			Type: wire.TypeAlliance, AgentID: "world", Timestamp: nowMs,
			Alliance: &wire.AllianceEvent{
				Action: "trimmed", AllianceID: al.ID,
				Members: append([]string(nil), al.Members...),
				Removed: removed,
			},
		})
	}
}
