package sim

import (
	"math"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"agentarena/pkg/wire"
)

// Viewport anchors further out than this are rejected.
const maxViewportMag = 10_000

// Observer is one connected spectator. The hub owns all of its state;
// the transport layer only supplies the send function, which must not
// block (push into a bounded buffer, report false when full).
type Observer struct {
	ID          string
	send        func(frame []byte) bool
	viewX       float64
	viewZ       float64
	follow      string
	lastAckTick int64 // 0 until the first full snapshot went out
}

// Subscribe registers an observer and greets it with the room info and
// the live battle list. The first snapshot follows on the next tick,
// unfiltered.
func (h *Hub) Subscribe(send func(frame []byte) bool, followAgentID string) *Observer {
	h.mu.Lock()
	defer h.mu.Unlock()

	o := &Observer{ID: uuid.NewString(), send: send, follow: followAgentID}
	if followAgentID != "" {
		if p := h.world.Position(followAgentID); p != nil {
			o.viewX, o.viewZ = p.X, p.Z
		}
	}
	h.observers[o] = struct{}{}
	h.infolog("observer %s connected (follow=%q, %d total)", o.ID, followAgentID, len(h.observers))

	room := h.roomInfoLocked()
	h.deliverLocked(o, encodeFrame(wire.Frame{Type: "roomInfo", Tick: h.tick, Room: &room}))
	h.deliverLocked(o, encodeFrame(wire.Frame{Type: "battleState", Tick: h.tick, Battles: h.battles.ActiveStates()}))
	return o
}

func (h *Hub) Unsubscribe(o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[o]; ok {
		delete(h.observers, o)
		h.infolog("observer %s disconnected (%d left)", o.ID, len(h.observers))
	}
}

// --- Observer Commands ---

// ResetAck forces the next message to this observer to be an unfiltered
// full snapshot.
func (h *Hub) ResetAck(o *Observer) {
	h.mu.Lock()
	o.lastAckTick = 0
	h.mu.Unlock()
}

// SetViewport moves the observer's filter anchor.
func (h *Hub) SetViewport(o *Observer, x, z float64) *wire.CommandError {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(z) || math.IsInf(z, 0) ||
		math.Abs(x) > maxViewportMag || math.Abs(z) > maxViewportMag {
		return wire.RejectHint(wire.ErrInvalidPosition, "viewport must be finite and within 10000")
	}
	h.mu.Lock()
	o.viewX, o.viewZ = x, z
	o.follow = ""
	h.mu.Unlock()
	return nil
}

// SetFollow pins the viewport to an agent; it tracks every tick. An
// empty id detaches.
func (h *Hub) SetFollow(o *Observer, agentID string) {
	h.mu.Lock()
	o.follow = agentID
	if p := h.world.Position(agentID); p != nil {
		o.viewX, o.viewZ = p.X, p.Z
	}
	h.mu.Unlock()
}

// --- One-shot Replies ---

func (h *Hub) RequestRoomInfo(o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.roomInfoLocked()
	h.deliverLocked(o, encodeFrame(wire.Frame{Type: "roomInfo", Tick: h.tick, Room: &room}))
}

func (h *Hub) RequestBattles(o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(o, encodeFrame(wire.Frame{Type: "battleState", Tick: h.tick, Battles: h.battles.ActiveStates()}))
}

func (h *Hub) RequestProfiles(o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := h.reg.All()
	profiles := make([]wire.AgentProfile, 0, len(all))
	for _, p := range all {
		profiles = append(profiles, *p)
	}
	h.deliverLocked(o, encodeFrame(wire.Frame{Type: "profiles", Tick: h.tick, Profiles: profiles}))
}

func (h *Hub) RequestProfile(o *Observer, agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(o, encodeFrame(wire.Frame{Type: "profile", Tick: h.tick, Profile: h.reg.Get(agentID)}))
}

// SendResult acknowledges an observer command outside the tick stream.
func (h *Hub) SendResult(o *Observer, res wire.CommandResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(o, encodeFrame(wire.Frame{Type: "commandResult", Tick: h.tick, Result: &res}))
}

// --- Fan-out ---

// fanOutLocked is step 7 of the tick: snapshots on their cadence, then
// this tick's events, each encoded once and shared across observers.
func (h *Hub) fanOutLocked(events []*wire.Message, nowMs int64) {
	if len(h.observers) == 0 {
		return
	}
	snapTick := h.tick%wire.SnapshotInterval == 0

	type outEvent struct {
		raw []byte
		msg *wire.Message
	}
	encoded := make([]outEvent, 0, len(events))
	for _, ev := range events {
		if ev.Type == wire.TypeWhisper {
			continue
		}
		raw := encodeFrame(wire.Frame{Type: "world", Tick: h.tick, Event: ev})
		if raw == nil {
			continue
		}
		encoded = append(encoded, outEvent{raw: raw, msg: ev})
	}

	var fullSnap []byte
	for o := range h.observers {
		var aoi map[string]struct{}

		switch {
		case o.lastAckTick == 0:
			if fullSnap == nil {
				fullSnap = h.encodeSnapshotLocked(nowMs, nil)
			}
			if !h.deliverLocked(o, fullSnap) {
				continue
			}
			o.lastAckTick = h.tick
		case snapTick:
			aoi = h.grid.QueryRadiusSet(o.viewX, o.viewZ, wire.AOIRadius)
			if !h.deliverLocked(o, h.encodeSnapshotLocked(nowMs, aoi)) {
				continue
			}
			o.lastAckTick = h.tick
		}

		for _, oe := range encoded {
			if !h.wantsLocked(o, oe.msg, &aoi) {
				continue
			}
			if !h.deliverLocked(o, oe.raw) {
				break
			}
		}
	}
}

// wantsLocked applies the delivery rules: whispers never leave the
// ring, world-scoped events go to everyone, speech carries to viewports
// near the speaker, movement only inside the AOI.
func (h *Hub) wantsLocked(o *Observer, msg *wire.Message, aoi *map[string]struct{}) bool {
	switch msg.Type {
	case wire.TypeChat, wire.TypeEmote:
		p := h.world.Position(msg.AgentID)
		if p == nil {
			return false
		}
		dx, dz := p.X-o.viewX, p.Z-o.viewZ
		return dx*dx+dz*dz <= wire.ProximityRadius*wire.ProximityRadius
	case wire.TypePosition, wire.TypeAction:
		if *aoi == nil {
			*aoi = h.grid.QueryRadiusSet(o.viewX, o.viewZ, wire.AOIRadius)
		}
		_, in := (*aoi)[msg.AgentID]
		return in
	default:
		return true
	}
}

// encodeSnapshotLocked builds a snapshot frame, restricted to the aoi
// set when one is given.
func (h *Hub) encodeSnapshotLocked(nowMs int64, aoi map[string]struct{}) []byte {
	rows := h.world.Snapshot(nowMs)
	if aoi != nil {
		keep := make([]wire.SnapshotAgent, 0, len(rows))
		for _, r := range rows {
			if r.Position == nil {
				continue
			}
			if _, in := aoi[r.Profile.AgentID]; in {
				keep = append(keep, r)
			}
		}
		rows = keep
	}
	phase := h.arena.PhaseState()
	survival := h.arena.SurvivalState()
	return encodeFrame(wire.Frame{
		Type:      "snapshot",
		Tick:      h.tick,
		Timestamp: nowMs,
		Agents:    rows,
		Battles:   h.battles.ActiveStates(),
		Phase:     &phase,
		Survival:  &survival,
	})
}

// deliverLocked pushes one encoded frame. A full buffer means the
// observer cannot keep up; it is dropped here and the transport closes
// the socket when its channel goes.
func (h *Hub) deliverLocked(o *Observer, frame []byte) bool {
	if frame == nil {
		return true
	}
	if o.send(frame) {
		return true
	}
	delete(h.observers, o)
	h.errlog("observer %s dropped: send buffer full", o.ID)
	return false
}

func encodeFrame(f wire.Frame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return b
}
