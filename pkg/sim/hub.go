// Package sim is the composition root of the simulation: one Hub owns
// the command queue, world state, spatial grid, battle manager and
// arena, and serializes every mutation behind a single mutex. The tick
// loop, the IPC handlers and the observer bridge all go through the
// Hub; the engine packages underneath hold no locks of their own.
package sim

import (
	"sync"
	"time"

	"agentarena/pkg/arena"
	"agentarena/pkg/battle"
	"agentarena/pkg/grid"
	"agentarena/pkg/queue"
	"agentarena/pkg/registry"
	"agentarena/pkg/relay"
	"agentarena/pkg/store"
	"agentarena/pkg/wire"
	"agentarena/pkg/world"
)

type Options struct {
	RoomID    string
	RoomName  string
	PublicURL string
	Capacity  int
	Obstacles []wire.Obstacle
	Durations arena.Durations

	Registry *registry.Registry
	Relay    relay.Publisher // optional
	Store    *store.Store    // optional

	InfoLog  func(format string, v ...any)
	ErrorLog func(format string, v ...any)
}

type Hub struct {
	mu sync.Mutex

	queue   *queue.Queue
	world   *world.State
	grid    *grid.Grid
	reg     *registry.Registry
	battles *battle.Manager
	arena   *arena.Arena

	relay relay.Publisher
	store *store.Store

	roomID    string
	roomName  string
	publicURL string
	capacity  int
	startedAt int64

	tick        int64
	lastNow     int64
	lastEventTs int64
	pending     []*wire.Message

	observers map[*Observer]struct{}
	banned    map[string]struct{}
	betTx     map[string]int64

	hooks      []tickHook
	eventHooks []eventHook
	slowStreak int

	infolog func(format string, v ...any)
	errlog  func(format string, v ...any)
}

func New(opts Options) *Hub {
	if opts.Capacity <= 0 {
		opts.Capacity = 100
	}
	if opts.InfoLog == nil {
		opts.InfoLog = func(string, ...any) {}
	}
	if opts.ErrorLog == nil {
		opts.ErrorLog = func(string, ...any) {}
	}

	h := &Hub{
		reg:       opts.Registry,
		relay:     opts.Relay,
		store:     opts.Store,
		roomID:    opts.RoomID,
		roomName:  opts.RoomName,
		publicURL: opts.PublicURL,
		capacity:  opts.Capacity,
		startedAt: time.Now().UnixMilli(),
		observers: make(map[*Observer]struct{}),
		banned:    make(map[string]struct{}),
		betTx:     make(map[string]int64),
		infolog:   opts.InfoLog,
		errlog:    opts.ErrorLog,
	}
	h.lastNow = h.startedAt

	h.queue = queue.New()
	h.queue.SetObstacles(opts.Obstacles)
	h.world = world.New(opts.Registry)
	h.world.SetObstacles(opts.Obstacles)
	h.grid = grid.New(grid.DefaultCellSize)

	h.battles = battle.NewManager(battle.Deps{
		Now:           h.nowLocked,
		Position:      func(id string) *wire.AgentPosition { return h.world.Position(id) },
		Kills:         func(id string) int { return h.reg.Kills(id) },
		HasRefused:    func(id string) bool { return h.reg.HasRefusedPrize(id) },
		Allied:        func(a, b string) bool { return h.arena.Allied(a, b) },
		CombatAllowed: func() *wire.CommandError { return h.arena.CombatGate() },
		Emit:          h.emitLocked,
		OnEnd:         h.onBattleEnd,
	})

	durations := opts.Durations
	if durations.LobbyMs <= 0 {
		durations = arena.DefaultDurations()
	}
	h.arena = arena.New(durations, arena.Deps{
		Now:               h.nowLocked,
		Emit:              h.emitLocked,
		PresentIDs:        func() []string { return h.world.PresentIDs() },
		IsPermanentlyDead: func(id string) bool { return h.reg.IsPermanentlyDead(id) },
		HasRefused:        func(id string) bool { return h.reg.HasRefusedPrize(id) },
		RefusalIDs:        func() []string { return h.reg.RefusedIDs() },
		Position:          func(id string) *wire.AgentPosition { return h.world.Position(id) },
		Eliminate:         h.eliminateLocked,
		EjectAll:          h.ejectAllLocked,
		ReviveAll:         func() int { return h.reg.ReviveAll(h.lastNow) },
		ResetBattles:      func() { h.battles.Reset() },
	})

	h.registerHooks()
	return h
}

// nowLocked reads the wall clock clamped so time never runs backwards
// inside the engine. Callers hold h.mu.
func (h *Hub) nowLocked() int64 {
	now := time.Now().UnixMilli()
	if now < h.lastNow {
		now = h.lastNow
	}
	h.lastNow = now
	return now
}

// emitLocked is the single path every event takes into the engine:
// timestamps are forced non-decreasing, the world folds the message in
// (positions or event ring), and the message joins the tick's fan-out
// list. Callers hold h.mu.
func (h *Hub) emitLocked(msg *wire.Message) {
	if msg == nil {
		return
	}
	if msg.Timestamp < h.lastEventTs {
		msg.Timestamp = h.lastEventTs
	} else {
		h.lastEventTs = msg.Timestamp
	}
	if err := h.world.Apply(msg); err != nil {
		h.errlog("tick %d: apply %s from %s: %v", h.tick, msg.Type, msg.AgentID, err)
		return
	}
	h.pending = append(h.pending, msg)
}

// onBattleEnd books the battle outcome. Runs under h.mu because every
// battle entry point is hub-serialized. Defeated agents die for good:
// alliance drop, permadeath flag, and a world leave one millisecond
// after the closing event.
func (h *Hub) onBattleEnd(o battle.Outcome) {
	now := h.lastNow
	if o.Reason == wire.EndKO && o.WinnerID != "" {
		h.reg.ApplyKO(o.WinnerID, o.DefeatedIDs, o.EndedAt)
	}
	for _, id := range o.DefeatedIDs {
		h.arena.DropAgent(id, now)
		h.reg.MarkPermanentlyDead(id, o.EndedAt)
		h.queue.PruneAgent(id)
		h.emitLocked(&wire.Message{
			Type:      wire.TypeLeave,
			AgentID:   id,
			Timestamp: o.EndedAt + 1,
		})
		h.infolog("agent %s permanently dead (battle %s, %s)", id, o.BattleID, o.Reason)
	}
	if len(o.DefeatedIDs) > 0 {
		h.arena.Reevaluate(now)
	}
}

// eliminateLocked removes an agent outside of battle, currently only
// for zone deaths. A duel in progress ends as a disconnect first.
func (h *Hub) eliminateLocked(agentID, cause string) {
	now := h.lastNow
	h.battles.HandleAgentLeave(agentID)
	h.arena.DropAgent(agentID, now)
	h.reg.MarkPermanentlyDead(agentID, now)
	h.queue.PruneAgent(agentID)
	h.emitLocked(&wire.Message{
		Type:      wire.TypeLeave,
		AgentID:   agentID,
		Timestamp: now + 1,
	})
	h.infolog("agent %s eliminated (%s)", agentID, cause)
	h.arena.Reevaluate(now)
}

// ejectAllLocked clears the island during a survival reset.
func (h *Hub) ejectAllLocked() {
	now := h.lastNow
	for _, id := range h.world.PresentIDs() {
		h.queue.PruneAgent(id)
		h.emitLocked(&wire.Message{
			Type:      wire.TypeLeave,
			AgentID:   id,
			Timestamp: now,
		})
	}
}

// --- Read Surface ---

func (h *Hub) RoomInfo() wire.RoomInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomInfoLocked()
}

func (h *Hub) roomInfoLocked() wire.RoomInfo {
	return wire.RoomInfo{
		RoomID:     h.roomID,
		Name:       h.roomName,
		AgentCount: h.world.AgentCount(),
		Capacity:   h.capacity,
		Phase:      h.arena.PhaseState(),
		Survival:   h.arena.SurvivalState(),
		UptimeMs:   time.Now().UnixMilli() - h.startedAt,
		Constants:  wire.Constants(),
	}
}

// Snapshot returns the observer-grade world view: online profiles with
// positions and actions.
func (h *Hub) Snapshot() []wire.SnapshotAgent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Snapshot(h.nowLocked())
}

// View is a consistent world read captured under one lock: everything
// an agent needs to decide its next command.
type View struct {
	Tick      int64                `json:"tick"`
	Timestamp int64                `json:"timestamp"`
	Agents    []wire.SnapshotAgent `json:"agents"`
	Phase     wire.PhaseState      `json:"phase"`
	Survival  wire.SurvivalState   `json:"survival"`
	Battles   []wire.BattleState   `json:"battles"`
}

func (h *Hub) WorldView() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	return View{
		Tick:      h.tick,
		Timestamp: now,
		Agents:    h.world.Snapshot(now),
		Phase:     h.arena.PhaseState(),
		Survival:  h.arena.SurvivalState(),
		Battles:   h.battles.ActiveStates(),
	}
}

// EventsFor pages the event ring for one agent; whispers stay scoped to
// their sender and target.
func (h *Hub) EventsFor(agentID string, sinceTs int64, limit int) []*wire.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Events(sinceTs, limit, agentID)
}

func (h *Hub) Battles() []wire.BattleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.battles.ActiveStates()
}

func (h *Hub) BattleState(battleID string) *wire.BattleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.battles.StateOf(battleID)
}

func (h *Hub) Profile(agentID string) *wire.AgentProfile {
	return h.reg.Get(agentID)
}

func (h *Hub) Profiles() []*wire.AgentProfile {
	return h.reg.All()
}

func (h *Hub) PhaseState() wire.PhaseState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.arena.PhaseState()
}

func (h *Hub) SurvivalState() wire.SurvivalState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.arena.SurvivalState()
}

func (h *Hub) Alliances() []arena.Alliance {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.arena.Alliances()
}

// SkillIndex aggregates the advertised skills of every known profile.
func (h *Hub) SkillIndex() map[string][]string {
	out := make(map[string][]string)
	for _, p := range h.reg.All() {
		for _, sk := range p.Skills {
			out[sk.SkillID] = append(out[sk.SkillID], p.AgentID)
		}
	}
	return out
}

// Status is the operator view served by the admin endpoint.
type Status struct {
	Room           wire.RoomInfo      `json:"room"`
	Tick           int64              `json:"tick"`
	UptimeMs       int64              `json:"uptimeMs"`
	Profiles       int                `json:"profiles"`
	QueueDepth     int                `json:"queueDepth"`
	QueueDropped   uint64             `json:"queueDropped"`
	Observers      int                `json:"observers"`
	Battles        int                `json:"battles"`
	Alliances      int                `json:"alliances"`
	Banned         int                `json:"banned"`
	Phase          wire.PhaseState    `json:"phase"`
	Survival       wire.SurvivalState `json:"survival"`
	RelayDropped   uint64             `json:"relayDropped,omitempty"`
	StoreEvents    int64              `json:"storeEvents,omitempty"`
	StoreChainHead string             `json:"storeChainHead,omitempty"`
}

func (h *Hub) Status() Status {
	h.mu.Lock()
	st := Status{
		Room:         h.roomInfoLocked(),
		Tick:         h.tick,
		UptimeMs:     h.nowLocked() - h.startedAt,
		Profiles:     len(h.reg.All()),
		QueueDepth:   h.queue.Len(),
		QueueDropped: h.queue.Dropped(),
		Observers:    len(h.observers),
		Battles:      h.battles.Count(),
		Alliances:    len(h.arena.Alliances()),
		Banned:       len(h.banned),
		Phase:        h.arena.PhaseState(),
		Survival:     h.arena.SurvivalState(),
	}
	relay, store := h.relay, h.store
	h.mu.Unlock()

	if relay != nil {
		st.RelayDropped = relay.Dropped()
	}
	if store != nil {
		if n, err := store.Count(); err == nil {
			st.StoreEvents = n
		}
		st.StoreChainHead = store.ChainHead()
	}
	return st
}
