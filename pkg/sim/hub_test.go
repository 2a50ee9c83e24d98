package sim

import (
	"math"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentarena/pkg/registry"
	"agentarena/pkg/wire"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return New(Options{
		RoomID:   "room-test",
		RoomName: "Test Island",
		Capacity: 16,
		Registry: registry.New(t.TempDir(), t.Logf),
	})
}

// join registers an agent at an explicit spot with a fresh wallet. The
// rotation matters: a join without one gets a random spawn instead.
func join(t *testing.T, h *Hub, id string, x, z float64) {
	t.Helper()
	res, cerr := h.Register(id, &wire.ProfileUpdate{
		Name:          "Agent " + id,
		WalletAddress: "wallet-" + id + "-0000",
	}, wire.Float(x), nil, wire.Float(z), wire.Float(0))
	require.Nil(t, cerr, "register %s", id)
	require.NotNil(t, res.Spawn, "register %s", id)
	require.Equal(t, x, res.Spawn.X, "register %s", id)
	require.Equal(t, z, res.Spawn.Z, "register %s", id)
}

func findRow(rows []wire.SnapshotAgent, id string) *wire.SnapshotAgent {
	for i := range rows {
		if rows[i].Profile.AgentID == id {
			return &rows[i]
		}
	}
	return nil
}

func decodeFrame(t *testing.T, raw []byte) wire.Frame {
	t.Helper()
	var f wire.Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

// --- Registration ---

func TestRegisterAssignsSpawn(t *testing.T) {
	h := newTestHub(t)

	res, cerr := h.Register("scout", &wire.ProfileUpdate{
		Name:          "Scout",
		WalletAddress: "wallet-scout-0000",
	}, nil, nil, nil, nil)
	require.Nil(t, cerr)
	require.NotNil(t, res.Spawn)
	assert.LessOrEqual(t, math.Hypot(res.Spawn.X, res.Spawn.Z), wire.SpawnRadius+0.001)
	assert.Equal(t, "Scout", res.Profile.Name)
	assert.NotZero(t, res.Profile.JoinedAt)
	assert.Equal(t, 1, h.RoomInfo().AgentCount)

	// Re-registering merges the profile but never moves the agent, even
	// when the second join carries a full explicit position.
	res2, cerr := h.Register("scout", &wire.ProfileUpdate{Bio: "back again"},
		wire.Float(50), nil, wire.Float(50), wire.Float(0))
	require.Nil(t, cerr)
	assert.Equal(t, res.Spawn.X, res2.Spawn.X)
	assert.Equal(t, res.Spawn.Z, res2.Spawn.Z)
	assert.Equal(t, "back again", res2.Profile.Bio)
	assert.Equal(t, "Scout", res2.Profile.Name)
	assert.Equal(t, 1, h.RoomInfo().AgentCount)
}

func TestRegisterGates(t *testing.T) {
	h := newTestHub(t)
	upd := &wire.ProfileUpdate{WalletAddress: "wallet-gates-0000"}

	_, cerr := h.Register("", upd, nil, nil, nil, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrInvalidAgentID, cerr.Token)

	_, cerr = h.Register("nowallet", nil, nil, nil, nil, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrWalletRequired, cerr.Token)

	_, cerr = h.Register("badwallet", &wire.ProfileUpdate{WalletAddress: "short"}, nil, nil, nil, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrWalletRequired, cerr.Token)

	h.SetBanned("outlaw", true)
	_, cerr = h.Register("outlaw", upd, nil, nil, nil, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrAgentBanned, cerr.Token)

	h.SetBanned("outlaw", false)
	_, cerr = h.Register("outlaw", upd, nil, nil, nil, nil)
	assert.Nil(t, cerr)
}

func TestRegisterCapacity(t *testing.T) {
	h := New(Options{
		RoomID:   "tiny",
		RoomName: "Tiny",
		Capacity: 2,
		Registry: registry.New(t.TempDir(), t.Logf),
	})
	join(t, h, "a", 0, 0)
	join(t, h, "b", 20, 0)

	_, cerr := h.Register("c", &wire.ProfileUpdate{WalletAddress: "wallet-c-000000"}, nil, nil, nil, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrRoomFull, cerr.Token)

	// An agent already inside may re-register while the room is full.
	_, cerr = h.Register("a", nil, nil, nil, nil, nil)
	assert.Nil(t, cerr)

	require.Nil(t, h.Leave("a"))
	_, cerr = h.Register("c", &wire.ProfileUpdate{WalletAddress: "wallet-c-000000"}, nil, nil, nil, nil)
	assert.Nil(t, cerr)
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "ghost", 0, 0)

	require.Nil(t, h.Leave("ghost"))
	assert.Zero(t, h.RoomInfo().AgentCount)

	require.Nil(t, h.Leave("ghost"))

	// Departure removes presence, not the profile.
	assert.NotNil(t, h.Profile("ghost"))
}

// --- Queue path ---

func TestStepAppliesQueuedMovement(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "walker", 0, 0)

	require.Nil(t, h.Move("walker", wire.Float(10), nil, wire.Float(-4), wire.Float(90)))

	// Nothing moves until the tick drains the queue.
	row := findRow(h.Snapshot(), "walker")
	require.NotNil(t, row)
	assert.Zero(t, row.Position.X)
	assert.Equal(t, 1, h.Status().QueueDepth)

	h.Step()

	row = findRow(h.Snapshot(), "walker")
	require.NotNil(t, row)
	assert.Equal(t, 10.0, row.Position.X)
	assert.Equal(t, -4.0, row.Position.Z)
	assert.Equal(t, 90.0, row.Position.Rotation)
	assert.Zero(t, h.Status().QueueDepth)

	require.Nil(t, h.Action("walker", "dance"))
	h.Step()
	row = findRow(h.Snapshot(), "walker")
	require.NotNil(t, row)
	assert.Equal(t, "dance", row.Action)
}

func TestQueueRejectsBadCommands(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "walker", 0, 0)

	cerr := h.Move("walker", wire.Float(wire.HalfWorld+1), nil, wire.Float(0), nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrOutOfBounds, cerr.Token)

	cerr = h.Action("walker", "moonwalk")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrInvalidArgs, cerr.Token)

	cerr = h.Emote("walker", "grimace")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrInvalidArgs, cerr.Token)

	cerr = h.Move("stranger", wire.Float(1), nil, wire.Float(1), nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrUnknownAgent, cerr.Token)
}

func TestRateLimitIsPerAgent(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "spam", 0, 0)
	join(t, h, "calm", 30, 30)

	for i := 0; i < wire.AgentRateLimit; i++ {
		require.Nil(t, h.Move("spam", wire.Float(float64(i)), nil, wire.Float(0), nil), "move %d", i)
	}
	cerr := h.Move("spam", wire.Float(1), nil, wire.Float(1), nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrRateLimited, cerr.Token)
	assert.Positive(t, cerr.RetryAfterMs)

	assert.Nil(t, h.Move("calm", wire.Float(31), nil, wire.Float(31), nil))
}

func TestChatTruncatesAtLimit(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "talker", 0, 0)

	sent, cerr := h.Chat("talker", strings.Repeat("x", wire.MaxChatLength+25))
	require.Nil(t, cerr)
	assert.Len(t, sent, wire.MaxChatLength)

	h.Step()

	var chat *wire.Message
	for _, ev := range h.EventsFor("talker", 0, 50) {
		if ev.Type == wire.TypeChat {
			chat = ev
		}
	}
	require.NotNil(t, chat)
	assert.Equal(t, sent, chat.Text)
}

func TestWhisperStaysBetweenSenderAndTarget(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "s", 0, 0)
	join(t, h, "r", 10, 0)
	join(t, h, "other", -10, 0)

	cerr := h.Whisper("s", "nobody", "hello?")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrUnknownTarget, cerr.Token)

	require.Nil(t, h.Whisper("s", "r", "the cache is under the bridge"))
	h.Step()

	hasWhisper := func(viewer string) bool {
		for _, ev := range h.EventsFor(viewer, 0, 50) {
			if ev.Type == wire.TypeWhisper {
				return true
			}
		}
		return false
	}
	assert.True(t, hasWhisper("s"))
	assert.True(t, hasWhisper("r"))
	assert.False(t, hasWhisper("other"))
	assert.False(t, hasWhisper(""))
}

// --- Battle ---

func TestBattleLifecycle(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "a", 0, 0)
	join(t, h, "b", 3, 4)

	// Duels are gated on contract and phase.
	_, cerr := h.StartBattle("a", "b")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrSurvivalClosed, cerr.Token)

	sv := h.StartSurvival(0, 250)
	assert.Equal(t, wire.SurvivalActive, sv.Status)
	assert.Equal(t, 250.0, sv.PrizePoolUsd)

	_, cerr = h.StartBattle("a", "b")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrCombatPhaseLocked, cerr.Token)

	ph, ok := h.ForcePhase("battle")
	require.True(t, ok)
	assert.Equal(t, wire.PhaseBattle, ph.Phase)

	st, cerr := h.StartBattle("a", "b")
	require.Nil(t, cerr)
	require.NotNil(t, st)
	assert.ElementsMatch(t, []string{"a", "b"}, st.Participants)
	assert.Equal(t, 100, st.HP["a"])
	assert.Equal(t, 100, st.HP["b"])

	// Fighters are rooted for the duration.
	cerr = h.Move("a", wire.Float(1), nil, wire.Float(1), nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrAgentInBattle, cerr.Token)

	// Round one: the battle id may be omitted when the agent is in
	// exactly one duel.
	res, cerr := h.SubmitIntent("a", "", "strike")
	require.Nil(t, cerr)
	assert.False(t, res.Resolved)
	res, cerr = h.SubmitIntent("b", "", "feint")
	require.Nil(t, cerr)
	assert.True(t, res.Resolved)

	mid := h.BattleState(st.BattleID)
	require.NotNil(t, mid)
	assert.Equal(t, 86, mid.HP["a"])
	assert.Equal(t, 72, mid.HP["b"])
	assert.Equal(t, 2, mid.Turn)

	// Three more rounds of the same grind down the feinter.
	for round := 2; round <= 4; round++ {
		res, cerr = h.SubmitIntent("a", "", "strike")
		require.Nil(t, cerr, "round %d", round)
		assert.False(t, res.Resolved)
		res, cerr = h.SubmitIntent("b", "", "feint")
		require.Nil(t, cerr, "round %d", round)
		assert.True(t, res.Resolved)
	}

	assert.Empty(t, h.Battles())
	assert.Nil(t, h.BattleState(st.BattleID))

	_, cerr = h.SubmitIntent("a", "", "strike")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrBattleNotFound, cerr.Token)

	// The loser is dead for the round.
	cerr = h.Move("b", wire.Float(1), nil, wire.Float(1), nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrAgentDeadPermanent, cerr.Token)
	assert.True(t, cerr.Permanent)

	pa := h.Profile("a")
	assert.Equal(t, 1, pa.Combat.Kills)
	assert.Equal(t, 1, pa.Combat.Wins)
	pb := h.Profile("b")
	assert.Equal(t, 1, pb.Combat.Deaths)
	assert.Equal(t, 1, pb.Combat.Losses)
	assert.True(t, pb.Combat.PermanentlyDead)

	// With the only rival gone the survivor takes the round.
	sv = h.SurvivalState()
	assert.Equal(t, wire.SurvivalWinner, sv.Status)
	assert.Equal(t, "a", sv.WinnerAgentID)

	// A settled round refuses newcomers, the dead agent's wallet is
	// frozen, and the betting window is shut.
	_, cerr = h.Register("late", &wire.ProfileUpdate{WalletAddress: "wallet-late-0000"}, nil, nil, nil, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrSurvivalClosed, cerr.Token)

	_, cerr = h.Register("b-next", &wire.ProfileUpdate{WalletAddress: "wallet-b-0000"}, nil, nil, nil, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrWalletOfDead, cerr.Token)

	_, cerr = h.PlaceBet("a", 10, "tx-after-settle", "backer-wallet-01")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrSurvivalClosed, cerr.Token)

	// Reset ejects everyone, revives the dead and frees their wallets.
	h.ResetSurvival()
	assert.Equal(t, wire.SurvivalWaiting, h.SurvivalState().Status)
	assert.Zero(t, h.RoomInfo().AgentCount)

	_, cerr = h.Register("b-next", &wire.ProfileUpdate{WalletAddress: "wallet-b-0000"}, nil, nil, nil, nil)
	assert.Nil(t, cerr)
}

func TestTruceEndsBattleWithoutDeaths(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "t1", 0, 0)
	join(t, h, "t2", 5, 0)
	h.StartSurvival(0, 100)
	h.ForcePhase("battle")

	_, cerr := h.StartBattle("t1", "t2")
	require.Nil(t, cerr)

	both, cerr := h.Truce("t1", "")
	require.Nil(t, cerr)
	assert.False(t, both)
	both, cerr = h.Truce("t2", "")
	require.Nil(t, cerr)
	assert.True(t, both)

	assert.Empty(t, h.Battles())
	assert.Equal(t, wire.SurvivalActive, h.SurvivalState().Status)
	assert.Nil(t, h.Move("t1", wire.Float(1), nil, wire.Float(1), nil))
}

// --- Survival & alliances ---

func TestRefusePrizeShrinksTheField(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "monk", 0, 0)
	join(t, h, "rival", 20, 0)
	join(t, h, "witness", -20, 0)
	h.StartSurvival(0, 100)

	sv, cerr := h.RefusePrize("monk")
	require.Nil(t, cerr)
	assert.Equal(t, wire.SurvivalActive, sv.Status)
	assert.Contains(t, sv.RefusalAgentIDs, "monk")

	// The second refusal leaves one eligible agent standing.
	sv, cerr = h.RefusePrize("witness")
	require.Nil(t, cerr)
	assert.Equal(t, wire.SurvivalWinner, sv.Status)
	assert.Equal(t, "rival", sv.WinnerAgentID)
}

func TestAllianceBlocksDuels(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "x", 0, 0)
	join(t, h, "y", 5, 0)
	join(t, h, "z", 40, 40)
	h.StartSurvival(0, 100)
	h.ForcePhase("battle")

	cerr := h.InviteAlliance("x", "nobody")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrUnknownTarget, cerr.Token)

	_, cerr = h.AcceptAlliance("z")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrNoInvite, cerr.Token)

	require.Nil(t, h.InviteAlliance("x", "y"))
	al, cerr := h.AcceptAlliance("y")
	require.Nil(t, cerr)
	assert.ElementsMatch(t, []string{"x", "y"}, al.Members)
	assert.Len(t, h.Alliances(), 1)

	_, cerr = h.StartBattle("x", "y")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrCannotAttackAlly, cerr.Token)

	// A pair dissolves when either walks out, and the duel is on.
	require.Nil(t, h.LeaveAlliance("x"))
	assert.Empty(t, h.Alliances())
	_, cerr = h.StartBattle("x", "y")
	assert.Nil(t, cerr)
}

// --- Betting ---

func TestPlaceBetValidation(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "champ", 0, 0)
	wallet := "backer-wallet-01"

	_, cerr := h.PlaceBet("ghost", 5, "tx0", wallet)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrUnknownTarget, cerr.Token)

	_, cerr = h.PlaceBet("champ", 5, "tx0", "bad")
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrWalletRequired, cerr.Token)

	_, cerr = h.PlaceBet("champ", 0, "tx0", wallet)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrInvalidArgs, cerr.Token)

	_, cerr = h.PlaceBet("champ", math.Inf(1), "tx0", wallet)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrInvalidArgs, cerr.Token)

	_, cerr = h.PlaceBet("champ", 5, "", wallet)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrInvalidArgs, cerr.Token)

	betID, cerr := h.PlaceBet("champ", 25.5, "tx-1", wallet)
	require.Nil(t, cerr)
	assert.NotEmpty(t, betID)

	_, cerr = h.PlaceBet("champ", 25.5, "tx-1", wallet)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrDuplicateTx, cerr.Token)

	other, cerr := h.PlaceBet("champ", 3, "tx-2", wallet)
	require.Nil(t, cerr)
	assert.NotEqual(t, betID, other)

	// Bets ride the public event stream.
	h.Step()
	var seen []string
	for _, ev := range h.EventsFor("", 0, 50) {
		if ev.Type == wire.TypeBet {
			seen = append(seen, ev.Bet.BetID)
		}
	}
	assert.ElementsMatch(t, []string{betID, other}, seen)
}

// --- Observers ---

func TestObserverStream(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "near", 5, 5)
	join(t, h, "far", 120, 120)
	h.Step() // flush the joins before anyone is watching

	var frames [][]byte
	o := h.Subscribe(func(b []byte) bool {
		frames = append(frames, b)
		return true
	}, "")

	// The greeting is room info plus the live battle list.
	require.Len(t, frames, 2)
	hello := decodeFrame(t, frames[0])
	assert.Equal(t, "roomInfo", hello.Type)
	require.NotNil(t, hello.Room)
	assert.Equal(t, "room-test", hello.Room.RoomID)
	assert.Equal(t, 2, hello.Room.AgentCount)
	assert.Equal(t, "battleState", decodeFrame(t, frames[1]).Type)

	// First tick after subscribing: one unfiltered snapshot.
	h.Step()
	require.Len(t, frames, 3)
	snap := decodeFrame(t, frames[2])
	assert.Equal(t, "snapshot", snap.Type)
	assert.Len(t, snap.Agents, 2)

	// Movement is filtered to the viewport's area of interest; the
	// default anchor is the origin.
	require.Nil(t, h.Move("near", wire.Float(6), nil, wire.Float(6), nil))
	require.Nil(t, h.Move("far", wire.Float(121), nil, wire.Float(121), nil))
	h.Step()
	require.Len(t, frames, 4)
	world := decodeFrame(t, frames[3])
	assert.Equal(t, "world", world.Type)
	require.NotNil(t, world.Event)
	assert.Equal(t, wire.TypePosition, world.Event.Type)
	assert.Equal(t, "near", world.Event.AgentID)

	// Speech carries to viewports within hearing range of the speaker.
	sent, cerr := h.Chat("near", "anyone selling lumber?")
	require.Nil(t, cerr)
	_, cerr = h.Chat("far", "echoes from the rim")
	require.Nil(t, cerr)
	h.Step()
	require.Len(t, frames, 5)
	chat := decodeFrame(t, frames[4])
	require.NotNil(t, chat.Event)
	assert.Equal(t, wire.TypeChat, chat.Event.Type)
	assert.Equal(t, "near", chat.Event.AgentID)
	assert.Equal(t, sent, chat.Event.Text)

	// Whispers never reach the stands.
	require.Nil(t, h.Whisper("near", "far", "meet me at the rock"))
	h.Step()
	assert.Len(t, frames, 5)

	// Joins are world-scoped: distance does not matter.
	join(t, h, "late", -130, -130)
	h.Step()
	require.Len(t, frames, 6)
	jf := decodeFrame(t, frames[5])
	require.NotNil(t, jf.Event)
	assert.Equal(t, wire.TypeJoin, jf.Event.Type)
	assert.Equal(t, "late", jf.Event.AgentID)

	// A reset ack forces a fresh full snapshot.
	h.ResetAck(o)
	h.Step()
	require.Len(t, frames, 7)
	resnap := decodeFrame(t, frames[6])
	assert.Equal(t, "snapshot", resnap.Type)
	assert.Len(t, resnap.Agents, 3)

	// Moving the viewport re-anchors the movement filter.
	require.Nil(t, h.SetViewport(o, 120, 120))
	cerr = h.SetViewport(o, math.NaN(), 0)
	require.NotNil(t, cerr)
	assert.Equal(t, wire.ErrInvalidPosition, cerr.Token)

	require.Nil(t, h.Move("near", wire.Float(7), nil, wire.Float(7), nil))
	require.Nil(t, h.Move("far", wire.Float(122), nil, wire.Float(122), nil))
	h.Step()
	require.Len(t, frames, 8)
	moved := decodeFrame(t, frames[7])
	require.NotNil(t, moved.Event)
	assert.Equal(t, "far", moved.Event.AgentID)

	assert.Equal(t, 1, h.Status().Observers)
	h.Unsubscribe(o)
	assert.Equal(t, 0, h.Status().Observers)
}

func TestObserverFollowsAgent(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "runner", 10, 10)

	o := h.Subscribe(func([]byte) bool { return true }, "runner")
	assert.InDelta(t, 10.0, o.viewX, 1e-9)
	assert.InDelta(t, 10.0, o.viewZ, 1e-9)

	require.Nil(t, h.Move("runner", wire.Float(30), nil, wire.Float(-20), nil))
	h.Step()
	assert.InDelta(t, 30.0, o.viewX, 1e-9)
	assert.InDelta(t, -20.0, o.viewZ, 1e-9)
}

func TestObserverDroppedWhenSendFails(t *testing.T) {
	h := newTestHub(t)
	h.Subscribe(func([]byte) bool { return false }, "")
	assert.Equal(t, 0, h.Status().Observers)
}

// --- Read surface ---

func TestStatusCounters(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "s1", 0, 0)
	join(t, h, "s2", 20, 20)
	h.SetBanned("troll", true)
	h.Step()
	h.Step()

	st := h.Status()
	assert.Equal(t, "room-test", st.Room.RoomID)
	assert.EqualValues(t, 2, st.Tick)
	assert.Equal(t, 2, st.Profiles)
	assert.Equal(t, 1, st.Banned)
	assert.Zero(t, st.QueueDepth)
	assert.Zero(t, st.Battles)
	assert.Empty(t, st.StoreChainHead)

	require.Nil(t, h.Move("s1", wire.Float(1), nil, wire.Float(1), nil))
	assert.Equal(t, 1, h.Status().QueueDepth)
	h.Step()
	assert.Zero(t, h.Status().QueueDepth)
}

func TestWorldViewIsConsistent(t *testing.T) {
	h := newTestHub(t)
	join(t, h, "v1", 0, 0)
	h.Step()

	v := h.WorldView()
	assert.EqualValues(t, 1, v.Tick)
	assert.NotZero(t, v.Timestamp)
	require.Len(t, v.Agents, 1)
	assert.Equal(t, "v1", v.Agents[0].Profile.AgentID)
	assert.Equal(t, wire.PhaseLobby, v.Phase.Phase)
	assert.Equal(t, wire.SurvivalWaiting, v.Survival.Status)
	assert.Empty(t, v.Battles)
}

func TestSkillIndex(t *testing.T) {
	h := newTestHub(t)
	_, cerr := h.Register("porter", &wire.ProfileUpdate{
		WalletAddress: "wallet-porter-000",
		Skills:        []wire.Skill{{SkillID: "haul", Name: "Hauling"}},
	}, nil, nil, nil, nil)
	require.Nil(t, cerr)
	_, cerr = h.Register("guide", &wire.ProfileUpdate{
		WalletAddress: "wallet-guide-0000",
		Skills:        []wire.Skill{{SkillID: "haul"}, {SkillID: "scout"}},
	}, nil, nil, nil, nil)
	require.Nil(t, cerr)

	idx := h.SkillIndex()
	assert.ElementsMatch(t, []string{"porter", "guide"}, idx["haul"])
	assert.Equal(t, []string{"guide"}, idx["scout"])
}

func TestForcePhaseValidation(t *testing.T) {
	h := newTestHub(t)

	_, ok := h.ForcePhase("afterparty")
	assert.False(t, ok)

	ph, ok := h.ForcePhase("showdown")
	require.True(t, ok)
	assert.Equal(t, wire.PhaseShowdown, ph.Phase)
}
