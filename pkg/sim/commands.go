package sim

import (
	"math"

	"github.com/google/uuid"

	"agentarena/pkg/arena"
	"agentarena/pkg/battle"
	"agentarena/pkg/registry"
	"agentarena/pkg/wire"
)

// How long a txHash stays in the duplicate filter.
const betTxRetentionMs = 10 * 60 * 1000

// gateLocked applies the checks shared by every per-agent command:
// known id, not banned, not dead. Callers hold h.mu.
func (h *Hub) gateLocked(agentID string, now int64) *wire.CommandError {
	if agentID == "" {
		return wire.Reject(wire.ErrInvalidAgentID)
	}
	if _, bad := h.banned[agentID]; bad {
		return wire.Reject(wire.ErrAgentBanned)
	}
	if !h.reg.Exists(agentID) {
		return wire.RejectHint(wire.ErrUnknownAgent, "register before issuing world commands")
	}
	if h.reg.IsPermanentlyDead(agentID) {
		return &wire.CommandError{
			Token:     wire.ErrAgentDeadPermanent,
			Hint:      "agent fell in battle; death lasts until the round resets",
			Permanent: true,
		}
	}
	if h.reg.SharesDeadWallet(agentID) {
		return &wire.CommandError{
			Token:     wire.ErrWalletOfDead,
			Hint:      "this wallet is bound to a fallen agent until the round resets",
			Permanent: true,
		}
	}
	if du := h.reg.DeadUntil(agentID); du > now {
		return &wire.CommandError{
			Token:        wire.ErrAgentDead,
			DeadUntil:    du,
			RetryAfterMs: du - now,
		}
	}
	return nil
}

// presentLocked additionally requires the agent to be in the world.
func (h *Hub) presentLocked(agentID string, now int64) *wire.CommandError {
	if err := h.gateLocked(agentID, now); err != nil {
		return err
	}
	if !h.world.HasPosition(agentID) {
		return wire.RejectHint(wire.ErrUnknownAgent, "agent is not in the world; join first")
	}
	return nil
}

// --- Registration ---

type RegisterResult struct {
	Profile *wire.AgentProfile
	Spawn   *wire.AgentPosition
}

// Register joins an agent to the world, applying the join immediately so
// the caller learns its spawn point. Re-registering an existing id
// merges profile fields and never moves the agent.
func (h *Hub) Register(agentID string, upd *wire.ProfileUpdate, x, y, z, rotation *float64) (*RegisterResult, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()

	if agentID == "" {
		return nil, wire.Reject(wire.ErrInvalidAgentID)
	}
	if _, bad := h.banned[agentID]; bad {
		return nil, wire.Reject(wire.ErrAgentBanned)
	}

	wallet := ""
	if upd != nil {
		wallet = upd.WalletAddress
	}
	existing := h.reg.Get(agentID)
	if wallet == "" {
		if existing == nil || existing.WalletAddress == "" {
			return nil, wire.RejectHint(wire.ErrWalletRequired,
				"provide walletAddress (12-180 chars, no whitespace)")
		}
	} else if !registry.ValidWallet(wallet) {
		return nil, wire.RejectHint(wire.ErrWalletRequired,
			"walletAddress must be 12-180 characters with no whitespace")
	}

	if h.reg.IsPermanentlyDead(agentID) {
		return nil, &wire.CommandError{
			Token:     wire.ErrAgentDeadPermanent,
			Hint:      "this agent fell in battle; wait for the round reset",
			Permanent: true,
		}
	}
	if wallet != "" && h.reg.WalletBlocked(wallet) {
		return nil, wire.RejectHint(wire.ErrWalletOfDead,
			"this wallet is bound to a fallen agent until the round resets")
	}
	if wallet == "" && h.reg.SharesDeadWallet(agentID) {
		return nil, wire.RejectHint(wire.ErrWalletOfDead,
			"this wallet is bound to a fallen agent until the round resets")
	}
	if du := h.reg.DeadUntil(agentID); du > now {
		return nil, &wire.CommandError{Token: wire.ErrAgentDead, DeadUntil: du, RetryAfterMs: du - now}
	}
	if !h.arena.RegistrationOpen() {
		return nil, wire.RejectHint(wire.ErrSurvivalClosed,
			"the round has settled; registration reopens on reset")
	}
	if !h.world.HasPosition(agentID) && h.world.AgentCount() >= h.capacity {
		return nil, wire.Reject(wire.ErrRoomFull)
	}

	h.emitLocked(&wire.Message{
		Type:      wire.TypeJoin,
		AgentID:   agentID,
		Timestamp: now,
		Profile:   upd,
		X:         x,
		Y:         y,
		Z:         z,
		Rotation:  rotation,
	})
	return &RegisterResult{
		Profile: h.reg.Get(agentID),
		Spawn:   h.world.Position(agentID),
	}, nil
}

// Leave removes the agent from the world. A duel in progress ends as a
// disconnect. Idempotent for agents already gone.
func (h *Hub) Leave(agentID string) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.gateLocked(agentID, now); err != nil {
		return err
	}
	h.battles.HandleAgentLeave(agentID)
	h.queue.PruneAgent(agentID)
	if h.world.HasPosition(agentID) {
		h.emitLocked(&wire.Message{Type: wire.TypeLeave, AgentID: agentID, Timestamp: now})
	}
	return nil
}

// --- Movement & Expression (queue path) ---

func (h *Hub) Move(agentID string, x, y, z, rotation *float64) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.presentLocked(agentID, now); err != nil {
		return err
	}
	if id, in := h.battles.InBattle(agentID); in {
		return wire.RejectHint(wire.ErrAgentInBattle, "cannot move during battle "+id)
	}
	return h.queue.Enqueue(&wire.Message{
		Type:      wire.TypePosition,
		AgentID:   agentID,
		Timestamp: now,
		X:         x,
		Y:         y,
		Z:         z,
		Rotation:  rotation,
	})
}

func (h *Hub) Action(agentID, action string) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.presentLocked(agentID, now); err != nil {
		return err
	}
	if !wire.ValidAction(action) {
		return wire.RejectHint(wire.ErrInvalidArgs,
			"action must be one of walk, idle, wave, pinch, talk, dance, backflip, spin")
	}
	return h.queue.Enqueue(&wire.Message{
		Type:      wire.TypeAction,
		AgentID:   agentID,
		Timestamp: now,
		Action:    action,
	})
}

// Chat truncates to the wire limit rather than rejecting; the returned
// string is what actually entered the world.
func (h *Hub) Chat(agentID, text string) (string, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.presentLocked(agentID, now); err != nil {
		return "", err
	}
	if runes := []rune(text); len(runes) > wire.MaxChatLength {
		text = string(runes[:wire.MaxChatLength])
	}
	err := h.queue.Enqueue(&wire.Message{
		Type:      wire.TypeChat,
		AgentID:   agentID,
		Timestamp: now,
		Text:      text,
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (h *Hub) Emote(agentID, emote string) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.presentLocked(agentID, now); err != nil {
		return err
	}
	if !wire.ValidEmote(emote) {
		return wire.RejectHint(wire.ErrInvalidArgs,
			"emote must be one of happy, thinking, surprised, laugh")
	}
	return h.queue.Enqueue(&wire.Message{
		Type:      wire.TypeEmote,
		AgentID:   agentID,
		Timestamp: now,
		Emote:     emote,
	})
}

// Whisper is private: it rides the ring scoped to sender and target and
// never reaches observers.
func (h *Hub) Whisper(agentID, targetID, text string) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.presentLocked(agentID, now); err != nil {
		return err
	}
	if targetID == "" || !h.reg.Exists(targetID) {
		return wire.Reject(wire.ErrUnknownTarget)
	}
	return h.queue.Enqueue(&wire.Message{
		Type:      wire.TypeWhisper,
		AgentID:   agentID,
		Timestamp: now,
		TargetID:  targetID,
		Text:      text,
	})
}

// --- Battle ---

func (h *Hub) StartBattle(agentID, targetID string) (*wire.BattleState, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.gateLocked(agentID, now); err != nil {
		return nil, err
	}
	rec, err := h.battles.Start(agentID, targetID)
	if err != nil {
		return nil, err
	}
	return h.battles.StateOf(rec.ID), nil
}

func (h *Hub) SubmitIntent(agentID, battleID, intent string) (*battle.SubmitResult, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.gateLocked(agentID, now); err != nil {
		return nil, err
	}
	return h.battles.SubmitIntent(agentID, h.resolveBattleLocked(agentID, battleID), wire.Intent(intent))
}

func (h *Hub) Truce(agentID, battleID string) (bool, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.gateLocked(agentID, now); err != nil {
		return false, err
	}
	return h.battles.ProposeTruce(agentID, h.resolveBattleLocked(agentID, battleID))
}

func (h *Hub) Surrender(agentID, battleID string) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.gateLocked(agentID, now); err != nil {
		return err
	}
	return h.battles.Surrender(agentID, h.resolveBattleLocked(agentID, battleID))
}

// resolveBattleLocked lets battle verbs omit the battle id when the
// agent is in exactly one.
func (h *Hub) resolveBattleLocked(agentID, battleID string) string {
	if battleID != "" {
		return battleID
	}
	if id, ok := h.battles.InBattle(agentID); ok {
		return id
	}
	return ""
}

// RefusePrize opts the agent out of the pool: it can no longer start
// battles or strike, and it stops counting as an eligible winner.
func (h *Hub) RefusePrize(agentID string) (wire.SurvivalState, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.gateLocked(agentID, now); err != nil {
		return wire.SurvivalState{}, err
	}
	if !h.reg.SetRefusedPrize(agentID, true, now) {
		return wire.SurvivalState{}, wire.Reject(wire.ErrUnknownAgent)
	}
	h.infolog("agent %s refused the prize", agentID)
	h.arena.AfterRefusal(now)
	return h.arena.SurvivalState(), nil
}

// --- Alliances ---

func (h *Hub) InviteAlliance(fromID, toID string) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.presentLocked(fromID, now); err != nil {
		return err
	}
	if toID == "" || !h.reg.Exists(toID) || h.reg.IsPermanentlyDead(toID) {
		return wire.Reject(wire.ErrUnknownTarget)
	}
	return h.arena.Invite(fromID, toID, now)
}

func (h *Hub) AcceptAlliance(agentID string) (*arena.Alliance, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.presentLocked(agentID, now); err != nil {
		return nil, err
	}
	return h.arena.Accept(agentID, now)
}

func (h *Hub) LeaveAlliance(agentID string) *wire.CommandError {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	if err := h.gateLocked(agentID, now); err != nil {
		return err
	}
	return h.arena.LeaveAlliance(agentID, now)
}

// --- Betting ---

// PlaceBet validates a spectator bet and emits it into the event
// stream; settlement is the payout collaborator's problem. The txHash
// filter only guards against double submission in flight.
func (h *Hub) PlaceBet(onAgentID string, amount float64, txHash, wallet string) (string, *wire.CommandError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()

	if onAgentID == "" || !h.reg.Exists(onAgentID) {
		return "", wire.Reject(wire.ErrUnknownTarget)
	}
	if h.reg.IsPermanentlyDead(onAgentID) {
		return "", &wire.CommandError{Token: wire.ErrAgentDeadPermanent, Permanent: true}
	}
	switch h.arena.SurvivalState().Status {
	case wire.SurvivalWinner, wire.SurvivalRefused, wire.SurvivalTimerEnded:
		return "", wire.RejectHint(wire.ErrSurvivalClosed, "betting closed, round settled")
	}
	if !registry.ValidWallet(wallet) {
		return "", wire.Reject(wire.ErrWalletRequired)
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return "", wire.RejectHint(wire.ErrInvalidArgs, "amount must be a positive number")
	}
	if txHash == "" {
		return "", wire.RejectHint(wire.ErrInvalidArgs, "txHash required")
	}
	if _, dup := h.betTx[txHash]; dup {
		return "", wire.Reject(wire.ErrDuplicateTx)
	}
	h.betTx[txHash] = now

	betID := uuid.NewString()
	h.emitLocked(&wire.Message{
		Type:      wire.TypeBet,
		AgentID:   onAgentID,
		Timestamp: now,
		Bet: &wire.BetEvent{
			BetID:   betID,
			OnAgent: onAgentID,
			Amount:  amount,
			TxHash:  txHash,
			Wallet:  wallet,
		},
	})
	return betID, nil
}

// --- Admin ---

func (h *Hub) StartSurvival(durationMs int64, prizePoolUsd float64) wire.SurvivalState {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowLocked()
	st := h.arena.StartRound(durationMs, prizePoolUsd, now)
	h.infolog("survival round started (duration=%dms prize=%.2f)", durationMs, prizePoolUsd)
	return st
}

func (h *Hub) EndSurvival() wire.SurvivalState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.arena.EndRound(h.nowLocked())
}

func (h *Hub) ResetSurvival() wire.SurvivalState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.arena.Reset(h.nowLocked())
	h.infolog("survival round reset")
	return st
}

func (h *Hub) Revive(agentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reg.Revive(agentID, h.nowLocked())
}

func (h *Hub) ForcePhase(phase string) (wire.PhaseState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ok := h.arena.ForcePhase(wire.PhaseName(phase), h.nowLocked())
	return h.arena.PhaseState(), ok
}

func (h *Hub) SetBanned(agentID string, banned bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if banned {
		h.banned[agentID] = struct{}{}
	} else {
		delete(h.banned, agentID)
	}
}
