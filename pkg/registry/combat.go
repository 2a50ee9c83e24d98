package registry

import (
	"sort"

	"agentarena/pkg/wire"
)

// --- Combat Stats & Death ---

// ApplyKO books a finished knockout: the winner gains kills, wins and guilt
// by the number of defeated agents (at least one), each defeated agent gains
// a loss and a death.
func (r *Registry) ApplyKO(winnerID string, defeated []string, nowMs int64) {
	n := len(defeated)
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if w := r.profiles[winnerID]; w != nil {
		w.Combat.Kills += n
		w.Combat.Wins += n
		w.Combat.Guilt += n
	}
	for _, id := range defeated {
		if p := r.profiles[id]; p != nil {
			p.Combat.Losses++
			p.Combat.Deaths++
			p.Combat.LastDeathAt = nowMs
		}
	}
	r.markDirty(nowMs)
}

// MarkPermanentlyDead flags the profile; from here on no command for the
// agent id, or for any id bound to the same wallet, succeeds.
func (r *Registry) MarkPermanentlyDead(agentID string, nowMs int64) {
	r.mu.Lock()
	if p := r.profiles[agentID]; p != nil {
		p.Combat.PermanentlyDead = true
		p.Combat.DeathPermanentAt = nowMs
		if p.Combat.LastDeathAt == 0 {
			p.Combat.LastDeathAt = nowMs
		}
		r.markDirty(nowMs)
	}
	r.mu.Unlock()
}

func (r *Registry) IsPermanentlyDead(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.profiles[agentID]
	return p != nil && p.Combat.PermanentlyDead
}

// DeadUntil returns the temporary death deadline, zero when none.
func (r *Registry) DeadUntil(agentID string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p := r.profiles[agentID]; p != nil {
		return p.Combat.DeadUntil
	}
	return 0
}

// WalletBlocked reports whether the wallet belongs to any permanently dead
// profile.
func (r *Registry) WalletBlocked(wallet string) bool {
	if wallet == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.walletBlockedLocked(wallet)
}

func (r *Registry) walletBlockedLocked(wallet string) bool {
	for id := range r.wallets[wallet] {
		if p := r.profiles[id]; p != nil && p.Combat.PermanentlyDead {
			return true
		}
	}
	return false
}

// SharesDeadWallet reports whether the agent's wallet is also bound to a
// permanently dead profile. The lockout extends to every id on the wallet,
// not just the one that died.
func (r *Registry) SharesDeadWallet(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.profiles[agentID]
	if p == nil || p.WalletAddress == "" {
		return false
	}
	return r.walletBlockedLocked(p.WalletAddress)
}

// SetRefusedPrize toggles the refusal flag.
func (r *Registry) SetRefusedPrize(agentID string, refused bool, nowMs int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[agentID]
	if p == nil {
		return false
	}
	p.Combat.RefusedPrize = refused
	r.markDirty(nowMs)
	return true
}

func (r *Registry) HasRefusedPrize(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.profiles[agentID]
	return p != nil && p.Combat.RefusedPrize
}

// RefusedIDs lists every agent currently refusing the prize, sorted.
func (r *Registry) RefusedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0)
	for id, p := range r.profiles {
		if p.Combat.RefusedPrize {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Revive clears the combat record of one agent. Returns false when the id
// is unknown.
func (r *Registry) Revive(agentID string, nowMs int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[agentID]
	if p == nil {
		return false
	}
	p.Combat = wire.CombatStats{}
	r.markDirty(nowMs)
	return true
}

// ReviveAll clears every combat record. Used by the survival reset.
func (r *Registry) ReviveAll(nowMs int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.profiles {
		if p.Combat != (wire.CombatStats{}) {
			p.Combat = wire.CombatStats{}
			n++
		}
	}
	if n > 0 {
		r.markDirty(nowMs)
	}
	return n
}

// Kills returns the kill count feeding the battle power multiplier.
func (r *Registry) Kills(agentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p := r.profiles[agentID]; p != nil {
		return p.Combat.Kills
	}
	return 0
}
