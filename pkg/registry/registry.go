// Package registry owns agent profiles and their durable combat stats. The
// in-memory map is authoritative; a background flusher snapshots it to disk
// with a debounce so bursts of mutations coalesce into one write.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"agentarena/pkg/wire"
)

const (
	snapshotFile = "profiles.json"
	debounceMs   = 5_000
)

type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*wire.AgentProfile
	wallets  map[string]map[string]struct{} // wallet -> agent ids
	path     string
	dirty    bool
	dirtyAt  int64
	errlog   func(format string, v ...any)
}

// New creates a registry persisting under dir. errlog receives flush and
// load failures; it must not be nil.
func New(dir string, errlog func(format string, v ...any)) *Registry {
	return &Registry{
		profiles: make(map[string]*wire.AgentProfile),
		wallets:  make(map[string]map[string]struct{}),
		path:     filepath.Join(dir, snapshotFile),
		errlog:   errlog,
	}
}

// ValidWallet checks the wallet address contract: 12 to 180 characters,
// no whitespace.
func ValidWallet(w string) bool {
	if len(w) < wire.MinWalletLength || len(w) > wire.MaxWalletLength {
		return false
	}
	return !strings.ContainsAny(w, " \t\r\n")
}

// Load restores the profile snapshot if one exists.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read profiles: %w", err)
	}
	var list []*wire.AgentProfile
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode profiles: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range list {
		if p.AgentID == "" {
			continue
		}
		r.profiles[p.AgentID] = p
		r.indexWallet(p.WalletAddress, p.AgentID)
	}
	return nil
}

func (r *Registry) indexWallet(wallet, agentID string) {
	if wallet == "" {
		return
	}
	set := r.wallets[wallet]
	if set == nil {
		set = make(map[string]struct{})
		r.wallets[wallet] = set
	}
	set[agentID] = struct{}{}
}

// Merge creates the profile on first sight and otherwise folds the update
// into it. Combat stats and join time are never overwritten by a merge.
func (r *Registry) Merge(agentID string, upd *wire.ProfileUpdate, nowMs int64) *wire.AgentProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.profiles[agentID]
	if p == nil {
		p = &wire.AgentProfile{AgentID: agentID, JoinedAt: nowMs}
		r.profiles[agentID] = p
	}
	if upd != nil {
		if upd.Name != "" {
			p.Name = upd.Name
		}
		if upd.WalletAddress != "" && p.WalletAddress == "" {
			p.WalletAddress = upd.WalletAddress
			r.indexWallet(upd.WalletAddress, agentID)
		}
		if upd.Color != "" {
			p.Color = upd.Color
		}
		if upd.Bio != "" {
			p.Bio = upd.Bio
		}
		if upd.Capabilities != nil {
			p.Capabilities = append([]string(nil), upd.Capabilities...)
		}
		if upd.Skills != nil {
			p.Skills = append([]wire.Skill(nil), upd.Skills...)
		}
	}
	p.LastSeen = nowMs
	r.markDirty(nowMs)
	return cloneProfile(p)
}

// Touch refreshes lastSeen without other changes.
func (r *Registry) Touch(agentID string, nowMs int64) {
	r.mu.Lock()
	if p := r.profiles[agentID]; p != nil {
		p.LastSeen = nowMs
		r.markDirty(nowMs)
	}
	r.mu.Unlock()
}

// Get returns a copy, or nil when unknown.
func (r *Registry) Get(agentID string) *wire.AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.profiles[agentID]
	if p == nil {
		return nil
	}
	return cloneProfile(p)
}

func (r *Registry) Exists(agentID string) bool {
	r.mu.RLock()
	_, ok := r.profiles[agentID]
	r.mu.RUnlock()
	return ok
}

// All returns copies of every profile, ordered by agent id.
func (r *Registry) All() []*wire.AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*wire.AgentProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, cloneProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// SeenWithin returns ids whose lastSeen falls inside the window.
func (r *Registry) SeenWithin(nowMs, windowMs int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, p := range r.profiles {
		if nowMs-p.LastSeen <= windowMs {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func cloneProfile(p *wire.AgentProfile) *wire.AgentProfile {
	cp := *p
	cp.Capabilities = append([]string(nil), p.Capabilities...)
	cp.Skills = append([]wire.Skill(nil), p.Skills...)
	return &cp
}
