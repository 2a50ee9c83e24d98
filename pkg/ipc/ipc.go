// Package ipc is the agent command surface: one POST endpoint taking
// {command, args} envelopes. Args are decoded into a typed record at
// the boundary; nothing downstream sees raw JSON. Failures come back as
// the uniform {ok:false, error, hint?, ...} envelope with HTTP 200, the
// transport only speaks for itself on malformed requests.
package ipc

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	json "github.com/goccy/go-json"
	"lukechampine.com/blake3"

	"agentarena/pkg/metrics"
	"agentarena/pkg/sim"
	"agentarena/pkg/wire"
)

type Options struct {
	Hub       *sim.Hub
	PublicURL string
	InfoLog   func(format string, v ...any)
	ErrorLog  func(format string, v ...any)
}

type Handler struct {
	hub       *sim.Hub
	publicURL string
	infolog   func(format string, v ...any)
	errlog    func(format string, v ...any)
}

func New(opts Options) *Handler {
	return &Handler{
		hub:       opts.Hub,
		publicURL: opts.PublicURL,
		infolog:   opts.InfoLog,
		errlog:    opts.ErrorLog,
	}
}

type request struct {
	Command string `json:"command"`
	Args    args   `json:"args"`
}

// args is the union of every command's parameters. Coordinates are
// pointers so zero values survive the trip.
type args struct {
	AgentID       string       `json:"agentId"`
	Name          string       `json:"name"`
	WalletAddress string       `json:"walletAddress"`
	Color         string       `json:"color"`
	Bio           string       `json:"bio"`
	Capabilities  []string     `json:"capabilities"`
	Skills        []wire.Skill `json:"skills"`

	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Z        *float64 `json:"z"`
	Rotation *float64 `json:"rotation"`

	Action string `json:"action"`
	Text   string `json:"text"`
	Emote  string `json:"emote"`

	TargetAgentID string `json:"targetAgentId"`
	BattleID      string `json:"battleId"`
	Intent        string `json:"intent"`

	Since int64 `json:"since"`
	Limit int   `json:"limit"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, wire.MaxInboundFrame)

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reply(w, http.StatusBadRequest, wire.ErrInvalidArgs,
			wire.RejectHint(wire.ErrInvalidArgs, "body must be JSON {command, args}").Body())
		return
	}
	h.dispatch(w, req.Command, &req.Args)
}

func (h *Handler) dispatch(w http.ResponseWriter, command string, a *args) {
	switch command {
	case "auto-connect":
		h.connect(w, h.mintAgentID(a.WalletAddress), a)
	case "register":
		h.connect(w, a.AgentID, a)
	case "world-leave":
		if err := h.hub.Leave(a.AgentID); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})

	case "world-move":
		if err := h.hub.Move(a.AgentID, a.X, a.Y, a.Z, a.Rotation); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})
	case "world-action":
		if err := h.hub.Action(a.AgentID, a.Action); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})
	case "world-chat":
		text, err := h.hub.Chat(a.AgentID, a.Text)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, chatResponse{OK: true, Text: text})
	case "world-emote":
		if err := h.hub.Emote(a.AgentID, a.Emote); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})
	case "world-whisper":
		if err := h.hub.Whisper(a.AgentID, a.TargetAgentID, a.Text); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})

	case "world-battle-start":
		st, err := h.hub.StartBattle(a.AgentID, a.TargetAgentID)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, battleResponse{OK: true, Battle: st})
	case "world-battle-intent":
		res, err := h.hub.SubmitIntent(a.AgentID, a.BattleID, a.Intent)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, intentResponse{
			OK:       true,
			BattleID: res.BattleID,
			Intent:   string(res.Intent),
			Forced:   res.Forced,
			Resolved: res.Resolved,
		})
	case "world-battle-surrender":
		if err := h.hub.Surrender(a.AgentID, a.BattleID); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})
	case "world-battle-truce":
		accepted, err := h.hub.Truce(a.AgentID, a.BattleID)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, truceResponse{OK: true, Accepted: accepted})
	case "survival-refuse":
		st, err := h.hub.RefusePrize(a.AgentID)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, survivalResponse{OK: true, Survival: st})

	case "world-alliance-invite":
		if err := h.hub.InviteAlliance(a.AgentID, a.TargetAgentID); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})
	case "world-alliance-accept":
		al, err := h.hub.AcceptAlliance(a.AgentID)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, allianceResponse{OK: true, Alliance: al})
	case "world-alliance-leave":
		if err := h.hub.LeaveAlliance(a.AgentID); err != nil {
			h.fail(w, err)
			return
		}
		h.ok(w, okResponse{OK: true})
	case "world-alliances":
		h.ok(w, alliancesResponse{OK: true, Alliances: h.hub.Alliances()})

	case "world-state":
		h.ok(w, stateResponse{OK: true, View: h.hub.WorldView()})
	case "world-battles":
		h.ok(w, battlesResponse{OK: true, Battles: h.hub.Battles()})
	case "room-info":
		h.ok(w, roomResponse{OK: true, Room: h.hub.RoomInfo()})
	case "room-events":
		limit := a.Limit
		if limit <= 0 || limit > wire.EventRingSize {
			limit = wire.EventRingSize
		}
		h.ok(w, eventsResponse{OK: true, Events: h.hub.EventsFor(a.AgentID, a.Since, limit)})
	case "room-skills":
		h.ok(w, skillsResponse{OK: true, Skills: h.hub.SkillIndex()})
	case "survival-status":
		h.ok(w, survivalResponse{OK: true, Survival: h.hub.SurvivalState()})
	case "profile":
		p := h.hub.Profile(a.AgentID)
		if p == nil {
			h.fail(w, wire.Reject(wire.ErrUnknownAgent))
			return
		}
		h.ok(w, profileResponse{OK: true, Profile: p})
	case "profiles":
		h.ok(w, profilesResponse{OK: true, Profiles: h.hub.Profiles()})
	case "describe":
		h.ok(w, describeResponse{
			OK:         true,
			Room:       h.hub.RoomInfo(),
			IPCURL:     h.publicURL + "/ipc",
			PreviewURL: h.publicURL + "/",
			Commands:   commandDocs,
		})

	default:
		h.fail(w, wire.RejectHint(wire.ErrUnknownCommand, "send describe for the command list"))
	}
}

// connect finishes auto-connect and register: apply the join, then hand
// the agent everything it needs to act.
func (h *Handler) connect(w http.ResponseWriter, agentID string, a *args) {
	upd := &wire.ProfileUpdate{
		Name:          a.Name,
		WalletAddress: a.WalletAddress,
		Color:         a.Color,
		Bio:           a.Bio,
		Capabilities:  a.Capabilities,
		Skills:        a.Skills,
	}
	res, err := h.hub.Register(agentID, upd, a.X, a.Y, a.Z, a.Rotation)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.infolog("ipc: agent %s registered", agentID)
	h.ok(w, connectResponse{
		OK:           true,
		Profile:      res.Profile,
		Spawn:        res.Spawn,
		PreviewURL:   h.publicURL + "/?agent=" + agentID,
		IPCURL:       h.publicURL + "/ipc",
		Instructions: instructions,
	})
}

// mintAgentID derives a fresh id from the wallet and a random nonce.
func (h *Handler) mintAgentID(wallet string) string {
	for {
		nonce := make([]byte, 8)
		rand.Read(nonce)
		sum := blake3.Sum256([]byte(wallet + "|" + hex.EncodeToString(nonce)))
		id := "agent-" + hex.EncodeToString(sum[:])[:12]
		if h.hub.Profile(id) == nil {
			return id
		}
	}
}

func (h *Handler) ok(w http.ResponseWriter, v any) {
	h.reply(w, http.StatusOK, "ok", v)
}

func (h *Handler) fail(w http.ResponseWriter, e *wire.CommandError) {
	h.reply(w, http.StatusOK, e.Token, e.Body())
}

func (h *Handler) reply(w http.ResponseWriter, status int, result string, v any) {
	metrics.Commands.WithLabelValues(result).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.errlog("ipc: encode %s response: %v", result, err)
	}
}
