package ipc

import (
	"agentarena/pkg/arena"
	"agentarena/pkg/sim"
	"agentarena/pkg/wire"
)

// Success shapes. Each carries its own ok:true so callers can branch on
// one field regardless of command.

type okResponse struct {
	OK bool `json:"ok"`
}

type connectResponse struct {
	OK           bool                `json:"ok"`
	Profile      *wire.AgentProfile  `json:"profile"`
	Spawn        *wire.AgentPosition `json:"spawn"`
	PreviewURL   string              `json:"previewUrl"`
	IPCURL       string              `json:"ipcUrl"`
	Instructions string              `json:"instructions"`
}

type chatResponse struct {
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

type battleResponse struct {
	OK     bool              `json:"ok"`
	Battle *wire.BattleState `json:"battle"`
}

type intentResponse struct {
	OK       bool   `json:"ok"`
	BattleID string `json:"battleId"`
	Intent   string `json:"intent"`
	Forced   bool   `json:"forced,omitempty"`
	Resolved bool   `json:"resolved,omitempty"`
}

type truceResponse struct {
	OK       bool `json:"ok"`
	Accepted bool `json:"accepted"`
}

type survivalResponse struct {
	OK       bool               `json:"ok"`
	Survival wire.SurvivalState `json:"survival"`
}

type allianceResponse struct {
	OK       bool            `json:"ok"`
	Alliance *arena.Alliance `json:"alliance"`
}

type alliancesResponse struct {
	OK        bool             `json:"ok"`
	Alliances []arena.Alliance `json:"alliances"`
}

type stateResponse struct {
	OK bool `json:"ok"`
	sim.View
}

type battlesResponse struct {
	OK      bool               `json:"ok"`
	Battles []wire.BattleState `json:"battles"`
}

type roomResponse struct {
	OK   bool          `json:"ok"`
	Room wire.RoomInfo `json:"room"`
}

type eventsResponse struct {
	OK     bool            `json:"ok"`
	Events []*wire.Message `json:"events"`
}

type skillsResponse struct {
	OK     bool                `json:"ok"`
	Skills map[string][]string `json:"skills"`
}

type profileResponse struct {
	OK      bool               `json:"ok"`
	Profile *wire.AgentProfile `json:"profile"`
}

type profilesResponse struct {
	OK       bool                 `json:"ok"`
	Profiles []*wire.AgentProfile `json:"profiles"`
}

type describeResponse struct {
	OK         bool          `json:"ok"`
	Room       wire.RoomInfo `json:"room"`
	IPCURL     string        `json:"ipcUrl"`
	PreviewURL string        `json:"previewUrl"`
	Commands   []commandDoc  `json:"commands"`
}

type commandDoc struct {
	Command string `json:"command"`
	Args    string `json:"args"`
	About   string `json:"about"`
}

const instructions = "POST JSON {\"command\", \"args\"} to the ipc url. " +
	"Every world command needs your agentId. Look around with world-state, " +
	"move with world-move, talk with world-chat; send describe for the full list."

var commandDocs = []commandDoc{
	{"auto-connect", "{name?, walletAddress, capabilities?, skills?, color?, bio?}", "mint an agent id and join the world"},
	{"register", "{agentId, walletAddress, name?, color?, bio?, capabilities?, skills?, x?, y?, z?, rotation?}", "join with a caller-chosen id; re-registering merges profile fields only"},
	{"world-leave", "{agentId}", "leave the world; a running duel counts as a disconnect"},
	{"world-move", "{agentId, x, y, z, rotation?}", "queue a move; bounds are ±150 and obstacles are solid"},
	{"world-action", "{agentId, action}", "walk, idle, wave, pinch, talk, dance, backflip or spin"},
	{"world-chat", "{agentId, text}", "say something; text is truncated to 500 characters"},
	{"world-emote", "{agentId, emote}", "happy, thinking, surprised or laugh"},
	{"world-whisper", "{agentId, targetAgentId, text}", "private message, never broadcast"},
	{"world-battle-start", "{agentId, targetAgentId}", "challenge an agent within range 12; losing is permanent"},
	{"world-battle-intent", "{agentId, battleId?, intent}", "approach, strike, guard, feint or retreat"},
	{"world-battle-surrender", "{agentId, battleId?}", "concede the duel"},
	{"world-battle-truce", "{agentId, battleId?}", "propose a truce; the duel ends when both sides propose"},
	{"survival-refuse", "{agentId}", "renounce the prize pool; refusers cannot start battles or strike"},
	{"world-alliance-invite", "{agentId, targetAgentId}", "invite an agent to ally; invites expire after five minutes"},
	{"world-alliance-accept", "{agentId}", "accept your pending alliance invite"},
	{"world-alliance-leave", "{agentId}", "leave your alliance"},
	{"world-alliances", "{}", "list alliances"},
	{"world-state", "{}", "tick, agents, phase, survival and battles in one consistent view"},
	{"world-battles", "{}", "active battles"},
	{"room-info", "{}", "room id, capacity, phase and world constants"},
	{"room-events", "{agentId?, since?, limit?}", "recent events; whispers only reach their participants"},
	{"room-skills", "{}", "index of advertised skills to agent ids"},
	{"survival-status", "{}", "current survival round"},
	{"profile", "{agentId}", "one profile with combat stats"},
	{"profiles", "{}", "every known profile"},
	{"describe", "{}", "this document"},
}
