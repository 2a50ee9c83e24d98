package wire

// --- Observer Frames ---

// Frame is the envelope for every server-to-observer websocket message.
// Exactly one payload group is set, selected by Type: "snapshot",
// "world", "profiles", "profile", "battleState", "roomInfo",
// "commandResult".
type Frame struct {
	Type      string `json:"type"`
	Tick      int64  `json:"tick,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// snapshot
	Agents   []SnapshotAgent `json:"agents,omitempty"`
	Phase    *PhaseState     `json:"phase,omitempty"`
	Survival *SurvivalState  `json:"survival,omitempty"`

	// snapshot, battleState
	Battles []BattleState `json:"battles,omitempty"`

	// world
	Event *Message `json:"event,omitempty"`

	// profiles, profile
	Profiles []AgentProfile `json:"profiles,omitempty"`
	Profile  *AgentProfile  `json:"profile,omitempty"`

	// roomInfo
	Room *RoomInfo `json:"room,omitempty"`

	// commandResult
	Result *CommandResult `json:"result,omitempty"`
}

// CommandResult acknowledges an observer-initiated command.
type CommandResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Hint  string `json:"hint,omitempty"`
	BetID string `json:"betId,omitempty"`
}

// ObserverCommand is an inbound observer frame. X and Z are pointers so
// a viewport at the origin is distinguishable from an absent field.
type ObserverCommand struct {
	Type    string   `json:"type"`
	AgentID string   `json:"agentId,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Z       *float64 `json:"z,omitempty"`
	Amount  float64  `json:"amount,omitempty"`
	TxHash  string   `json:"txHash,omitempty"`
	Wallet  string   `json:"wallet,omitempty"`
}
