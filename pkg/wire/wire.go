// Package wire holds the message vocabulary shared by the world server, its
// agents and its observers. Everything in here crosses a process boundary as
// JSON, so field names are part of the protocol.
package wire

// --- World Constants ---

// Values that appear on the wire and in client math. Changing any of these is
// a protocol change.
const (
	WorldSize        = 300 // island edge length, bounds are [-150, 150]
	HalfWorld        = WorldSize / 2
	BattleStartRange = 12
	ChatRange        = 20
	AOIRadius        = 40
	ProximityRadius  = 60
	TickRate         = 20 // simulation steps per second
	TickMillis       = 1000 / TickRate

	TurnTimeoutMs    = 30_000
	SnapshotInterval = TickRate * 5 // ticks between observer snapshots

	EventRingSize  = 200
	QueueCapacity  = 10_000
	AgentRateLimit = 20 // commands per sliding second

	SpawnRadius      = 35.0
	SpawnMargin      = 6.0
	SpawnMinGap      = 4.8
	SpawnAttempts    = 48
	ReservationMs    = 20_000
	OnlineWindowMs   = 5 * 60 * 1000
	MaxChatLength    = 500
	MaxInboundFrame  = 64 * 1024
	MaxWalletLength  = 180
	MinWalletLength  = 12
	RateBucketIdleMs = 5_000
)

// --- Message Types ---

type MessageType string

const (
	TypePosition   MessageType = "position"
	TypeAction     MessageType = "action"
	TypeEmote      MessageType = "emote"
	TypeChat       MessageType = "chat"
	TypeJoin       MessageType = "join"
	TypeLeave      MessageType = "leave"
	TypeProfile    MessageType = "profile"
	TypeBattle     MessageType = "battle"
	TypeAlliance   MessageType = "alliance"
	TypePhase      MessageType = "phase"
	TypeWhisper    MessageType = "whisper"
	TypeBet        MessageType = "bet"
	TypeTerritory  MessageType = "territory"
	TypeZoneDamage MessageType = "zone_damage"
)

// RateLimited reports whether the per-agent sliding window applies to this
// message type. Join, leave and battle traffic is never throttled.
func (t MessageType) RateLimited() bool {
	switch t {
	case TypePosition, TypeAction, TypeChat, TypeEmote:
		return true
	}
	return false
}

// Positional reports whether the message only updates transient per-agent
// state and therefore stays out of the event ring.
func (t MessageType) Positional() bool {
	return t == TypePosition || t == TypeAction
}

// --- Agent Vocabulary ---

var validActions = map[string]bool{
	"walk": true, "idle": true, "wave": true, "pinch": true,
	"talk": true, "dance": true, "backflip": true, "spin": true,
}

var validEmotes = map[string]bool{
	"happy": true, "thinking": true, "surprised": true, "laugh": true,
}

func ValidAction(a string) bool { return validActions[a] }
func ValidEmote(e string) bool  { return validEmotes[e] }

// --- Message ---

// Message is the single tagged union that flows through the command queue,
// the event ring and the observer stream. Variant-specific fields are
// pointers or omitempty so each variant marshals to its own shape.
type Message struct {
	Type      MessageType `json:"worldType"`
	AgentID   string      `json:"agentId"`
	Timestamp int64       `json:"timestamp"`

	// position, and spawn hints on join
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Z        *float64 `json:"z,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`

	Action   string `json:"action,omitempty"`
	Text     string `json:"text,omitempty"`
	Emote    string `json:"emote,omitempty"`
	TargetID string `json:"targetAgentId,omitempty"`

	Profile    *ProfileUpdate   `json:"profile,omitempty"`
	Battle     *BattleEvent     `json:"battle,omitempty"`
	Alliance   *AllianceEvent   `json:"alliance,omitempty"`
	Phase      *PhaseEvent      `json:"phase,omitempty"`
	Bet        *BetEvent        `json:"bet,omitempty"`
	Territory  *TerritoryEvent  `json:"territory,omitempty"`
	ZoneDamage *ZoneDamageEvent `json:"zoneDamage,omitempty"`
}

// Float returns a pointer for optional numeric wire fields.
func Float(v float64) *float64 { return &v }
