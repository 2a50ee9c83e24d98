package wire

// --- Identity & Stats ---

type Skill struct {
	SkillID     string `json:"skillId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CombatStats struct {
	Wins             int   `json:"wins"`
	Losses           int   `json:"losses"`
	Kills            int   `json:"kills"`
	Deaths           int   `json:"deaths"`
	Guilt            int   `json:"guilt"`
	RefusedPrize     bool  `json:"refusedPrize"`
	PermanentlyDead  bool  `json:"permanentlyDead"`
	DeathPermanentAt int64 `json:"deathPermanentAt,omitempty"`
	LastDeathAt      int64 `json:"lastDeathAt,omitempty"`
	DeadUntil        int64 `json:"deadUntil,omitempty"`
}

type AgentProfile struct {
	AgentID       string      `json:"agentId"`
	Name          string      `json:"name"`
	WalletAddress string      `json:"walletAddress"`
	Color         string      `json:"color,omitempty"`
	Bio           string      `json:"bio,omitempty"`
	Capabilities  []string    `json:"capabilities,omitempty"`
	Skills        []Skill     `json:"skills,omitempty"`
	JoinedAt      int64       `json:"joinedAt"`
	LastSeen      int64       `json:"lastSeen"`
	Combat        CombatStats `json:"combat"`
}

// ProfileUpdate is the mutable subset carried by join and profile messages.
// Nil fields leave the stored profile untouched.
type ProfileUpdate struct {
	Name          string   `json:"name,omitempty"`
	WalletAddress string   `json:"walletAddress,omitempty"`
	Color         string   `json:"color,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
	Skills        []Skill  `json:"skills,omitempty"`
}

// --- Spatial ---

type AgentPosition struct {
	AgentID   string  `json:"agentId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Rotation  float64 `json:"rotation"`
	Timestamp int64   `json:"timestamp"`
}

type Obstacle struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
}

// --- Phase & Survival ---

type PhaseName string

const (
	PhaseLobby    PhaseName = "lobby"
	PhaseBattle   PhaseName = "battle"
	PhaseShowdown PhaseName = "showdown"
)

// CombatAllowed reports whether duels may start in this phase.
func (p PhaseName) CombatAllowed() bool {
	return p == PhaseBattle || p == PhaseShowdown
}

type PhaseState struct {
	Phase          PhaseName `json:"phase"`
	SafeZoneRadius float64   `json:"safeZoneRadius"`
	EndsAt         int64     `json:"endsAt"`
	RoundNumber    int       `json:"roundNumber"`
}

type SurvivalStatus string

const (
	SurvivalWaiting    SurvivalStatus = "waiting"
	SurvivalActive     SurvivalStatus = "active"
	SurvivalWinner     SurvivalStatus = "winner"
	SurvivalRefused    SurvivalStatus = "refused"
	SurvivalTimerEnded SurvivalStatus = "timer_ended"
)

type SurvivalState struct {
	Status          SurvivalStatus `json:"status"`
	PrizePoolUsd    float64        `json:"prizePoolUsd"`
	WinnerAgentID   string         `json:"winnerAgentId,omitempty"`
	WinnerAgentIDs  []string       `json:"winnerAgentIds,omitempty"`
	RefusalAgentIDs []string       `json:"refusalAgentIds"`
	RoundStartedAt  int64          `json:"roundStartedAt,omitempty"`
	RoundEndsAt     int64          `json:"roundEndsAt,omitempty"`
	RoundDurationMs int64          `json:"roundDurationMs,omitempty"`
	SettledAt       int64          `json:"settledAt,omitempty"`
	Summary         string         `json:"summary,omitempty"`
}

// --- Room ---

type WorldConstants struct {
	WorldSize        int `json:"WORLD_SIZE"`
	BattleStartRange int `json:"BATTLE_START_RANGE"`
	ChatRange        int `json:"CHAT_RANGE"`
	AOIRadius        int `json:"AOI_RADIUS"`
	ProximityRadius  int `json:"PROXIMITY_RADIUS"`
	TickRate         int `json:"TICK_RATE"`
	TurnTimeoutMs    int `json:"TURN_TIMEOUT_MS"`
}

// Constants returns the fixed world parameters advertised in room info.
func Constants() WorldConstants {
	return WorldConstants{
		WorldSize:        WorldSize,
		BattleStartRange: BattleStartRange,
		ChatRange:        ChatRange,
		AOIRadius:        AOIRadius,
		ProximityRadius:  ProximityRadius,
		TickRate:         TickRate,
		TurnTimeoutMs:    TurnTimeoutMs,
	}
}

type RoomInfo struct {
	RoomID     string         `json:"roomId"`
	Name       string         `json:"name"`
	AgentCount int            `json:"agentCount"`
	Capacity   int            `json:"capacity"`
	Phase      PhaseState     `json:"phase"`
	Survival   SurvivalState  `json:"survival"`
	UptimeMs   int64          `json:"uptimeMs"`
	Constants  WorldConstants `json:"constants"`
}

// SnapshotAgent is one row of an observer snapshot: profile joined with the
// agent's live position and action.
type SnapshotAgent struct {
	Profile  AgentProfile   `json:"profile"`
	Position *AgentPosition `json:"position,omitempty"`
	Action   string         `json:"action,omitempty"`
}
