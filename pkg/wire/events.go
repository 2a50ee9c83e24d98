package wire

// --- Battle ---

type Intent string

const (
	IntentApproach Intent = "approach"
	IntentStrike   Intent = "strike"
	IntentGuard    Intent = "guard"
	IntentFeint    Intent = "feint"
	IntentRetreat  Intent = "retreat"
)

func ValidIntent(i string) bool {
	switch Intent(i) {
	case IntentApproach, IntentStrike, IntentGuard, IntentFeint, IntentRetreat:
		return true
	}
	return false
}

type BattlePhase string

const (
	BattleStarted BattlePhase = "started"
	BattleIntent  BattlePhase = "intent"
	BattleRound   BattlePhase = "round"
	BattleEnded   BattlePhase = "ended"
)

type EndReason string

const (
	EndKO         EndReason = "ko"
	EndDraw       EndReason = "draw"
	EndFlee       EndReason = "flee"
	EndTruce      EndReason = "truce"
	EndSurrender  EndReason = "surrender"
	EndDisconnect EndReason = "disconnect"
)

// BattleEvent is the payload of battle messages across all four phases.
// Which fields are present depends on Phase.
type BattleEvent struct {
	Phase        BattlePhase        `json:"phase"`
	BattleID     string             `json:"battleId"`
	Participants []string           `json:"participants"`
	Turn         int                `json:"turn,omitempty"`
	HP           map[string]int     `json:"hp,omitempty"`
	Stamina      map[string]int     `json:"stamina,omitempty"`
	Power        map[string]float64 `json:"power,omitempty"`
	Intents      map[string]Intent  `json:"intents,omitempty"`
	Forced       []string           `json:"forced,omitempty"`   // intents downgraded to guard
	TimedOut     []string           `json:"timedOut,omitempty"` // guard assigned by timeout
	Damage       map[string]int     `json:"damage,omitempty"`
	ReadBonus    map[string]int     `json:"readBonus,omitempty"`
	TruceBy      string             `json:"truceBy,omitempty"`
	Reason       EndReason          `json:"reason,omitempty"`
	WinnerID     string             `json:"winnerId,omitempty"`
	LoserID      string             `json:"loserId,omitempty"`
	DefeatedIDs  []string           `json:"defeatedIds,omitempty"`
	Summary      string             `json:"summary,omitempty"`
}

// BattleState is the observer-facing view of one active duel.
type BattleState struct {
	BattleID      string         `json:"battleId"`
	Participants  []string       `json:"participants"`
	HP            map[string]int `json:"hp"`
	Stamina       map[string]int `json:"stamina"`
	Turn          int            `json:"turn"`
	TurnStartedAt int64          `json:"turnStartedAt"`
	StartedAt     int64          `json:"startedAt"`
}

// --- Alliance ---

type AllianceEvent struct {
	Action     string   `json:"action"` // invited, formed, joined, left, trimmed, dissolved
	AllianceID string   `json:"allianceId"`
	Members    []string `json:"members,omitempty"`
	Removed    []string `json:"removed,omitempty"`
}

// --- Phase & Zone ---

type PhaseEvent struct {
	Phase          PhaseName      `json:"phase"`
	RoundNumber    int            `json:"roundNumber"`
	EndsAt         int64          `json:"endsAt"`
	SafeZoneRadius float64        `json:"safeZoneRadius"`
	Survival       *SurvivalState `json:"survival,omitempty"`
}

type TerritoryEvent struct {
	CenterX float64 `json:"centerX"`
	CenterZ float64 `json:"centerZ"`
	Radius  float64 `json:"radius"`
}

type ZoneDamageEvent struct {
	Damage      int     `json:"damage"`
	Accumulated int     `json:"accumulated"`
	Radius      float64 `json:"radius"`
	Eliminated  bool    `json:"eliminated,omitempty"`
}

// --- Betting ---

type BetEvent struct {
	BetID   string  `json:"betId"`
	OnAgent string  `json:"onAgentId"`
	Amount  float64 `json:"amount"`
	TxHash  string  `json:"txHash"`
	Wallet  string  `json:"wallet"`
}
