package wire

// --- Error Tokens ---

// Queue admission reasons.
const (
	ErrInvalidAgentID   = "invalid_agent_id"
	ErrInvalidTimestamp = "invalid_timestamp"
	ErrRateLimited      = "rate_limited"
	ErrInvalidPosition  = "invalid_position"
	ErrOutOfBounds      = "out_of_bounds"
	ErrCollision        = "collision"
	ErrInvalidText      = "invalid_text"
	ErrTextTooLong      = "text_too_long"
	ErrQueueFull        = "queue_full"
)

// Policy and lifecycle reasons surfaced by the command handler.
const (
	ErrAgentDead           = "agent_dead"
	ErrAgentDeadPermanent  = "agent_dead_permanent"
	ErrAgentBanned         = "agent_banned"
	ErrAgentInBattle       = "agent_in_battle"
	ErrSurvivalClosed      = "survival_round_closed"
	ErrCombatPhaseLocked   = "combat_phase_locked"
	ErrCannotAttackAlly    = "cannot_attack_ally"
	ErrUnknownTarget       = "unknown_target_agent"
	ErrTooFar              = "too_far"
	ErrInvalidIntent       = "invalid_intent"
	ErrRefusedViolence     = "agent_refused_violence"
	ErrWalletRequired      = "wallet_address_required"
	ErrWalletOfDead        = "wallet_belongs_to_dead_agent"
	ErrRoomFull            = "Room is full"
	ErrUnknownAgent        = "unknown_agent"
	ErrUnknownCommand      = "unknown_command"
	ErrBattleNotFound      = "battle_not_found"
	ErrDuplicateTx         = "duplicate_txHash_in_flight"
	ErrInvalidArgs         = "invalid_args"
	ErrAlreadySubmitted    = "intent_already_submitted"
	ErrNotParticipant      = "not_a_participant"
	ErrAllianceNotFound    = "alliance_not_found"
	ErrNoInvite            = "no_pending_invite"
	ErrAlreadyAllied       = "already_allied"
)

// CommandError is a rejection that crosses the wire as the structured
// envelope {ok:false, error, hint?, deadUntil?, retryAfterMs?, permanent?}.
type CommandError struct {
	Token        string `json:"error"`
	Hint         string `json:"hint,omitempty"`
	DeadUntil    int64  `json:"deadUntil,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
	Permanent    bool   `json:"permanent,omitempty"`
}

func (e *CommandError) Error() string { return e.Token }

// Reject builds a bare token error.
func Reject(token string) *CommandError { return &CommandError{Token: token} }

// RejectHint builds a token error with a human hint.
func RejectHint(token, hint string) *CommandError {
	return &CommandError{Token: token, Hint: hint}
}

// ErrorBody is the uniform failure response. Success responses are
// command-specific shapes that carry their own ok:true.
type ErrorBody struct {
	OK           bool   `json:"ok"`
	Error        string `json:"error"`
	Hint         string `json:"hint,omitempty"`
	DeadUntil    int64  `json:"deadUntil,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
	Permanent    bool   `json:"permanent,omitempty"`
}

// Body converts the error into its wire shape.
func (e *CommandError) Body() ErrorBody {
	return ErrorBody{
		Error:        e.Token,
		Hint:         e.Hint,
		DeadUntil:    e.DeadUntil,
		RetryAfterMs: e.RetryAfterMs,
		Permanent:    e.Permanent,
	}
}
