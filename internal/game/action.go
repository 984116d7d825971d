package game

// ActionType names an action a client can send
type ActionType string

const (
	ActionStartGame     ActionType = "start_game"
	ActionBeginGuessing ActionType = "begin_guessing"
	ActionSubmitGuess   ActionType = "submit_guess"
	ActionEndRound      ActionType = "end_round"
	ActionEndGame       ActionType = "end_game"
)

// Action is a request to move the game forward. Only the fields relevant to
// Type are read.
type Action struct {
	Type      ActionType `json:"type"`
	RequestID string     `json:"requestId,omitempty"` // client-generated idempotency key
	TeamOrder []int64    `json:"teamOrder,omitempty"` // start_game
	TeamID    int64      `json:"teamId,omitempty"`    // submit_guess
	Correct   bool       `json:"correct,omitempty"`   // submit_guess

	// Round, when set, is the round the sender saw. The action is rejected
	// if the game has moved on since.
	Round int `json:"round,omitempty"`
}

// Validate checks the action is well formed, independent of any state
func (a Action) Validate() error {
	switch a.Type {
	case ActionStartGame:
		if len(a.TeamOrder) == 0 {
			return Validation("start_game requires a non-empty teamOrder")
		}
		seen := make(map[int64]bool, len(a.TeamOrder))
		for _, id := range a.TeamOrder {
			if id <= 0 {
				return Validation("invalid team id %d in teamOrder", id)
			}
			if seen[id] {
				return Validation("team %d appears twice in teamOrder", id)
			}
			seen[id] = true
		}
	case ActionSubmitGuess:
		if a.TeamID <= 0 {
			return Validation("submit_guess requires a teamId")
		}
	case ActionBeginGuessing, ActionEndRound, ActionEndGame:
	case "":
		return Validation("action type is required")
	default:
		return Validation("unknown action type %q", a.Type)
	}
	if a.Round < 0 {
		return Validation("round must not be negative")
	}
	if len(a.RequestID) > 128 {
		return Validation("requestId too long")
	}
	return nil
}
