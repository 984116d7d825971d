// Package game holds the authoritative game state and the pure state machine
// that moves it from one round to the next.
package game

import "time"

// Phase is the lifecycle stage of a game
type Phase string

const (
	PhaseLobby       Phase = "LOBBY"
	PhasePicking     Phase = "PICKING"
	PhaseGuessing    Phase = "GUESSING"
	PhaseRoundResult Phase = "ROUND_RESULT" // reserved for clients that render a result screen
	PhaseFinished    Phase = "FINISHED"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhasePicking, PhaseGuessing, PhaseRoundResult, PhaseFinished:
		return true
	}
	return false
}

const (
	// MaxAttempts is the number of guesses a team gets per round
	MaxAttempts = 2

	// PickerBonusWindow is how long after the guessing window opens a correct
	// guess still earns the picker a point
	PickerBonusWindow = 50 * time.Second
)

// placementPoints are awarded to the 1st, 2nd and 3rd team to guess correctly
var placementPoints = []int{3, 2, 1}

// Guess is a single submission, in arrival order
type Guess struct {
	TeamID      int64     `json:"teamId"`
	SubmittedAt time.Time `json:"submittedAt"`
	Correct     bool      `json:"correct"`
}

// RoundResult summarises the scoring of a finished round
type RoundResult struct {
	Round        int           `json:"round"`
	PickerTeamID int64         `json:"pickerTeamId"`
	Awards       map[int64]int `json:"awards"`
	PickerBonus  bool          `json:"pickerBonus"`
}

// State is the single authoritative snapshot of a game
type State struct {
	GameID         string        `json:"gameId"`
	Revision       int64         `json:"revision"`
	Phase          Phase         `json:"phase"`
	Round          int           `json:"round"`
	PickerTeamID   int64         `json:"pickerTeamId"`
	RoundStartedAt time.Time     `json:"roundStartedAt"`
	Guesses        []Guess       `json:"guesses"`
	AttemptsUsed   map[int64]int `json:"attemptsUsed"`
	Scores         map[int64]int `json:"scores"`
	TeamOrder      []int64       `json:"teamOrder"`
	LastRound      *RoundResult  `json:"lastRound,omitempty"`
}

// NewState returns the lobby state of a freshly created game
func NewState(gameID string) *State {
	return &State{
		GameID:       gameID,
		Phase:        PhaseLobby,
		Guesses:      []Guess{},
		AttemptsUsed: map[int64]int{},
		Scores:       map[int64]int{},
		TeamOrder:    []int64{},
	}
}

// Clone returns a deep copy of s
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Guesses = append([]Guess{}, s.Guesses...)
	c.TeamOrder = append([]int64{}, s.TeamOrder...)
	c.AttemptsUsed = cloneCounts(s.AttemptsUsed)
	c.Scores = cloneCounts(s.Scores)
	if s.LastRound != nil {
		lr := *s.LastRound
		lr.Awards = cloneCounts(s.LastRound.Awards)
		c.LastRound = &lr
	}
	return &c
}

// InRotation reports whether teamID is part of the picker rotation
func (s *State) InRotation(teamID int64) bool {
	for _, id := range s.TeamOrder {
		if id == teamID {
			return true
		}
	}
	return false
}

// nextPicker returns the team after the current picker, wrapping around
func (s *State) nextPicker() int64 {
	for i, id := range s.TeamOrder {
		if id == s.PickerTeamID {
			return s.TeamOrder[(i+1)%len(s.TeamOrder)]
		}
	}
	return s.TeamOrder[0]
}

func cloneCounts(m map[int64]int) map[int64]int {
	out := make(map[int64]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
