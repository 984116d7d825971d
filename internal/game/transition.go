package game

import "time"

// TeamRoster is the point-in-time membership of one team
type TeamRoster struct {
	TeamID  int64
	Members []string
}

// Context carries everything a transition may depend on besides the state.
// Roster is only consulted by start_game.
type Context struct {
	Now    time.Time
	Roster []TeamRoster
}

// Transition computes the state that follows applying a to s. It never
// mutates s and has no side effects: on rejection it returns a nil state and
// an *ActionError, and s is still the current state.
func Transition(s *State, a Action, ctx Context) (*State, error) {
	if s == nil {
		return nil, Integrity("no state to apply action to", nil)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if s.Phase == PhaseFinished {
		return nil, reject(CodeGameFinished, "game is finished")
	}
	if a.Round != 0 && a.Round != s.Round {
		return nil, reject(CodeInvalidPhase, "action targets round %d but the game is at round %d", a.Round, s.Round)
	}

	var (
		next *State
		err  error
	)
	switch a.Type {
	case ActionStartGame:
		next, err = startGame(s, a, ctx)
	case ActionBeginGuessing:
		next, err = beginGuessing(s, ctx)
	case ActionSubmitGuess:
		next, err = submitGuess(s, a, ctx)
	case ActionEndRound:
		next, err = endRound(s, ctx)
	case ActionEndGame:
		next = s.Clone()
		next.Phase = PhaseFinished
	}
	if err != nil {
		return nil, err
	}
	next.Revision = s.Revision + 1
	return next, nil
}

func startGame(s *State, a Action, ctx Context) (*State, error) {
	if s.Phase != PhaseLobby {
		return nil, reject(CodeInvalidPhase, "start_game is not allowed in %s", s.Phase)
	}

	members := make(map[int64]int, len(ctx.Roster))
	for _, t := range ctx.Roster {
		members[t.TeamID] = len(t.Members)
	}

	order := make([]int64, 0, len(a.TeamOrder))
	for _, id := range a.TeamOrder {
		n, ok := members[id]
		if !ok {
			return nil, reject(CodeUnknownTeam, "team %d is not part of this game", id)
		}
		// empty teams never get a turn
		if n == 0 {
			continue
		}
		order = append(order, id)
	}
	if len(order) == 0 {
		return nil, Validation("none of the teams in teamOrder has members")
	}

	next := s.Clone()
	next.TeamOrder = order
	next.PickerTeamID = order[0]
	next.Round = 1
	next.Phase = PhasePicking
	next.RoundStartedAt = ctx.Now
	next.Guesses = []Guess{}
	next.AttemptsUsed = map[int64]int{}
	for _, id := range order {
		if _, ok := next.Scores[id]; !ok {
			next.Scores[id] = 0
		}
	}
	next.LastRound = nil
	return next, nil
}

func beginGuessing(s *State, ctx Context) (*State, error) {
	if s.Phase != PhasePicking {
		return nil, reject(CodeInvalidPhase, "begin_guessing is not allowed in %s", s.Phase)
	}
	next := s.Clone()
	next.Phase = PhaseGuessing
	next.RoundStartedAt = ctx.Now
	return next, nil
}

func submitGuess(s *State, a Action, ctx Context) (*State, error) {
	if s.Phase != PhaseGuessing {
		return nil, reject(CodeInvalidPhase, "submit_guess is not allowed in %s", s.Phase)
	}
	if !s.InRotation(a.TeamID) {
		return nil, reject(CodeUnknownTeam, "team %d is not playing this game", a.TeamID)
	}
	if a.TeamID == s.PickerTeamID {
		return nil, reject(CodeNotAGuessingTeam, "team %d is picking this round", a.TeamID)
	}
	if s.AttemptsUsed[a.TeamID] >= MaxAttempts {
		return nil, reject(CodeOutOfGuesses, "team %d has no guesses left this round", a.TeamID)
	}

	next := s.Clone()
	next.Guesses = append(next.Guesses, Guess{
		TeamID:      a.TeamID,
		SubmittedAt: ctx.Now,
		Correct:     a.Correct,
	})
	next.AttemptsUsed[a.TeamID]++
	return next, nil
}

func endRound(s *State, ctx Context) (*State, error) {
	if s.Phase != PhasePicking && s.Phase != PhaseGuessing {
		return nil, reject(CodeInvalidPhase, "end_round is not allowed in %s", s.Phase)
	}

	result := ScoreRound(s)

	next := s.Clone()
	for team, pts := range result.Awards {
		next.Scores[team] += pts
	}
	next.LastRound = result
	next.PickerTeamID = s.nextPicker()
	next.Round = s.Round + 1
	next.Guesses = []Guess{}
	next.AttemptsUsed = map[int64]int{}
	next.Phase = PhasePicking
	next.RoundStartedAt = ctx.Now
	return next, nil
}
