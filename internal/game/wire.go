package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// requiredStateFields must be present in every serialized snapshot.
// guesses may be omitted and is then treated as empty.
var requiredStateFields = []string{
	"revision", "phase", "round", "pickerTeamId", "roundStartedAt",
	"attemptsUsed", "scores", "teamOrder",
}

// Reply is the answer to an action sent over a broadcast channel
type Reply struct {
	State *State       `json:"state,omitempty"`
	Error *ActionError `json:"error,omitempty"`
}

// EncodeState serializes a snapshot to its wire form
func EncodeState(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeState parses and validates a snapshot. Any schema problem is
// reported as a ValidationError.
func DecodeState(data []byte) (*State, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, Validation("snapshot is not a JSON object: %v", err)
	}
	for _, name := range requiredStateFields {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return nil, Validation("snapshot is missing %q", name)
		}
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, Validation("snapshot does not match schema: %v", err)
	}
	if s.Guesses == nil {
		s.Guesses = []Guess{}
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Check verifies the invariants every committed state holds
func (s *State) Check() error {
	if !s.Phase.Valid() {
		return Validation("unknown phase %q", s.Phase)
	}
	if s.Round < 0 || s.Revision < 0 {
		return Validation("round and revision must not be negative")
	}
	if s.Phase == PhaseLobby && s.Round != 0 {
		return Validation("lobby state must be at round 0")
	}

	inOrder := make(map[int64]bool, len(s.TeamOrder))
	for _, id := range s.TeamOrder {
		if inOrder[id] {
			return Validation("team %d appears twice in teamOrder", id)
		}
		inOrder[id] = true
		if _, ok := s.Scores[id]; !ok {
			return Validation("scores is missing team %d", id)
		}
	}

	switch s.Phase {
	case PhasePicking, PhaseGuessing, PhaseRoundResult:
		if len(s.TeamOrder) == 0 {
			return Validation("%s state has no teamOrder", s.Phase)
		}
		if !inOrder[s.PickerTeamID] {
			return Validation("picker %d is not in teamOrder", s.PickerTeamID)
		}
	}

	for team, n := range s.AttemptsUsed {
		if n < 0 || n > MaxAttempts {
			return Validation("team %d has %d attempts", team, n)
		}
	}
	for _, g := range s.Guesses {
		if !inOrder[g.TeamID] {
			return Validation("guess from team %d outside teamOrder", g.TeamID)
		}
	}
	return nil
}

// DecodeAction parses and validates an action
func DecodeAction(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, Validation("action is not valid JSON: %v", err)
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// DecodeReply parses a reply and turns it back into a (state, error) pair
func DecodeReply(data []byte) (*State, error) {
	var raw struct {
		State json.RawMessage `json:"state"`
		Error *ActionError    `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if raw.Error != nil {
		return nil, raw.Error
	}
	if len(raw.State) == 0 {
		return nil, fmt.Errorf("decode reply: empty reply")
	}
	return DecodeState(raw.State)
}

// NewReply builds the reply for the outcome of an action
func NewReply(s *State, err error) Reply {
	if err == nil {
		return Reply{State: s}
	}
	var ae *ActionError
	if !errors.As(err, &ae) {
		ae = Unavailable(err.Error(), err)
	}
	return Reply{Error: ae}
}
