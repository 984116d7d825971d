package game

// ScoreRound computes the points earned in the current round of s from its
// ordered guesses. Only a team's first correct guess counts toward placement.
func ScoreRound(s *State) *RoundResult {
	result := &RoundResult{
		Round:        s.Round,
		PickerTeamID: s.PickerTeamID,
		Awards:       map[int64]int{},
	}

	placed := make(map[int64]bool)
	for _, g := range s.Guesses {
		if !g.Correct {
			continue
		}
		if !result.PickerBonus && g.SubmittedAt.Sub(s.RoundStartedAt) <= PickerBonusWindow {
			result.PickerBonus = true
		}
		if placed[g.TeamID] {
			continue
		}
		if place := len(placed); place < len(placementPoints) {
			result.Awards[g.TeamID] += placementPoints[place]
		}
		placed[g.TeamID] = true
	}

	if result.PickerBonus {
		result.Awards[s.PickerTeamID]++
	}
	return result
}
