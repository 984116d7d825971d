package service

import (
	"songclash/internal/game"
	"songclash/internal/model"
)

// Authorize checks that the holder of claims may submit a against the game
// currently at st, and returns the action as it should be applied.
//
// Players act for their own team only: a guess is always filed under the
// token's team, and round controls are pinned to the round in which the
// player's team was picker so a late request cannot spill into the next round.
func Authorize(claims *model.GameClaims, gameID string, st *game.State, a game.Action) (game.Action, error) {
	if claims == nil || claims.GameID != gameID {
		return a, game.Forbidden("token is not valid for this game")
	}
	if claims.IsHost() {
		return a, nil
	}

	switch a.Type {
	case game.ActionSubmitGuess:
		if claims.TeamID == 0 {
			return a, game.Forbidden("player is not on a team")
		}
		a.TeamID = claims.TeamID
		return a, nil

	case game.ActionBeginGuessing, game.ActionEndRound:
		if st == nil || st.PickerTeamID == 0 || st.PickerTeamID != claims.TeamID {
			return a, game.Forbidden("only the picking team may do that")
		}
		a.Round = st.Round
		return a, nil

	default:
		return a, game.Forbidden("only the host may %s", a.Type)
	}
}
