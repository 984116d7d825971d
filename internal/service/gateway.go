package service

import (
	"context"

	"songclash/internal/game"
	"songclash/internal/model"
)

// ActionSender delivers an action to the coordinator owning the game
type ActionSender interface {
	SendAction(ctx context.Context, gameID string, a game.Action) (*game.State, error)
}

// ActionGateway is the entry point for actions coming from clients: it
// checks the caller's token against the current state, then forwards.
type ActionGateway struct {
	states StateReader
	sender ActionSender
}

// NewActionGateway creates a gateway reading states and sending through sender
func NewActionGateway(states StateReader, sender ActionSender) *ActionGateway {
	return &ActionGateway{states: states, sender: sender}
}

// Submit authorizes a for the holder of claims and applies it
func (g *ActionGateway) Submit(ctx context.Context, claims *model.GameClaims, gameID string, a game.Action) (*game.State, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	st, err := g.states.State(ctx, gameID)
	if err != nil {
		return nil, err
	}

	a, err = Authorize(claims, gameID, st, a)
	if err != nil {
		return nil, err
	}
	return g.sender.SendAction(ctx, gameID, a)
}
