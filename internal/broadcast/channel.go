// Package broadcast carries committed game snapshots to subscribers and
// client actions to the coordinator that owns the game.
package broadcast

import (
	"context"
	"errors"

	"songclash/internal/game"
)

// ErrNoCoordinator is returned by SendAction when nothing is bound to apply actions
var ErrNoCoordinator = errors.New("no coordinator bound to the channel")

// Handler receives snapshots of one game in publish order
type Handler func(st *game.State)

// ActionSink applies actions; the session coordinator implements it
type ActionSink interface {
	SubmitAction(ctx context.Context, gameID string, a game.Action) (*game.State, error)
}

// Channel is the pub/sub link between the coordinator and connected clients
type Channel interface {
	Publish(ctx context.Context, gameID string, st *game.State) error
	Subscribe(gameID string, h Handler) (unsubscribe func(), err error)
	SendAction(ctx context.Context, gameID string, a game.Action) (*game.State, error)
	Bind(sink ActionSink) error
	Close() error
}
