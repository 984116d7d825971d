package service

import (
	"context"

	"songclash/internal/game"
)

// Broadcaster publishes committed snapshots to everyone watching a game
// (avoids an import cycle with the transport packages)
type Broadcaster interface {
	Publish(ctx context.Context, gameID string, st *game.State) error
}

// RosterNotifier is told when a game's team membership changes
type RosterNotifier interface {
	RosterChanged(gameID string)
}
