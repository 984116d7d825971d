package repository

import (
	"context"
	"fmt"
	"time"

	"songclash/internal/game"
	"songclash/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// Roster is the Roster Store backed by MongoDB: games, teams, players and
// state snapshots.
type Roster struct {
	Games     GameRepo
	Teams     TeamRepo
	Players   PlayerRepo
	Snapshots SnapshotRepo
}

// NewRoster wires every repository against db
func NewRoster(db *mongo.Database) *Roster {
	return &Roster{
		Games:     NewGameRepo(db),
		Teams:     NewTeamRepo(db),
		Players:   NewPlayerRepo(db),
		Snapshots: NewSnapshotRepo(db),
	}
}

func (r *Roster) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	return r.Games.GetByID(ctx, gameID)
}

func (r *Roster) TeamsForGame(ctx context.Context, gameID string) ([]*model.Team, error) {
	return r.Teams.ListByGame(ctx, gameID)
}

func (r *Roster) GetPlayer(ctx context.Context, playerID string) (*model.Player, error) {
	return r.Players.GetByID(ctx, playerID)
}

func (r *Roster) PersistSnapshot(ctx context.Context, gameID string, st *game.State) error {
	data, err := game.EncodeState(st)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return r.Snapshots.Save(ctx, &model.Snapshot{
		GameID:    gameID,
		Revision:  st.Revision,
		StateJSON: string(data),
		UpdatedAt: time.Now(),
	})
}

// LoadLatestSnapshot returns the stored state, or nil when none was saved yet
func (r *Roster) LoadLatestSnapshot(ctx context.Context, gameID string) (*game.State, error) {
	snap, err := r.Snapshots.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return game.DecodeState([]byte(snap.StateJSON))
}
