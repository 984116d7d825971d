package repository

import (
	"context"
	"errors"

	"songclash/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrAlreadyOnTeam is returned when a player already belongs to a team in the game
var ErrAlreadyOnTeam = errors.New("player is already on a team in this game")

// TeamRepo handles MongoDB operations for teams and their memberships
type TeamRepo interface {
	Create(ctx context.Context, team *model.Team) error
	GetByID(ctx context.Context, id int64) (*model.Team, error)
	ListByGame(ctx context.Context, gameID string) ([]*model.Team, error)
	AddMember(ctx context.Context, m *model.Membership) error
	RemoveMember(ctx context.Context, gameID, playerID string) (bool, error)
	MembershipOf(ctx context.Context, gameID, playerID string) (*model.Membership, error)
}

type teamRepo struct {
	teams       *mongo.Collection
	memberships *mongo.Collection
	counters    *mongo.Collection
}

// NewTeamRepo creates a new team repository with indexes
func NewTeamRepo(db *mongo.Database) TeamRepo {
	r := &teamRepo{
		teams:       db.Collection("teams"),
		memberships: db.Collection("memberships"),
		counters:    db.Collection("counters"),
	}

	ctx := context.Background()
	createIndex(ctx, r.teams, bson.D{{Key: "gameId", Value: 1}, {Key: "createdAt", Value: 1}}, false)
	createIndex(ctx, r.memberships, bson.D{{Key: "gameId", Value: 1}, {Key: "playerId", Value: 1}}, true)
	createIndex(ctx, r.memberships, bson.D{{Key: "teamId", Value: 1}}, false)
	return r
}

func (r *teamRepo) Create(ctx context.Context, team *model.Team) error {
	id, err := nextSequence(ctx, r.counters, "teams")
	if err != nil {
		return err
	}
	team.ID = id
	_, err = r.teams.InsertOne(ctx, team)
	return err
}

func (r *teamRepo) GetByID(ctx context.Context, id int64) (*model.Team, error) {
	var team model.Team
	err := r.teams.FindOne(ctx, bson.M{"_id": id}).Decode(&team)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	members, err := r.membersOf(ctx, bson.M{"teamId": id})
	if err != nil {
		return nil, err
	}
	team.Members = members[id]
	return &team, nil
}

// ListByGame returns the game's teams in creation order, members filled in
func (r *teamRepo) ListByGame(ctx context.Context, gameID string) ([]*model.Team, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.teams.Find(ctx, bson.M{"gameId": gameID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var teams []*model.Team
	if err := cursor.All(ctx, &teams); err != nil {
		return nil, err
	}

	members, err := r.membersOf(ctx, bson.M{"gameId": gameID})
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		t.Members = members[t.ID]
		if t.Members == nil {
			t.Members = []string{}
		}
	}
	return teams, nil
}

func (r *teamRepo) AddMember(ctx context.Context, m *model.Membership) error {
	_, err := r.memberships.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyOnTeam
	}
	return err
}

func (r *teamRepo) RemoveMember(ctx context.Context, gameID, playerID string) (bool, error) {
	res, err := r.memberships.DeleteOne(ctx, bson.M{"gameId": gameID, "playerId": playerID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *teamRepo) MembershipOf(ctx context.Context, gameID, playerID string) (*model.Membership, error) {
	var m model.Membership
	err := r.memberships.FindOne(ctx, bson.M{"gameId": gameID, "playerId": playerID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *teamRepo) membersOf(ctx context.Context, filter bson.M) (map[int64][]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	cursor, err := r.memberships.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	members := make(map[int64][]string)
	for cursor.Next(ctx) {
		var m model.Membership
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		members[m.TeamID] = append(members[m.TeamID], m.PlayerID)
	}
	return members, cursor.Err()
}
