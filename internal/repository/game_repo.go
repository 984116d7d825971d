package repository

import (
	"context"
	"errors"
	"strings"

	"songclash/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrSlugTaken is returned when another game already uses the slug
var ErrSlugTaken = errors.New("slug already in use")

// GameRepo handles MongoDB operations for games
type GameRepo interface {
	Create(ctx context.Context, game *model.Game) error
	GetByID(ctx context.Context, id string) (*model.Game, error)
	GetBySlug(ctx context.Context, slug string) (*model.Game, error)
}

type gameRepo struct {
	collection *mongo.Collection
}

// NewGameRepo creates a new game repository
func NewGameRepo(db *mongo.Database) GameRepo {
	r := &gameRepo{
		collection: db.Collection("games"),
	}
	createIndex(context.Background(), r.collection, bson.D{{Key: "slug", Value: 1}}, true)
	return r
}

func (r *gameRepo) Create(ctx context.Context, game *model.Game) error {
	game.Slug = strings.ToUpper(game.Slug)
	_, err := r.collection.InsertOne(ctx, game)
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlugTaken
	}
	return err
}

func (r *gameRepo) GetByID(ctx context.Context, id string) (*model.Game, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *gameRepo) GetBySlug(ctx context.Context, slug string) (*model.Game, error) {
	return r.findOne(ctx, bson.M{"slug": strings.ToUpper(slug)})
}

func (r *gameRepo) findOne(ctx context.Context, filter bson.M) (*model.Game, error) {
	var game model.Game
	err := r.collection.FindOne(ctx, filter).Decode(&game)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}
