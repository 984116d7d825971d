package repository

import (
	"context"

	"songclash/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SnapshotRepo stores the latest state snapshot of each game
type SnapshotRepo interface {
	Save(ctx context.Context, snapshot *model.Snapshot) error
	Get(ctx context.Context, gameID string) (*model.Snapshot, error)
}

type snapshotRepo struct {
	collection *mongo.Collection
}

// NewSnapshotRepo creates a new snapshot repository
func NewSnapshotRepo(db *mongo.Database) SnapshotRepo {
	return &snapshotRepo{
		collection: db.Collection("game_snapshots"),
	}
}

// Save writes the snapshot unless a snapshot with the same or a higher
// revision is already stored (last write wins by revision).
func (r *snapshotRepo) Save(ctx context.Context, snapshot *model.Snapshot) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{
		"_id":      snapshot.GameID,
		"revision": bson.M{"$lt": snapshot.Revision},
	}
	_, err := r.collection.ReplaceOne(ctx, filter, snapshot, opts)
	if mongo.IsDuplicateKeyError(err) {
		// the upsert collided with a newer stored revision
		return nil
	}
	return err
}

func (r *snapshotRepo) Get(ctx context.Context, gameID string) (*model.Snapshot, error) {
	var snapshot model.Snapshot
	err := r.collection.FindOne(ctx, bson.M{"_id": gameID}).Decode(&snapshot)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
