package mongo

import (
	"context"
	"fmt"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const progressCollectionName = "player_achievements"

// mongoProgressRepository implements repository.ProgressRepository.
type mongoProgressRepository struct {
	collection *mongo.Collection
}

func NewMongoProgressRepository(db *mongo.Database) repository.ProgressRepository {
	return &mongoProgressRepository{
		collection: db.Collection(progressCollectionName),
	}
}

func (r *mongoProgressRepository) ListByPlayer(ctx context.Context, playerID primitive.ObjectID) ([]domain.PlayerAchievementProgress, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"playerId": playerID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []domain.PlayerAchievementProgress{}
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertProgress sets progress, creating the row on first sight. Two
// concurrent first upserts can race on the unique index; the loser retries
// once as a plain update.
func (r *mongoProgressRepository) UpsertProgress(ctx context.Context, playerID, achievementID primitive.ObjectID, progress float64, at time.Time) error {
	filter := bson.M{"playerId": playerID, "achievementId": achievementID}
	update := bson.M{
		"$set": bson.M{"progress": progress, "updatedAt": at},
		"$setOnInsert": bson.M{
			"_id":           primitive.NewObjectID(),
			"playerId":      playerID,
			"achievementId": achievementID,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"progress": progress, "updatedAt": at}})
	}
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrUpdateFailed, err)
	}
	return nil
}

// MarkUnlocked only matches while unlockedAt is unset, so at most one caller
// ever observes true for a given pair.
func (r *mongoProgressRepository) MarkUnlocked(ctx context.Context, playerID, achievementID primitive.ObjectID, at time.Time) (bool, error) {
	filter := bson.M{
		"playerId":      playerID,
		"achievementId": achievementID,
		"unlockedAt":    nil,
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"unlockedAt": at, "updatedAt": at}})
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (r *mongoProgressRepository) ReleaseUnlock(ctx context.Context, playerID, achievementID primitive.ObjectID, at time.Time) error {
	filter := bson.M{
		"playerId":      playerID,
		"achievementId": achievementID,
		"unlockedAt":    at,
	}
	// Only our own unlock is cleared; another timestamp means someone else holds it.
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"unlockedAt": nil, "updatedAt": time.Now()}})
	return err
}

// EnsureProgressIndexes creates the (player, achievement) unique index.
func EnsureProgressIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "playerId", Value: 1}, {Key: "achievementId", Value: 1}},
			Options: options.Index().SetName("uniq_player_achievement").SetUnique(true),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
