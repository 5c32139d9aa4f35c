package mongo

import (
	"context"
	"errors"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const playerCollectionName = "players"

// mongoPlayerRepository implements the repository.PlayerRepository interface using MongoDB.
type mongoPlayerRepository struct {
	collection *mongo.Collection
}

// NewMongoPlayerRepository expects a connected *mongo.Database instance.
func NewMongoPlayerRepository(db *mongo.Database) repository.PlayerRepository {
	return &mongoPlayerRepository{
		collection: db.Collection(playerCollectionName),
	}
}

func (r *mongoPlayerRepository) Create(ctx context.Context, player *domain.Player) (primitive.ObjectID, error) {
	if player.ID == primitive.NilObjectID {
		player.ID = primitive.NewObjectID()
	}
	if player.Experience < 0 {
		player.Experience = 0
	}
	player.Level = domain.LevelFor(player.Experience)
	now := time.Now().UTC()
	player.CreatedAt = now
	player.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, player)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoPlayerRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Player, error) {
	var player domain.Player
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&player); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}

// ListActiveSince finds players updated at or after since, oldest id first.
func (r *mongoPlayerRepository) ListActiveSince(ctx context.Context, since time.Time) ([]domain.Player, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"updatedAt": bson.M{"$gte": since}}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	players := []domain.Player{}
	if err = cursor.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *mongoPlayerRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// IncrementExperience adds delta and recomputes level in the same update
// pipeline, so level never drifts from floor(experience/100)+1.
func (r *mongoPlayerRepository) IncrementExperience(ctx context.Context, id primitive.ObjectID, delta int) (*domain.Player, error) {
	experience := bson.D{{Key: "$max", Value: bson.A{
		0,
		bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$experience", 0}}}, delta}}},
	}}}
	level := bson.D{{Key: "$add", Value: bson.A{
		bson.D{{Key: "$toInt", Value: bson.D{{Key: "$floor", Value: bson.D{{Key: "$divide", Value: bson.A{"$experience", domain.ExperiencePerLevel}}}}}}},
		1,
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "experience", Value: experience}}}},
		{{Key: "$set", Value: bson.D{{Key: "level", Value: level}, {Key: "updatedAt", Value: time.Now().UTC()}}}},
	}

	var player domain.Player
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&player); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}
