package mongo

import (
	"context"
	"errors"
	"fmt"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const achievementCollectionName = "achievements"

// mongoAchievementRepository implements repository.AchievementRepository.
type mongoAchievementRepository struct {
	collection *mongo.Collection
}

func NewMongoAchievementRepository(db *mongo.Database) repository.AchievementRepository {
	return &mongoAchievementRepository{
		collection: db.Collection(achievementCollectionName),
	}
}

// Create inserts a definition. Definitions are normally seeded by operators.
func (r *mongoAchievementRepository) Create(ctx context.Context, def *domain.AchievementDefinition) (primitive.ObjectID, error) {
	if def.Name == "" || def.Requirement.Type == "" {
		return primitive.NilObjectID, errors.New("achievement requires name and requirement type")
	}
	def.ID = primitive.NewObjectID()

	result, err := r.collection.InsertOne(ctx, def)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted achievement ID")
	}
	return insertedID, nil
}

func (r *mongoAchievementRepository) List(ctx context.Context) ([]domain.AchievementDefinition, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	defs := []domain.AchievementDefinition{}
	if err = cursor.All(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// EnsureAchievementIndexes creates necessary indexes for the achievements collection.
func EnsureAchievementIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
