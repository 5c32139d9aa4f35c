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

const (
	workoutSessionCollectionName = "workout_sessions"
	mealEntryCollectionName      = "meal_entries"
	weightEntryCollectionName    = "weight_entries"
)

// mongoActivityRepository reads the activity logs written by the rest of the app.
type mongoActivityRepository struct {
	workouts *mongo.Collection
	meals    *mongo.Collection
	weights  *mongo.Collection
}

func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		workouts: db.Collection(workoutSessionCollectionName),
		meals:    db.Collection(mealEntryCollectionName),
		weights:  db.Collection(weightEntryCollectionName),
	}
}

func insert(ctx context.Context, coll *mongo.Collection, doc any) (primitive.ObjectID, error) {
	result, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoActivityRepository) AddWorkout(ctx context.Context, w *domain.WorkoutSession) (primitive.ObjectID, error) {
	w.ID = primitive.NewObjectID()
	return insert(ctx, r.workouts, w)
}

func (r *mongoActivityRepository) AddMeal(ctx context.Context, m *domain.MealEntry) (primitive.ObjectID, error) {
	m.ID = primitive.NewObjectID()
	return insert(ctx, r.meals, m)
}

func (r *mongoActivityRepository) AddWeight(ctx context.Context, w *domain.WeightEntry) (primitive.ObjectID, error) {
	w.ID = primitive.NewObjectID()
	return insert(ctx, r.weights, w)
}

func findByPlayer[T any](ctx context.Context, coll *mongo.Collection, playerID primitive.ObjectID) ([]T, error) {
	cursor, err := coll.Find(ctx, bson.M{"playerId": playerID}, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History loads every record for the player, newest first.
func (r *mongoActivityRepository) History(ctx context.Context, playerID primitive.ObjectID) (domain.ActivityHistory, error) {
	var h domain.ActivityHistory
	var err error
	if h.Workouts, err = findByPlayer[domain.WorkoutSession](ctx, r.workouts, playerID); err != nil {
		return h, fmt.Errorf("load workouts: %w", err)
	}
	if h.Meals, err = findByPlayer[domain.MealEntry](ctx, r.meals, playerID); err != nil {
		return h, fmt.Errorf("load meals: %w", err)
	}
	if h.Weights, err = findByPlayer[domain.WeightEntry](ctx, r.weights, playerID); err != nil {
		return h, fmt.Errorf("load weights: %w", err)
	}
	return h, nil
}

// EnsureActivityIndexes indexes each activity log by player and date.
func EnsureActivityIndexes(ctx context.Context, db *mongo.Database) error {
	var errs []error
	for _, name := range []string{workoutSessionCollectionName, mealEntryCollectionName, weightEntryCollectionName} {
		model := mongo.IndexModel{
			Keys:    bson.D{{Key: "playerId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		}
		if _, err := db.Collection(name).Indexes().CreateOne(ctx, model); err != nil {
			errs = append(errs, fmt.Errorf("indexes for %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
