package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const monthlyPlanCollectionName = "monthly_plans"

// mongoMonthlyPlanRepository implements repository.MonthlyPlanRepository
type mongoMonthlyPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoMonthlyPlanRepository creates a new MonthlyPlan repository.
func NewMongoMonthlyPlanRepository(db *mongo.Database) repository.MonthlyPlanRepository {
	return &mongoMonthlyPlanRepository{
		collection: db.Collection(monthlyPlanCollectionName),
	}
}

func keyFilter(key domain.PlanKey) bson.M {
	return bson.M{
		"playerId": key.PlayerID,
		"month":    key.Month,
		"year":     key.Year,
		"planType": key.Type,
	}
}

func currentFilter(key domain.PlanKey) bson.M {
	f := keyFilter(key)
	f["superseded"] = false
	return f
}

// Create inserts a new plan. A second current row for the same key is rejected by the unique index.
func (r *mongoMonthlyPlanRepository) Create(ctx context.Context, plan *domain.MonthlyPlan) (primitive.ObjectID, error) {
	if plan.PlayerID == primitive.NilObjectID || !plan.PlanType.Valid() {
		return primitive.NilObjectID, errors.New("plan requires playerId and a valid planType")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

func (r *mongoMonthlyPlanRepository) findOne(ctx context.Context, filter bson.M) (*domain.MonthlyPlan, error) {
	var plan domain.MonthlyPlan
	if err := r.collection.FindOne(ctx, filter).Decode(&plan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetByID retrieves a single plan by its ID.
func (r *mongoMonthlyPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MonthlyPlan, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoMonthlyPlanRepository) FindCurrent(ctx context.Context, key domain.PlanKey) (*domain.MonthlyPlan, error) {
	return r.findOne(ctx, currentFilter(key))
}

func (r *mongoMonthlyPlanRepository) ListByKey(ctx context.Context, key domain.PlanKey) ([]domain.MonthlyPlan, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, keyFilter(key), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	plans := []domain.MonthlyPlan{}
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// Update replaces the whole document; CreatedAt and the key fields travel unchanged with plan.
func (r *mongoMonthlyPlanRepository) Update(ctx context.Context, plan *domain.MonthlyPlan) error {
	if plan.ID == primitive.NilObjectID {
		return errors.New("plan ID is required for update")
	}
	plan.UpdatedAt = time.Now().UTC()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": plan.ID}, plan)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoMonthlyPlanRepository) Supersede(ctx context.Context, key domain.PlanKey, at time.Time) (int64, error) {
	update := bson.M{"$set": bson.M{
		"status":       domain.StatusSuperseded,
		"superseded":   true,
		"supersededAt": at,
		"updatedAt":    time.Now().UTC(),
	}}
	result, err := r.collection.UpdateMany(ctx, currentFilter(key), update)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", repository.ErrUpdateFailed, err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoMonthlyPlanRepository) DeleteByKey(ctx context.Context, key domain.PlanKey) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, keyFilter(key))
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *mongoMonthlyPlanRepository) SetLastPopulatedDate(ctx context.Context, id primitive.ObjectID, date time.Time) error {
	update := bson.M{"$set": bson.M{"lastPopulatedDate": date, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoMonthlyPlanRepository) CountCurrent(ctx context.Context, month, year int, t domain.PlanType) (int64, error) {
	filter := bson.M{"month": month, "year": year, "planType": t, "superseded": false}
	return r.collection.CountDocuments(ctx, filter)
}

func (r *mongoMonthlyPlanRepository) ListActivePlayers(ctx context.Context, month, year int) ([]primitive.ObjectID, error) {
	filter := bson.M{"month": month, "year": year, "status": domain.StatusActive, "superseded": false}
	values, err := r.collection.Distinct(ctx, "playerId", filter)
	if err != nil {
		return nil, err
	}

	// Distinct hands back interface{} values; keep only ObjectIDs
	players := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			players = append(players, id)
		}
	}
	return players, nil
}

// EnsureMonthlyPlanIndexes creates necessary indexes. Call during startup.
func EnsureMonthlyPlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One current plan per key; superseded rows are kept for audit.
			Keys: bson.D{
				{Key: "playerId", Value: 1},
				{Key: "month", Value: 1},
				{Key: "year", Value: 1},
				{Key: "planType", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_current_plan").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"superseded": false}),
		},
		{
			Keys:    bson.D{{Key: "playerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
