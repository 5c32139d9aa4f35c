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

const dailySliceCollectionName = "daily_slices"

// mongoDailySliceRepository implements repository.DailySliceRepository
type mongoDailySliceRepository struct {
	collection *mongo.Collection
}

// NewMongoDailySliceRepository creates a new DailySlice repository.
func NewMongoDailySliceRepository(db *mongo.Database) repository.DailySliceRepository {
	return &mongoDailySliceRepository{
		collection: db.Collection(dailySliceCollectionName),
	}
}

// Create inserts a slice once. Slices are never updated afterwards.
func (r *mongoDailySliceRepository) Create(ctx context.Context, slice *domain.DailySlice) (primitive.ObjectID, error) {
	if slice.PlayerID == primitive.NilObjectID || !slice.SliceType.Valid() {
		return primitive.NilObjectID, errors.New("slice requires playerId and a valid sliceType")
	}
	slice.ID = primitive.NewObjectID()
	slice.Date = domain.NormalizeDate(slice.Date)
	slice.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, slice)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted slice ID")
	}
	return insertedID, nil
}

func (r *mongoDailySliceRepository) Find(ctx context.Context, playerID primitive.ObjectID, date time.Time, t domain.PlanType) (*domain.DailySlice, error) {
	var slice domain.DailySlice
	filter := bson.M{
		"playerId":  playerID,
		"date":      domain.NormalizeDate(date),
		"sliceType": t,
	}
	if err := r.collection.FindOne(ctx, filter).Decode(&slice); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &slice, nil
}

func rangeFilter(playerID primitive.ObjectID, start, end time.Time) bson.M {
	return bson.M{
		"playerId": playerID,
		"date": bson.M{
			"$gte": domain.NormalizeDate(start),
			"$lte": domain.NormalizeDate(end),
		},
	}
}

func (r *mongoDailySliceRepository) ListRange(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) ([]domain.DailySlice, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "sliceType", Value: 1}})

	cursor, err := r.collection.Find(ctx, rangeFilter(playerID, start, end), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	slices := []domain.DailySlice{}
	if err = cursor.All(ctx, &slices); err != nil {
		return nil, err
	}
	return slices, nil
}

func (r *mongoDailySliceRepository) DeleteRange(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, rangeFilter(playerID, start, end))
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureDailySliceIndexes creates necessary indexes for the daily_slices collection.
func EnsureDailySliceIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "playerId", Value: 1},
				{Key: "date", Value: 1},
				{Key: "sliceType", Value: 1},
			},
			Options: options.Index().SetName("uniq_player_date_type").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "sourceMonthlyPlanId", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
