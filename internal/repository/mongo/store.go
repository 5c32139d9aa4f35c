package mongo

import (
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
)

// NewStore builds every MongoDB-backed repository over db.
func NewStore(db *mongo.Database) repository.Store {
	return repository.Store{
		Plans:        NewMongoMonthlyPlanRepository(db),
		Slices:       NewMongoDailySliceRepository(db),
		Achievements: NewMongoAchievementRepository(db),
		Progress:     NewMongoProgressRepository(db),
		Players:      NewMongoPlayerRepository(db),
		Activity:     NewMongoActivityRepository(db),
	}
}
