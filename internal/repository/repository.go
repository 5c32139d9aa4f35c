package repository

import (
	"context"
	"time"

	"fithero/planner/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// MonthlyPlanRepository stores monthly plans. At most one non-superseded row
// exists per plan key; Create reports ErrDuplicate otherwise.
type MonthlyPlanRepository interface {
	Create(ctx context.Context, plan *domain.MonthlyPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MonthlyPlan, error)
	// FindCurrent returns the non-superseded row for key.
	FindCurrent(ctx context.Context, key domain.PlanKey) (*domain.MonthlyPlan, error)
	// ListByKey returns every row for key, superseded ones included, newest first.
	ListByKey(ctx context.Context, key domain.PlanKey) ([]domain.MonthlyPlan, error)
	// Update replaces the stored row with plan (matched by ID).
	Update(ctx context.Context, plan *domain.MonthlyPlan) error
	// Supersede marks the current row for key as SUPERSEDED.
	Supersede(ctx context.Context, key domain.PlanKey, at time.Time) (int64, error)
	// DeleteByKey removes every row for key.
	DeleteByKey(ctx context.Context, key domain.PlanKey) (int64, error)
	SetLastPopulatedDate(ctx context.Context, id primitive.ObjectID, date time.Time) error
	// CountCurrent counts non-superseded rows of one type for a period.
	CountCurrent(ctx context.Context, month, year int, t domain.PlanType) (int64, error)
	// ListActivePlayers returns the players holding an ACTIVE plan of either type for a period.
	ListActivePlayers(ctx context.Context, month, year int) ([]primitive.ObjectID, error)
}

// DailySliceRepository stores immutable daily slices, unique per (player, date, type).
type DailySliceRepository interface {
	Create(ctx context.Context, slice *domain.DailySlice) (primitive.ObjectID, error)
	Find(ctx context.Context, playerID primitive.ObjectID, date time.Time, t domain.PlanType) (*domain.DailySlice, error)
	// ListRange returns slices with start <= date <= end, ordered by date then type.
	ListRange(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) ([]domain.DailySlice, error)
	DeleteRange(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) (int64, error)
}

// AchievementRepository reads externally configured achievement definitions.
type AchievementRepository interface {
	Create(ctx context.Context, def *domain.AchievementDefinition) (primitive.ObjectID, error)
	List(ctx context.Context) ([]domain.AchievementDefinition, error)
}

// ProgressRepository stores per-player achievement progress.
type ProgressRepository interface {
	ListByPlayer(ctx context.Context, playerID primitive.ObjectID) ([]domain.PlayerAchievementProgress, error)
	// UpsertProgress records progress, never touching unlockedAt.
	UpsertProgress(ctx context.Context, playerID, achievementID primitive.ObjectID, progress float64, at time.Time) error
	// MarkUnlocked sets unlockedAt only while it is still null and reports
	// whether this call did so.
	MarkUnlocked(ctx context.Context, playerID, achievementID primitive.ObjectID, at time.Time) (bool, error)
	// ReleaseUnlock undoes a MarkUnlocked made at the given instant.
	ReleaseUnlock(ctx context.Context, playerID, achievementID primitive.ObjectID, at time.Time) error
}

// PlayerRepository stores the gamification aggregate.
type PlayerRepository interface {
	Create(ctx context.Context, player *domain.Player) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Player, error)
	// IncrementExperience adds delta and recomputes level in one write.
	IncrementExperience(ctx context.Context, id primitive.ObjectID, delta int) (*domain.Player, error)
	// ListActiveSince returns players whose record changed at or after since.
	ListActiveSince(ctx context.Context, since time.Time) ([]domain.Player, error)
	Count(ctx context.Context) (int64, error)
}

// ActivityRepository reads the activity records that feed the achievement engine.
type ActivityRepository interface {
	AddWorkout(ctx context.Context, w *domain.WorkoutSession) (primitive.ObjectID, error)
	AddMeal(ctx context.Context, m *domain.MealEntry) (primitive.ObjectID, error)
	AddWeight(ctx context.Context, w *domain.WeightEntry) (primitive.ObjectID, error)
	History(ctx context.Context, playerID primitive.ObjectID) (domain.ActivityHistory, error)
}

// Store groups every repository the services need.
type Store struct {
	Plans        MonthlyPlanRepository
	Slices       DailySliceRepository
	Achievements AchievementRepository
	Progress     ProgressRepository
	Players      PlayerRepository
	Activity     ActivityRepository
}
