package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fithero/planner/internal/achievement"
	"fithero/planner/internal/domain"
	"fithero/planner/internal/repository"
	"fithero/planner/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var checkTime = time.Date(2025, time.August, 20, 18, 0, 0, 0, time.UTC)

type achievementFixture struct {
	svc    AchievementService
	store  repository.Store
	player primitive.ObjectID
	clock  *time.Time
}

func newAchievementFixture(t *testing.T) achievementFixture {
	t.Helper()
	store := memory.New().Repositories()
	clock := checkTime
	engine := achievement.NewEngine(time.UTC)
	engine.Now = func() time.Time { return clock }

	player := &domain.Player{Name: "hero"}
	_, err := store.Players.Create(context.Background(), player)
	require.NoError(t, err)

	return achievementFixture{
		svc:    NewAchievementService(store, engine, nil),
		store:  store,
		player: player.ID,
		clock:  &clock,
	}
}

func (f achievementFixture) define(t *testing.T, name string, req domain.RequirementType, value float64, points int) *domain.AchievementDefinition {
	t.Helper()
	def := &domain.AchievementDefinition{Name: name, Requirement: domain.Requirement{Type: req, Value: value}, Points: points}
	_, err := f.store.Achievements.Create(context.Background(), def)
	require.NoError(t, err)
	return def
}

func (f achievementFixture) workouts(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.store.Activity.AddWorkout(context.Background(), &domain.WorkoutSession{
			PlayerID: f.player, Date: checkTime.AddDate(0, 0, -i-1), Completed: true,
		})
		require.NoError(t, err)
	}
}

func TestCheckAndUpdate_UnlocksExactlyOnce(t *testing.T) {
	f := newAchievementFixture(t)
	ctx := context.Background()
	def := f.define(t, "Five Workouts", domain.ReqWorkoutCount, 5, 50)

	// progress 3: below threshold
	f.workouts(t, 3)
	events := f.svc.CheckAndUpdate(ctx, f.player)
	assert.Empty(t, events)
	rows, err := f.store.Progress.ListByPlayer(ctx, f.player)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3.0, rows[0].Progress)
	assert.Nil(t, rows[0].UnlockedAt)

	// progress 5: unlocks
	f.workouts(t, 2)
	events = f.svc.CheckAndUpdate(ctx, f.player)
	require.Len(t, events, 1)
	assert.Equal(t, def.ID, events[0].Achievement.ID)
	assert.Equal(t, 50, events[0].Points)
	assert.True(t, events[0].UnlockedAt.Equal(checkTime))

	player, err := f.store.Players.GetByID(ctx, f.player)
	require.NoError(t, err)
	assert.Equal(t, 50, player.Experience)
	assert.Equal(t, 1, player.Level)

	// progress 8: already unlocked, nothing granted again
	*f.clock = checkTime.Add(time.Hour)
	f.workouts(t, 3)
	events = f.svc.CheckAndUpdate(ctx, f.player)
	assert.Empty(t, events)

	rows, err = f.store.Progress.ListByPlayer(ctx, f.player)
	require.NoError(t, err)
	assert.Equal(t, 8.0, rows[0].Progress)
	require.NotNil(t, rows[0].UnlockedAt)
	assert.True(t, rows[0].UnlockedAt.Equal(checkTime))

	player, err = f.store.Players.GetByID(ctx, f.player)
	require.NoError(t, err)
	assert.Equal(t, 50, player.Experience)
}

func TestCheckAndUpdate_LevelsUp(t *testing.T) {
	f := newAchievementFixture(t)
	f.define(t, "First Workout", domain.ReqWorkoutCount, 1, 60)
	f.define(t, "Three Day Streak", domain.ReqWorkoutStreak, 3, 60)
	f.define(t, "Hydrated", domain.ReqHydrationStreak, 1, 1000)

	// Sessions today and on each of the three previous days.
	f.workouts(t, 3)
	_, err := f.store.Activity.AddWorkout(context.Background(), &domain.WorkoutSession{PlayerID: f.player, Date: checkTime.Add(-time.Hour), Completed: true})
	require.NoError(t, err)

	events := f.svc.CheckAndUpdate(context.Background(), f.player)
	require.Len(t, events, 2)

	player, err := f.store.Players.GetByID(context.Background(), f.player)
	require.NoError(t, err)
	assert.Equal(t, 120, player.Experience)
	assert.Equal(t, 2, player.Level)
}

func TestCheckAndUpdate_MaxProgressOverridesValue(t *testing.T) {
	f := newAchievementFixture(t)
	maxProgress := 10.0
	def := &domain.AchievementDefinition{
		Name:        "Ten Workouts",
		Requirement: domain.Requirement{Type: domain.ReqWorkoutCount, Value: 1},
		Points:      10,
		MaxProgress: &maxProgress,
	}
	_, err := f.store.Achievements.Create(context.Background(), def)
	require.NoError(t, err)

	f.workouts(t, 5)
	assert.Empty(t, f.svc.CheckAndUpdate(context.Background(), f.player))
}

func TestCheckAndUpdate_WeightLoss(t *testing.T) {
	f := newAchievementFixture(t)
	ctx := context.Background()
	f.define(t, "Lose 3kg", domain.ReqWeightLoss, 3, 25)

	for _, w := range []domain.WeightEntry{
		{PlayerID: f.player, Date: checkTime, Weight: 97},
		{PlayerID: f.player, Date: checkTime.AddDate(0, 0, -30), Weight: 100},
	} {
		entry := w
		_, err := f.store.Activity.AddWeight(ctx, &entry)
		require.NoError(t, err)
	}

	events := f.svc.CheckAndUpdate(ctx, f.player)
	require.Len(t, events, 1)
	assert.Equal(t, "Lose 3kg", events[0].Achievement.Name)
}

type failingActivity struct{ repository.ActivityRepository }

func (failingActivity) History(context.Context, primitive.ObjectID) (domain.ActivityHistory, error) {
	return domain.ActivityHistory{}, errors.New("database unavailable")
}

// flakyPlayers fails IncrementExperience until healed.
type flakyPlayers struct {
	repository.PlayerRepository
	broken bool
}

func (p *flakyPlayers) IncrementExperience(ctx context.Context, id primitive.ObjectID, delta int) (*domain.Player, error) {
	if p.broken {
		return nil, errors.New("write conflict")
	}
	return p.PlayerRepository.IncrementExperience(ctx, id, delta)
}

func TestCheckAndUpdate_FailedGrantIsRetried(t *testing.T) {
	f := newAchievementFixture(t)
	ctx := context.Background()
	players := &flakyPlayers{PlayerRepository: f.store.Players, broken: true}
	store := f.store
	store.Players = players
	engine := achievement.NewEngine(time.UTC)
	engine.Now = func() time.Time { return checkTime }
	svc := NewAchievementService(store, engine, nil)

	f.define(t, "First Steps", domain.ReqWorkoutCount, 1, 40)
	f.workouts(t, 1)

	assert.Empty(t, svc.CheckAndUpdate(ctx, f.player))
	rows, err := f.store.Progress.ListByPlayer(ctx, f.player)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Unlocked())

	players.broken = false
	events := svc.CheckAndUpdate(ctx, f.player)
	require.Len(t, events, 1)
	player, err := f.store.Players.GetByID(ctx, f.player)
	require.NoError(t, err)
	assert.Equal(t, 40, player.Experience)
}

func TestCheckAndUpdate_UnknownPlayerUnlocksNothing(t *testing.T) {
	f := newAchievementFixture(t)
	ctx := context.Background()
	f.define(t, "First Steps", domain.ReqWorkoutCount, 1, 40)
	ghost := primitive.NewObjectID()
	_, err := f.store.Activity.AddWorkout(ctx, &domain.WorkoutSession{PlayerID: ghost, Date: checkTime.AddDate(0, 0, -1), Completed: true})
	require.NoError(t, err)

	assert.Empty(t, f.svc.CheckAndUpdate(ctx, ghost))
	rows, err := f.store.Progress.ListByPlayer(ctx, ghost)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCheckAndUpdate_SwallowsErrors(t *testing.T) {
	store := memory.New().Repositories()
	store.Activity = failingActivity{}
	svc := NewAchievementService(store, achievement.NewEngine(time.UTC), nil)

	events := svc.CheckAndUpdate(context.Background(), primitive.NewObjectID())
	assert.NotNil(t, events)
	assert.Empty(t, events)

	assert.Empty(t, svc.CheckAndUpdate(context.Background(), primitive.NilObjectID))
}

func TestSummary(t *testing.T) {
	f := newAchievementFixture(t)
	ctx := context.Background()
	f.define(t, "First Workout", domain.ReqWorkoutCount, 1, 30)
	f.define(t, "Hundred Meals", domain.ReqMealCount, 100, 500)

	f.workouts(t, 1)
	f.svc.CheckAndUpdate(ctx, f.player)

	sum, err := f.svc.Summary(ctx, f.player)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Unlocked)
	assert.Equal(t, 30, sum.PointsEarned)
	assert.Equal(t, 30, sum.Experience)
	require.Len(t, sum.Achievements, 2)

	for _, st := range sum.Achievements {
		switch st.Achievement.Name {
		case "First Workout":
			assert.NotNil(t, st.UnlockedAt)
			assert.Equal(t, 1.0, st.Progress)
		case "Hundred Meals":
			assert.Nil(t, st.UnlockedAt)
			assert.Equal(t, 100.0, st.Threshold)
		}
	}

	// Unknown players get an empty but valid summary.
	other, err := f.svc.Summary(ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, 0, other.Unlocked)
	assert.Equal(t, 1, other.Level)
}
