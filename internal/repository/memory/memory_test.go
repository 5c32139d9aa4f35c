package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPlans_UniqueCurrentRow(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	key := domain.PlanKey{PlayerID: primitive.NewObjectID(), Month: 8, Year: 2025, Type: domain.PlanTypeWorkout}
	newPlan := func() *domain.MonthlyPlan {
		return &domain.MonthlyPlan{PlayerID: key.PlayerID, Month: key.Month, Year: key.Year, PlanType: key.Type, Status: domain.StatusPending}
	}

	first, err := repos.Plans.Create(ctx, newPlan())
	require.NoError(t, err)

	_, err = repos.Plans.Create(ctx, newPlan())
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	n, err := repos.Plans.Supersede(ctx, key, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	second, err := repos.Plans.Create(ctx, newPlan())
	require.NoError(t, err)

	current, err := repos.Plans.FindCurrent(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, second, current.ID)

	history, err := repos.Plans.ListByKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second, history[0].ID)
	assert.Equal(t, first, history[1].ID)
	assert.Equal(t, domain.StatusSuperseded, history[1].Status)
	assert.NotNil(t, history[1].SupersededAt)

	deleted, err := repos.Plans.DeleteByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	_, err = repos.Plans.FindCurrent(ctx, key)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPlans_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	plan := &domain.MonthlyPlan{
		PlayerID: primitive.NewObjectID(), Month: 1, Year: 2025, PlanType: domain.PlanTypeMeal,
		FilteredData: domain.Document{"daily_meals": map[string]any{"1": map[string]any{}}},
	}
	id, err := repos.Plans.Create(ctx, plan)
	require.NoError(t, err)

	plan.FilteredData["daily_meals"] = "mutated"
	got, err := repos.Plans.GetByID(ctx, id)
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, got.FilteredData["daily_meals"])

	got.Status = domain.StatusActive
	again, err := repos.Plans.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, again.Status)
}

func TestSlices_UniquePerDayAndType(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	player := primitive.NewObjectID()
	day := time.Date(2025, 8, 3, 17, 45, 0, 0, time.UTC)

	_, err := repos.Slices.Create(ctx, &domain.DailySlice{PlayerID: player, Date: day, SliceType: domain.PlanTypeWorkout})
	require.NoError(t, err)
	_, err = repos.Slices.Create(ctx, &domain.DailySlice{PlayerID: player, Date: day.Add(-10 * time.Hour), SliceType: domain.PlanTypeWorkout})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	_, err = repos.Slices.Create(ctx, &domain.DailySlice{PlayerID: player, Date: day, SliceType: domain.PlanTypeMeal})
	require.NoError(t, err)

	found, err := repos.Slices.Find(ctx, player, day, domain.PlanTypeWorkout)
	require.NoError(t, err)
	assert.Equal(t, domain.NormalizeDate(day), found.Date)

	list, err := repos.Slices.ListRange(ctx, player, day.AddDate(0, 0, -1), day)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.PlanTypeMeal, list[0].SliceType)

	n, err := repos.Slices.DeleteRange(ctx, player, day, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestProgress_MarkUnlockedOnce(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	player, ach := primitive.NewObjectID(), primitive.NewObjectID()
	require.NoError(t, repos.Progress.UpsertProgress(ctx, player, ach, 5, time.Now()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.Progress.MarkUnlocked(ctx, player, ach, time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	require.NoError(t, repos.Progress.UpsertProgress(ctx, player, ach, 8, time.Now()))
	rows, err := repos.Progress.ListByPlayer(ctx, player)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(8), rows[0].Progress)
	assert.True(t, rows[0].Unlocked())
}

func TestProgress_ReleaseUnlock(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	player, ach := primitive.NewObjectID(), primitive.NewObjectID()
	at := time.Date(2025, time.August, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Progress.UpsertProgress(ctx, player, ach, 1, at))
	ok, err := repos.Progress.MarkUnlocked(ctx, player, ach, at)
	require.NoError(t, err)
	require.True(t, ok)

	// A different instant is someone else's unlock and stays.
	require.NoError(t, repos.Progress.ReleaseUnlock(ctx, player, ach, at.Add(time.Second)))
	rows, err := repos.Progress.ListByPlayer(ctx, player)
	require.NoError(t, err)
	assert.True(t, rows[0].Unlocked())

	require.NoError(t, repos.Progress.ReleaseUnlock(ctx, player, ach, at))
	ok, err = repos.Progress.MarkUnlocked(ctx, player, ach, at)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPlayers_IncrementExperienceRecomputesLevel(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	id, err := repos.Players.Create(ctx, &domain.Player{Experience: 95})
	require.NoError(t, err)

	p, err := repos.Players.IncrementExperience(ctx, id, 10)
	require.NoError(t, err)
	assert.Equal(t, 105, p.Experience)
	assert.Equal(t, 2, p.Level)

	_, err = repos.Players.IncrementExperience(ctx, primitive.NewObjectID(), 10)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
