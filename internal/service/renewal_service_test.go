package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/lock"
	"fithero/planner/internal/repository"
	"fithero/planner/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type renewalFixture struct {
	svc   RenewalService
	store repository.Store
	gen   *countingGenerator
}

func newRenewalFixture(t *testing.T, body string) renewalFixture {
	t.Helper()
	store := memory.New().Repositories()
	gen := &countingGenerator{body: body}
	plans := NewPlanService(store.Plans, gen, lock.NewLocalLocker(time.Second), nil, PlanOptions{}, nil)
	return renewalFixture{
		svc:   NewRenewalService(plans, store, RenewalOptions{Concurrency: 2}, nil),
		store: store,
		gen:   gen,
	}
}

func (f renewalFixture) player(t *testing.T, name string) primitive.ObjectID {
	t.Helper()
	p := &domain.Player{Name: name}
	_, err := f.store.Players.Create(context.Background(), p)
	require.NoError(t, err)
	return p.ID
}

func TestRenewPlayer_GeneratesMissingTypes(t *testing.T) {
	f := newRenewalFixture(t, combinedPayload)
	ctx := context.Background()
	player := f.player(t, "renew")

	prev := &domain.MonthlyPlan{PlayerID: player, Month: 12, Year: 2024, PlanType: domain.PlanTypeWorkout,
		Status: domain.StatusActive, Params: domain.GenerationParams{FitnessLevel: "advanced"}}
	_, err := f.store.Plans.Create(ctx, prev)
	require.NoError(t, err)

	renewed, err := f.svc.RenewPlayer(ctx, player, 1, 2025)
	require.NoError(t, err)
	assert.True(t, renewed)
	// The combined reply seeded the meal plan, so one AI call covered both.
	assert.Equal(t, int32(1), f.gen.calls.Load())

	workout, err := f.store.Plans.FindCurrent(ctx, domain.PlanKey{PlayerID: player, Month: 1, Year: 2025, Type: domain.PlanTypeWorkout})
	require.NoError(t, err)
	assert.Equal(t, "advanced", workout.Params.FitnessLevel)
	meal, err := f.store.Plans.FindCurrent(ctx, domain.PlanKey{PlayerID: player, Month: 1, Year: 2025, Type: domain.PlanTypeMeal})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, meal.Status)

	renewed, err = f.svc.RenewPlayer(ctx, player, 1, 2025)
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.Equal(t, int32(1), f.gen.calls.Load())
}

func TestRenewPlayer_Errors(t *testing.T) {
	f := newRenewalFixture(t, workoutPayload)
	ctx := context.Background()

	_, err := f.svc.RenewPlayer(ctx, primitive.NewObjectID(), 1, 2025)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = f.svc.RenewPlayer(ctx, f.player(t, "x"), 13, 2025)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	// A workout-only reply leaves the meal plan in ERROR, which fails the renewal.
	_, err = f.svc.RenewPlayer(ctx, f.player(t, "y"), 1, 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meal plan")
}

func TestRenewAll(t *testing.T) {
	f := newRenewalFixture(t, combinedPayload)
	ctx := context.Background()

	fresh := []primitive.ObjectID{f.player(t, "a"), f.player(t, "b"), f.player(t, "c")}
	for _, typ := range []domain.PlanType{domain.PlanTypeWorkout, domain.PlanTypeMeal} {
		_, err := f.store.Plans.Create(ctx, &domain.MonthlyPlan{PlayerID: fresh[2], Month: 9, Year: 2025, PlanType: typ, Status: domain.StatusActive})
		require.NoError(t, err)
	}

	stats, err := f.svc.RenewAll(ctx, 9, 2025)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Renewed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int32(2), f.gen.calls.Load())

	cov, err := f.svc.Coverage(ctx, 9, 2025)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cov.TotalPlayers)
	assert.EqualValues(t, 3, cov.WorkoutPlans)
	assert.EqualValues(t, 3, cov.MealPlans)
	assert.InDelta(t, 100.0, cov.CoveragePct, 0.001)
}

func TestRenewAll_CountsFailures(t *testing.T) {
	f := newRenewalFixture(t, combinedPayload)
	f.gen.err = errors.New("upstream down")
	player := f.player(t, "down")

	stats, err := f.svc.RenewAll(context.Background(), 9, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], player.Hex())
	assert.Contains(t, stats.Errors[0], "upstream down")
}

func TestRenewAll_RejectsBadPeriod(t *testing.T) {
	f := newRenewalFixture(t, combinedPayload)
	_, err := f.svc.RenewAll(context.Background(), 0, 2025)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
