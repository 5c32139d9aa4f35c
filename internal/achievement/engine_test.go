package achievement

import (
	"testing"
	"time"

	"fithero/planner/internal/domain"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 8, 15, 18, 30, 0, 0, time.UTC)

func fixedEngine() Engine {
	return Engine{Now: func() time.Time { return now }, Location: time.UTC}
}

func daysAgo(n int, hour int) time.Time {
	d := now.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}

func workouts(dates ...time.Time) []domain.WorkoutSession {
	out := make([]domain.WorkoutSession, 0, len(dates))
	for _, d := range dates {
		out = append(out, domain.WorkoutSession{Date: d, Completed: true})
	}
	return out
}

func TestStreak(t *testing.T) {
	e := fixedEngine()
	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{"empty", nil, 0},
		{"three consecutive days", []time.Time{daysAgo(0, 9), daysAgo(1, 9), daysAgo(2, 9)}, 3},
		{"gap yesterday", []time.Time{daysAgo(0, 9), daysAgo(2, 9), daysAgo(3, 9)}, 1},
		{"nothing today", []time.Time{daysAgo(1, 9), daysAgo(2, 9)}, 0},
		{"same day twice", []time.Time{daysAgo(0, 7), daysAgo(0, 17), daysAgo(1, 9)}, 2},
		{"unsorted input", []time.Time{daysAgo(2, 9), daysAgo(0, 9), daysAgo(1, 9)}, 3},
		{"future records ignored", []time.Time{daysAgo(-1, 9), daysAgo(0, 9)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Streak(tt.dates))
		})
	}
}

func TestStreak_UsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*3600)
	e := Engine{Now: func() time.Time { return now }, Location: tokyo} // 03:30 on Aug 16 in tokyo

	// 16:00 UTC on Aug 15 is already Aug 16 in tokyo.
	dates := []time.Time{time.Date(2025, 8, 15, 16, 0, 0, 0, time.UTC), time.Date(2025, 8, 14, 20, 0, 0, 0, time.UTC)}
	assert.Equal(t, 2, e.Streak(dates))
	assert.Equal(t, 0, fixedEngine().Streak(dates[1:]))
}

func TestProgress(t *testing.T) {
	e := fixedEngine()
	history := domain.ActivityHistory{
		Workouts: append(workouts(daysAgo(0, 6), daysAgo(1, 7), daysAgo(2, 12)),
			domain.WorkoutSession{Date: daysAgo(3, 5), Completed: false}),
		Meals: []domain.MealEntry{
			{Date: daysAgo(0, 8), Completed: true},
			{Date: daysAgo(1, 8), Completed: true},
			{Date: daysAgo(1, 13), Completed: false},
		},
		Weights: []domain.WeightEntry{
			{Date: daysAgo(0, 8), Weight: 97},
			{Date: daysAgo(30, 8), Weight: 100},
		},
	}

	tests := []struct {
		req  domain.RequirementType
		want float64
	}{
		{domain.ReqWorkoutCount, 3},
		{domain.ReqWorkoutStreak, 3},
		{domain.ReqMealCount, 2},
		{domain.ReqMealStreak, 2},
		{domain.ReqWeightLoss, 3},
		{domain.ReqEarlyWorkout, 2},
		{domain.ReqPerfectWeek, 0},
		{domain.ReqHydrationStreak, 0},
		{domain.RequirementType("sleep_score"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.req), func(t *testing.T) {
			assert.Equal(t, tt.want, e.Progress(history, domain.Requirement{Type: tt.req, Value: 1}))
		})
	}
}

func TestWeightLoss(t *testing.T) {
	assert.Zero(t, WeightLoss(nil))
	assert.Zero(t, WeightLoss([]domain.WeightEntry{{Date: now, Weight: 80}}))
	assert.Zero(t, WeightLoss([]domain.WeightEntry{
		{Date: daysAgo(10, 8), Weight: 80},
		{Date: daysAgo(0, 8), Weight: 82},
	}), "weight gain is not negative progress")
}

func TestPerfectWeek(t *testing.T) {
	e := fixedEngine()
	var h domain.ActivityHistory
	for i := 0; i < 5; i++ {
		h.Workouts = append(h.Workouts, domain.WorkoutSession{Date: daysAgo(i, 9), Completed: true})
	}
	for i := 0; i < 15; i++ {
		h.Meals = append(h.Meals, domain.MealEntry{Date: daysAgo(i%5, 8+i%3), Completed: true})
	}
	assert.Equal(t, float64(1), e.Progress(h, domain.Requirement{Type: domain.ReqPerfectWeek}))

	h.Workouts[4].Date = daysAgo(8, 9)
	assert.Equal(t, float64(0), e.Progress(h, domain.Requirement{Type: domain.ReqPerfectWeek}))
}

func TestEvaluate_OneShot(t *testing.T) {
	e := fixedEngine()
	def := &domain.AchievementDefinition{Requirement: domain.Requirement{Type: domain.ReqWorkoutCount, Value: 5}, Points: 50}

	var current *domain.PlayerAchievementProgress
	assert.False(t, e.Evaluate(def, current, 3).Unlock)

	d := e.Evaluate(def, current, 5)
	assert.True(t, d.Unlock)
	assert.Equal(t, float64(5), d.Progress)

	unlockedAt := now
	current = &domain.PlayerAchievementProgress{Progress: 5, UnlockedAt: &unlockedAt}
	assert.False(t, e.Evaluate(def, current, 8).Unlock)
}

func TestEvaluate_MaxProgressOverridesValue(t *testing.T) {
	e := fixedEngine()
	limit := 10.0
	def := &domain.AchievementDefinition{Requirement: domain.Requirement{Value: 5}, MaxProgress: &limit}

	assert.False(t, e.Evaluate(def, nil, 7).Unlock)
	assert.True(t, e.Evaluate(def, nil, 10).Unlock)
}
