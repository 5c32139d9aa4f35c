// Package achievement computes achievement progress from a player's recorded
// activity. It performs no I/O.
package achievement

import (
	"sort"
	"time"

	"fithero/planner/internal/domain"
)

const (
	earlyWorkoutHour  = 8
	perfectWeekWindow = 7 * 24 * time.Hour
	perfectWeekMeals  = 15
	perfectWeekWorks  = 5
)

// Engine evaluates requirements relative to Now, in Location.
type Engine struct {
	Now      func() time.Time
	Location *time.Location
}

// NewEngine returns an engine on the wall clock in loc (UTC when nil).
func NewEngine(loc *time.Location) Engine {
	return Engine{Now: time.Now, Location: loc}
}

func (e Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().In(e.loc())
	}
	return e.Now().In(e.loc())
}

func (e Engine) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// midnight truncates t to the start of its calendar day in the engine's zone.
func (e Engine) midnight(t time.Time) time.Time {
	t = t.In(e.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc())
}

// Progress computes the scalar for one requirement. Unknown types yield 0.
func (e Engine) Progress(h domain.ActivityHistory, req domain.Requirement) float64 {
	switch req.Type {
	case domain.ReqWorkoutCount:
		return float64(len(completedWorkoutDates(h.Workouts)))
	case domain.ReqMealCount:
		return float64(len(completedMealDates(h.Meals)))
	case domain.ReqWorkoutStreak:
		return float64(e.Streak(completedWorkoutDates(h.Workouts)))
	case domain.ReqMealStreak:
		return float64(e.Streak(completedMealDates(h.Meals)))
	case domain.ReqWeightLoss:
		return WeightLoss(h.Weights)
	case domain.ReqEarlyWorkout:
		return float64(e.earlyWorkouts(h.Workouts))
	case domain.ReqPerfectWeek:
		return e.perfectWeek(h)
	case domain.ReqHydrationStreak:
		return 0
	default:
		return 0
	}
}

// Streak counts consecutive days with activity, walking back from today.
// Several records on one day count once; a missing day ends the streak.
func (e Engine) Streak(dates []time.Time) int {
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = e.midnight(d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	expected := e.midnight(e.now())
	streak := 0
	for _, day := range days {
		switch {
		case day.Equal(expected):
			streak++
			expected = expected.AddDate(0, 0, -1)
		case day.Before(expected):
			return streak
		}
	}
	return streak
}

// WeightLoss is the drop from the earliest to the latest entry, never negative.
func WeightLoss(entries []domain.WeightEntry) float64 {
	if len(entries) < 2 {
		return 0
	}
	sorted := make([]domain.WeightEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return max(0, sorted[0].Weight-sorted[len(sorted)-1].Weight)
}

func (e Engine) earlyWorkouts(ws []domain.WorkoutSession) int {
	n := 0
	for _, w := range ws {
		if w.Completed && w.Date.In(e.loc()).Hour() < earlyWorkoutHour {
			n++
		}
	}
	return n
}

func (e Engine) perfectWeek(h domain.ActivityHistory) float64 {
	since := e.now().Add(-perfectWeekWindow)
	workouts := 0
	for _, d := range completedWorkoutDates(h.Workouts) {
		if !d.Before(since) {
			workouts++
		}
	}
	meals := 0
	for _, d := range completedMealDates(h.Meals) {
		if !d.Before(since) {
			meals++
		}
	}
	if workouts >= perfectWeekWorks && meals >= perfectWeekMeals {
		return 1
	}
	return 0
}

func completedWorkoutDates(ws []domain.WorkoutSession) []time.Time {
	out := make([]time.Time, 0, len(ws))
	for _, w := range ws {
		if w.Completed {
			out = append(out, w.Date)
		}
	}
	return out
}

func completedMealDates(ms []domain.MealEntry) []time.Time {
	out := make([]time.Time, 0, len(ms))
	for _, m := range ms {
		if m.Completed {
			out = append(out, m.Date)
		}
	}
	return out
}

// Decision is the outcome of evaluating one definition for one player.
type Decision struct {
	Progress float64
	// Unlock is true only when the threshold is met and the achievement was
	// not already unlocked.
	Unlock bool
}

// Evaluate applies the one-shot unlock rule to freshly computed progress.
func (e Engine) Evaluate(def *domain.AchievementDefinition, current *domain.PlayerAchievementProgress, progress float64) Decision {
	return Decision{
		Progress: progress,
		Unlock:   progress >= def.Threshold() && !current.Unlocked(),
	}
}
