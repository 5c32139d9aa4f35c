// internal/domain/daily.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeneratedByMonthlyAI tags slices cut from an AI-generated monthly plan.
const GeneratedByMonthlyAI = "monthly_ai"

// DailySlice is one day's sanitized workout or meal content. It is written
// once and never updated afterwards, even if the parent plan changes.
type DailySlice struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlayerID            primitive.ObjectID `bson:"playerId" json:"playerId"`
	Date                time.Time          `bson:"date" json:"date"` // UTC midnight
	SliceType           PlanType           `bson:"sliceType" json:"sliceType"`
	Workout             *WorkoutDay        `bson:"workout,omitempty" json:"workout,omitempty"`
	Meal                *MealDay           `bson:"meal,omitempty" json:"meal,omitempty"`
	SourceMonthlyPlanID primitive.ObjectID `bson:"sourceMonthlyPlanId" json:"sourceMonthlyPlanId"`
	GeneratedBy         string             `bson:"generatedBy" json:"generatedBy"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
}

// NormalizeDate truncates t to midnight UTC of its calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ActivityPhase positions an activity inside a workout day.
type ActivityPhase string

const (
	PhaseWarmUp   ActivityPhase = "warm_up"
	PhaseMain     ActivityPhase = "main"
	PhaseCoolDown ActivityPhase = "cool_down"
)

// Activity is a completable item derived from a workout day, worth a fixed amount of XP.
type Activity struct {
	ID    string        `bson:"id" json:"id"`
	Name  string        `bson:"name" json:"name"`
	Phase ActivityPhase `bson:"phase" json:"phase"`
	XP    int           `bson:"xp" json:"xp"`
}

type Exercise struct {
	Name          string   `bson:"name" json:"name"`
	Type          string   `bson:"type" json:"type"`
	Sets          int      `bson:"sets" json:"sets"`
	Reps          string   `bson:"reps" json:"reps"`
	RestTime      string   `bson:"restTime" json:"rest_time"`
	Notes         string   `bson:"notes,omitempty" json:"notes,omitempty"`
	Progression   string   `bson:"progression,omitempty" json:"progression,omitempty"`
	Equipment     []string `bson:"equipment" json:"equipment"`
	TargetMuscles []string `bson:"targetMuscles" json:"target_muscles"`
}

// WorkoutDay is the sanitized workout content of a single day.
type WorkoutDay struct {
	DayOfWeek         string     `bson:"dayOfWeek" json:"day_of_week"`
	WorkoutType       string     `bson:"workoutType" json:"workout_type"`
	Duration          int        `bson:"duration" json:"duration"` // minutes
	Intensity         string     `bson:"intensity" json:"intensity"`
	Exercises         []Exercise `bson:"exercises" json:"exercises"`
	WarmUp            []string   `bson:"warmUp" json:"warm_up"`
	CoolDown          []string   `bson:"coolDown" json:"cool_down"`
	EstimatedCalories *int       `bson:"estimatedCalories,omitempty" json:"estimated_calories,omitempty"`
	FocusAreas        []string   `bson:"focusAreas" json:"focus_areas"`
	Activities        []Activity `bson:"activities" json:"activities"`
	TotalXP           int        `bson:"totalXp" json:"total_xp"`
}

type MealItem struct {
	Name          string   `bson:"name" json:"name"`
	Calories      int      `bson:"calories" json:"calories"`
	Protein       string   `bson:"protein" json:"protein"`
	Carbs         string   `bson:"carbs" json:"carbs"`
	Fat           string   `bson:"fat" json:"fat"`
	PrepTime      string   `bson:"prepTime" json:"prep_time"`
	Ingredients   []string `bson:"ingredients" json:"ingredients"`
	Instructions  []string `bson:"instructions" json:"instructions"`
	MealPrepNotes string   `bson:"mealPrepNotes,omitempty" json:"meal_prep_notes,omitempty"`
	DietaryTags   []string `bson:"dietaryTags" json:"dietary_tags"`
}

type Snack struct {
	Name        string   `bson:"name" json:"name"`
	Calories    int      `bson:"calories" json:"calories"`
	Ingredients []string `bson:"ingredients" json:"ingredients"`
	PrepTime    string   `bson:"prepTime,omitempty" json:"prep_time,omitempty"`
}

type DailyTotals struct {
	Calories float64 `bson:"calories" json:"calories"`
	Protein  float64 `bson:"protein" json:"protein"`
	Carbs    float64 `bson:"carbs" json:"carbs"`
	Fat      float64 `bson:"fat" json:"fat"`
	Fiber    float64 `bson:"fiber" json:"fiber"`
	Sugar    float64 `bson:"sugar" json:"sugar"`
}

// MealDay is the sanitized meal content of a single day.
type MealDay struct {
	DayOfWeek   string      `bson:"dayOfWeek" json:"day_of_week"`
	Breakfast   MealItem    `bson:"breakfast" json:"breakfast"`
	Lunch       MealItem    `bson:"lunch" json:"lunch"`
	Dinner      MealItem    `bson:"dinner" json:"dinner"`
	Snacks      []Snack     `bson:"snacks" json:"snacks"`
	DailyTotals DailyTotals `bson:"dailyTotals" json:"daily_totals"`
}
