package extract

import (
	"encoding/json"
	"errors"
	"time"

	"fithero/planner/internal/domain"
)

const (
	fieldDailyWorkouts   = "daily_workouts"
	fieldDailyMeals      = "daily_meals"
	fieldOverview        = "monthly_overview"
	fieldWeeklyStructure = "weekly_structure"
	fieldWeeklyThemes    = "weekly_themes"

	// MethodSynthesized marks a workout plan built from defaults.
	MethodSynthesized = "synthesized"
)

// ErrNoMealData is reported when a payload carries no meal-shaped content.
var ErrNoMealData = errors.New("no meal plan data found in payload")

// Shape is the closed set of payload interpretations: RecognizedWorkoutPlan,
// RecognizedMealPlan or Unrecognized.
type Shape interface {
	Kind() string
	Document() domain.Document
}

// RecognizedWorkoutPlan is a workout payload with its per-day map located.
type RecognizedWorkoutPlan struct {
	DailyWorkouts   map[string]any
	Overview        map[string]any
	WeeklyStructure any
	Extras          map[string]any
	Method          string
	Synthesized     bool
}

// RecognizedMealPlan is a meal payload with its per-day map located.
type RecognizedMealPlan struct {
	DailyMeals   map[string]any
	Overview     map[string]any
	WeeklyThemes any
	Extras       map[string]any
	Method       string
}

// Unrecognized keeps the raw bytes of a payload no extractor could interpret.
type Unrecognized struct {
	Raw    []byte
	Reason string
}

func (RecognizedWorkoutPlan) Kind() string { return "workout" }
func (RecognizedMealPlan) Kind() string    { return "meal" }
func (Unrecognized) Kind() string          { return "unrecognized" }

// Document is the object persisted as a plan's filtered data.
func (p RecognizedWorkoutPlan) Document() domain.Document {
	doc := domain.Document{}
	for k, v := range p.Extras {
		doc[k] = v
	}
	doc[fieldDailyWorkouts] = p.DailyWorkouts
	if p.Overview != nil {
		doc[fieldOverview] = p.Overview
	}
	if p.WeeklyStructure != nil {
		doc[fieldWeeklyStructure] = p.WeeklyStructure
	}
	return doc
}

func (p RecognizedMealPlan) Document() domain.Document {
	doc := domain.Document{}
	for k, v := range p.Extras {
		doc[k] = v
	}
	doc[fieldDailyMeals] = p.DailyMeals
	if p.Overview != nil {
		doc[fieldOverview] = p.Overview
	}
	if p.WeeklyThemes != nil {
		doc[fieldWeeklyThemes] = p.WeeklyThemes
	}
	return doc
}

// Document of an unrecognized payload is its raw JSON when it decodes to an
// object, otherwise nil.
func (u Unrecognized) Document() domain.Document {
	var doc domain.Document
	if err := json.Unmarshal(u.Raw, &doc); err != nil {
		return nil
	}
	return doc
}

// WorkoutFromDocument reads a persisted workout document back into its variant.
func WorkoutFromDocument(doc domain.Document) (RecognizedWorkoutPlan, error) {
	daily, ok := doc[fieldDailyWorkouts].(map[string]any)
	if !ok {
		return RecognizedWorkoutPlan{}, errors.New("document has no daily_workouts object")
	}
	p := RecognizedWorkoutPlan{DailyWorkouts: daily, Method: fieldDailyWorkouts}
	p.Overview, _ = doc[fieldOverview].(map[string]any)
	p.WeeklyStructure = doc[fieldWeeklyStructure]
	p.Extras = remainder(doc, fieldDailyWorkouts, fieldOverview, fieldWeeklyStructure)
	return p, nil
}

// MealFromDocument reads a persisted meal document back into its variant.
func MealFromDocument(doc domain.Document) (RecognizedMealPlan, error) {
	daily, ok := doc[fieldDailyMeals].(map[string]any)
	if !ok {
		return RecognizedMealPlan{}, ErrNoMealData
	}
	p := RecognizedMealPlan{DailyMeals: daily, Method: fieldDailyMeals}
	p.Overview, _ = doc[fieldOverview].(map[string]any)
	p.WeeklyThemes = doc[fieldWeeklyThemes]
	p.Extras = remainder(doc, fieldDailyMeals, fieldOverview, fieldWeeklyThemes)
	return p, nil
}

func remainder(doc domain.Document, skip ...string) map[string]any {
	out := map[string]any{}
	for k, v := range doc {
		out[k] = v
	}
	for _, k := range skip {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Extract interprets raw for the given plan type. Workout extraction always
// yields a RecognizedWorkoutPlan; meal extraction yields Unrecognized when no
// per-day meal map exists.
func Extract(raw map[string]any, t domain.PlanType, month, year int) Shape {
	if t == domain.PlanTypeMeal {
		return ExtractMeal(raw, month, year)
	}
	return ExtractWorkout(raw, month, year)
}

// ExtractWorkout locates workout content in raw, synthesizing a minimal plan
// when no per-day map is present. raw is not modified.
func ExtractWorkout(raw map[string]any, month, year int) RecognizedWorkoutPlan {
	found := Resolve(raw, workoutTable)

	p := RecognizedWorkoutPlan{Extras: allowListed(raw, workoutExtras)}
	if m, ok := found[fieldDailyWorkouts]; ok {
		p.DailyWorkouts, _ = normalizeDaily(m.Value)
		p.Method = m.Method
	}
	if m, ok := found[fieldOverview]; ok {
		p.Overview, _ = m.Value.(map[string]any)
	}
	if m, ok := found[fieldWeeklyStructure]; ok {
		p.WeeklyStructure = m.Value
	}

	if len(p.DailyWorkouts) == 0 {
		p = synthesizedWorkout(p.Extras)
	}
	return EnsureWorkout(p, month, year)
}

// ExtractMeal locates meal content in raw. raw is not modified.
func ExtractMeal(raw map[string]any, month, year int) Shape {
	found := Resolve(raw, mealTable)

	m, ok := found[fieldDailyMeals]
	if !ok {
		return Unrecognized{Raw: rawBytes(raw), Reason: ErrNoMealData.Error()}
	}
	p := RecognizedMealPlan{Extras: allowListed(raw, mealExtras), Method: m.Method}
	p.DailyMeals, _ = normalizeDaily(m.Value)
	if ov, ok := found[fieldOverview]; ok {
		p.Overview, _ = ov.Value.(map[string]any)
	}
	if wt, ok := found[fieldWeeklyThemes]; ok {
		p.WeeklyThemes = wt.Value
	}
	return EnsureMeal(p, month, year)
}

func allowListed(raw map[string]any, fields []string) map[string]any {
	var out map[string]any
	for _, k := range fields {
		v, ok := raw[k]
		if !ok || !truthy(v) {
			continue
		}
		if out == nil {
			out = map[string]any{}
		}
		out[k] = v
	}
	return out
}

func rawBytes(raw map[string]any) []byte {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return b
}

// EnsureWorkout fills overview counts and a weekly structure when absent.
func EnsureWorkout(p RecognizedWorkoutPlan, month, year int) RecognizedWorkoutPlan {
	ov := ensureOverview(p.Overview, month, year)
	if _, ok := ov["workout_days"]; !ok {
		ov["workout_days"] = float64(countWorkoutDays(p.DailyWorkouts))
	}
	if _, ok := ov["rest_days"]; !ok {
		total, _ := ov["total_days"].(float64)
		workout, _ := ov["workout_days"].(float64)
		ov["rest_days"] = max(total-workout, 0)
	}
	p.Overview = ov
	if p.WeeklyStructure == nil {
		p.WeeklyStructure = map[string]any{
			"week_1": "Foundation",
			"week_2": "Build",
			"week_3": "Progress",
			"week_4": "Consolidate",
		}
	}
	return p
}

// EnsureMeal fills overview defaults when absent. It never adds meal days.
func EnsureMeal(p RecognizedMealPlan, month, year int) RecognizedMealPlan {
	ov := ensureOverview(p.Overview, month, year)
	if _, ok := ov["daily_calorie_target"]; !ok {
		ov["daily_calorie_target"] = float64(2000)
	}
	if _, ok := ov["dietary_preferences"]; !ok {
		ov["dietary_preferences"] = []any{}
	}
	p.Overview = ov
	return p
}

func ensureOverview(in map[string]any, month, year int) map[string]any {
	ov := map[string]any{}
	if in != nil {
		ov = copyMap(in)
	}
	if !truthy(ov["month"]) {
		ov["month"] = float64(month)
	}
	if !truthy(ov["year"]) {
		ov["year"] = float64(year)
	}
	if !truthy(ov["total_days"]) {
		ov["total_days"] = float64(daysIn(month, year))
	}
	return ov
}

func daysIn(month, year int) int {
	if month < 1 || month > 12 {
		return 30
	}
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func countWorkoutDays(daily map[string]any) int {
	n := 0
	for _, v := range daily {
		day, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if kind, _ := day["workout_type"].(string); kind == "Rest" {
			continue
		}
		n++
	}
	return n
}

func synthesizedWorkout(extras map[string]any) RecognizedWorkoutPlan {
	strength := func(focus string, exercises ...string) map[string]any {
		items := make([]any, 0, len(exercises))
		for _, name := range exercises {
			items = append(items, map[string]any{
				"name": name, "type": "strength", "sets": float64(3), "reps": "8-12", "rest_time": "60s",
			})
		}
		return map[string]any{
			"workout_type": focus + " Strength",
			"duration":     float64(45),
			"intensity":    "Moderate",
			"exercises":    items,
			"warm_up":      []any{"5 minutes light cardio", "Dynamic stretching"},
			"cool_down":    []any{"Static stretching", "Deep breathing"},
			"focus_areas":  []any{focus},
		}
	}
	if extras == nil {
		extras = map[string]any{}
	}
	if _, ok := extras["safety_guidelines"]; !ok {
		extras["safety_guidelines"] = []any{"Warm up before every session", "Stop if you feel pain"}
	}
	if _, ok := extras["equipment_requirements"]; !ok {
		extras["equipment_requirements"] = []any{"Bodyweight"}
	}
	return RecognizedWorkoutPlan{
		DailyWorkouts: map[string]any{
			"1": strength("Upper Body", "Push-ups", "Pike Push-ups", "Plank"),
			"2": strength("Lower Body", "Squats", "Lunges", "Glute Bridges"),
			"3": map[string]any{
				"workout_type": "Rest",
				"duration":     float64(0),
				"intensity":    "Low",
				"exercises":    []any{},
				"focus_areas":  []any{"Recovery"},
			},
		},
		Overview: map[string]any{
			"fitness_level": "beginner",
			"goals":         []any{"General fitness"},
		},
		Extras:      extras,
		Method:      MethodSynthesized,
		Synthesized: true,
	}
}
