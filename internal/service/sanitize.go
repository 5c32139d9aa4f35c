package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"fithero/planner/internal/domain"
)

// Activity XP by phase. Warm-up and cool-down items are worth less than main-set exercises.
const (
	warmUpXP   = 10
	mainXP     = 20
	coolDownXP = 5
)

var (
	validIntensities  = []string{"Low", "Moderate", "High", "Very High"}
	validExerciseType = []string{"strength", "cardio", "flexibility", "mixed"}
	unsafeTextChars   = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")
)

// SanitizeWorkoutDay clamps and truncates one day of AI workout content.
// Out-of-range values are clamped, never rejected.
func SanitizeWorkoutDay(raw map[string]any) domain.WorkoutDay {
	day := domain.WorkoutDay{
		DayOfWeek:   textOr(raw["day_of_week"], "Unknown", 15),
		WorkoutType: textOr(raw["workout_type"], "General", 100),
		Duration:    clampInt(numberOr(raw["duration"], 30), 0, 240),
		Intensity:   oneOf(raw["intensity"], validIntensities, "Low"),
		Exercises:   sanitizeExercises(raw["exercises"]),
		WarmUp:      sanitizeRoutine(first(raw, "warm_up", "warmup")),
		CoolDown:    sanitizeRoutine(first(raw, "cool_down", "cooldown")),
		FocusAreas:  textList(raw["focus_areas"], 50, 10),
	}
	if n, ok := number(raw["estimated_calories"]); ok {
		c := clampInt(n, 0, 1500)
		day.EstimatedCalories = &c
	}
	day.Activities = deriveActivities(day)
	for _, a := range day.Activities {
		day.TotalXP += a.XP
	}
	return day
}

func sanitizeExercises(v any) []domain.Exercise {
	items, _ := v.([]any)
	if len(items) > 20 {
		items = items[:20]
	}
	out := make([]domain.Exercise, 0, len(items))
	for _, item := range items {
		ex, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, domain.Exercise{
			Name:          textOr(ex["name"], "Unknown Exercise", 150),
			Type:          oneOf(ex["type"], validExerciseType, "strength"),
			Sets:          clampInt(numberOr(ex["sets"], 1), 1, 12),
			Reps:          textOr(ex["reps"], "1", 30),
			RestTime:      textOr(ex["rest_time"], "60s", 15),
			Notes:         textOr(ex["notes"], "", 300),
			Progression:   textOr(ex["progression"], "", 400),
			Equipment:     textList(ex["equipment"], 50, 10),
			TargetMuscles: textList(ex["target_muscles"], 50, 10),
		})
	}
	return out
}

// sanitizeRoutine accepts plain strings or objects carrying a name.
func sanitizeRoutine(v any) []string {
	items, _ := v.([]any)
	if len(items) > 10 {
		items = items[:10]
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			item = obj["name"]
		}
		if s := textOr(item, "", 200); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func deriveActivities(day domain.WorkoutDay) []domain.Activity {
	out := make([]domain.Activity, 0, len(day.WarmUp)+len(day.Exercises)+len(day.CoolDown))
	for i, name := range day.WarmUp {
		out = append(out, domain.Activity{ID: fmt.Sprintf("warmup_%d", i), Name: name, Phase: domain.PhaseWarmUp, XP: warmUpXP})
	}
	for i, ex := range day.Exercises {
		out = append(out, domain.Activity{ID: fmt.Sprintf("main_%d", i), Name: ex.Name, Phase: domain.PhaseMain, XP: mainXP})
	}
	for i, name := range day.CoolDown {
		out = append(out, domain.Activity{ID: fmt.Sprintf("cooldown_%d", i), Name: name, Phase: domain.PhaseCoolDown, XP: coolDownXP})
	}
	return out
}

// SanitizeMealDay clamps and truncates one day of AI meal content. Missing
// meals are replaced by a default meal.
func SanitizeMealDay(raw map[string]any) domain.MealDay {
	return domain.MealDay{
		DayOfWeek:   textOr(raw["day_of_week"], "Unknown", 15),
		Breakfast:   sanitizeMealItem(raw["breakfast"]),
		Lunch:       sanitizeMealItem(raw["lunch"]),
		Dinner:      sanitizeMealItem(raw["dinner"]),
		Snacks:      sanitizeSnacks(raw["snacks"]),
		DailyTotals: sanitizeTotals(raw["daily_totals"]),
	}
}

func defaultMeal() domain.MealItem {
	return domain.MealItem{
		Name:         "Default Meal",
		Calories:     400,
		Protein:      "20g",
		Carbs:        "40g",
		Fat:          "15g",
		PrepTime:     "15min",
		Ingredients:  []string{"Basic ingredients"},
		Instructions: []string{"Basic preparation"},
		DietaryTags:  []string{},
	}
}

func sanitizeMealItem(v any) domain.MealItem {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return defaultMeal()
	}
	return domain.MealItem{
		Name:          textOr(m["name"], "Default Meal", 150),
		Calories:      clampInt(numberOr(m["calories"], 400), 0, 3000),
		Protein:       textOr(m["protein"], "20g", 10),
		Carbs:         textOr(m["carbs"], "40g", 10),
		Fat:           textOr(m["fat"], "15g", 10),
		PrepTime:      textOr(m["prep_time"], "15min", 15),
		Ingredients:   textList(m["ingredients"], 100, 30),
		Instructions:  textList(m["instructions"], 1000, 15),
		MealPrepNotes: textOr(m["meal_prep_notes"], "", 500),
		DietaryTags:   textList(m["dietary_tags"], 30, 10),
	}
}

func sanitizeSnacks(v any) []domain.Snack {
	items, _ := v.([]any)
	if len(items) > 5 {
		items = items[:5]
	}
	out := make([]domain.Snack, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, domain.Snack{
			Name:        textOr(m["name"], "Snack", 100),
			Calories:    clampInt(numberOr(m["calories"], 150), 0, 800),
			Ingredients: textList(m["ingredients"], 50, 15),
			PrepTime:    textOr(m["prep_time"], "", 15),
		})
	}
	return out
}

func sanitizeTotals(v any) domain.DailyTotals {
	m, _ := v.(map[string]any)
	return domain.DailyTotals{
		Calories: clampFloat(numberOr(m["calories"], 2000), 0, 8000),
		Protein:  clampFloat(numberOr(m["protein"], 100), 0, 500),
		Carbs:    clampFloat(numberOr(m["carbs"], 250), 0, 1000),
		Fat:      clampFloat(numberOr(m["fat"], 65), 0, 400),
		Fiber:    clampFloat(numberOr(m["fiber"], 25), 0, 200),
		Sugar:    clampFloat(numberOr(m["sugar"], 50), 0, 300),
	}
}

// CleanText trims, strips HTML-significant characters, collapses whitespace
// and truncates to limit runes.
func CleanText(s string, limit int) string {
	s = strings.Join(strings.Fields(unsafeTextChars.Replace(s)), " ")
	if r := []rune(s); len(r) > limit {
		s = strings.TrimSpace(string(r[:limit]))
	}
	return s
}

// textOr renders scalars as text; missing or blank values take def.
func textOr(v any, def string, limit int) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = t.String()
	case int:
		s = strconv.Itoa(t)
	case bool:
		s = strconv.FormatBool(t)
	}
	if s = CleanText(s, limit); s == "" {
		return def
	}
	return s
}

func textList(v any, maxLen, maxItems int) []string {
	items, _ := v.([]any)
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := textOr(item, "", maxLen); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func oneOf(v any, allowed []string, def string) string {
	s, _ := v.(string)
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return def
}

// number reads JSON numbers and fully numeric strings.
func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numberOr(v any, def float64) float64 {
	if f, ok := number(v); ok {
		return f
	}
	return def
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clampInt(v float64, lo, hi int) int {
	return int(math.Round(clampFloat(v, float64(lo), float64(hi))))
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
