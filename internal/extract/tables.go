package extract

var overviewKeys = []string{"monthly_overview", "overview", "summary", "month_info", "plan_overview"}

// workoutTable is evaluated top to bottom; generic container names must look per-day.
var workoutTable = []Candidate{
	{Target: fieldDailyWorkouts, Path: []string{"daily_workouts"}},
	{Target: fieldDailyWorkouts, Path: []string{"workouts"}},
	{Target: fieldDailyWorkouts, Path: []string{"plan"}, Accept: looksPerDay},
	{Target: fieldDailyWorkouts, Path: []string{"workout_plan", "days"}},
	{Target: fieldDailyWorkouts, Path: []string{"workout_plan", "daily_workouts"}},
	{Target: fieldDailyWorkouts, Path: []string{"workout_plan"}, Accept: looksPerDay},
	{Target: fieldDailyWorkouts, Path: []string{"days"}},
	{Target: fieldDailyWorkouts, Path: []string{"schedule"}, Accept: looksPerDay},
	{Target: fieldDailyWorkouts, Heuristic: nestedDayMap(nil), Label: "heuristic:day_map"},
	{Target: fieldDailyWorkouts, Heuristic: topLevelDays(nil), Label: "heuristic:top_level_days"},

	{Target: fieldWeeklyStructure, Path: []string{"weekly_structure"}},
	{Target: fieldWeeklyStructure, Path: []string{"weeks"}},
	{Target: fieldWeeklyStructure, Path: []string{"week_plan"}},
	{Target: fieldWeeklyStructure, Path: []string{"weekly_plan"}},
}

var workoutExtras = []string{
	"equipment_requirements", "safety_guidelines", "progression_plan", "modifications",
	"notes", "instructions", "tips", "phases", "training_phases", "goals", "difficulty", "level",
}

var mealTable = []Candidate{
	{Target: fieldDailyMeals, Path: []string{"daily_meals"}},
	{Target: fieldDailyMeals, Path: []string{"meals"}, Accept: mealDays},
	{Target: fieldDailyMeals, Path: []string{"meal_plan", "daily_meals"}},
	{Target: fieldDailyMeals, Path: []string{"meal_plan", "days"}},
	{Target: fieldDailyMeals, Path: []string{"meal_plan"}, Accept: mealDays},
	{Target: fieldDailyMeals, Path: []string{"nutrition_plan"}, Accept: mealDays},
	{Target: fieldDailyMeals, Path: []string{"food_plan"}, Accept: mealDays},
	{Target: fieldDailyMeals, Path: []string{"diet_plan"}, Accept: mealDays},
	{Target: fieldDailyMeals, Path: []string{"daily_nutrition"}},
	{Target: fieldDailyMeals, Path: []string{"menu"}, Accept: mealDays},
	{Target: fieldDailyMeals, Path: []string{"daily_menu"}},
	{Target: fieldDailyMeals, Heuristic: nestedDayMap(isMealDay), Label: "heuristic:meal_day_map"},
	{Target: fieldDailyMeals, Heuristic: topLevelDays(isMealDay), Label: "heuristic:top_level_meal_days"},

	{Target: fieldWeeklyThemes, Path: []string{"weekly_themes"}},
	{Target: fieldWeeklyThemes, Path: []string{"weekly_meals"}},
	{Target: fieldWeeklyThemes, Path: []string{"week_themes"}},
	{Target: fieldWeeklyThemes, Path: []string{"meal_themes"}},
}

var mealExtras = []string{
	"shopping_lists", "meal_prep_schedule", "nutritional_guidelines", "dietary_preferences",
	"allergies", "calorie_target", "macro_targets", "prep_tips", "cooking_instructions",
	"ingredient_substitutions",
}

var mealMarkers = []string{"daily_calorie_target", "dietary_preferences", "average_daily_calories", "meal_prep_strategy"}

var mealDayKeys = []string{"breakfast", "lunch", "dinner", "snacks", "meals", "daily_totals", "nutrition"}

func init() {
	for _, k := range overviewKeys {
		workoutTable = append(workoutTable, Candidate{Target: fieldOverview, Path: []string{k}})
	}
	for _, k := range append(overviewKeys, "meal_overview", "nutrition_overview", "diet_overview") {
		mealTable = append(mealTable, Candidate{Target: fieldOverview, Path: []string{k}, Accept: hasMealMarker})
	}
}

func isMealDay(day map[string]any) bool {
	for _, k := range mealDayKeys {
		if _, ok := day[k]; ok {
			return true
		}
	}
	return false
}

// mealDays accepts per-day containers in which at least one day is meal-shaped.
func mealDays(v any) bool {
	daily, ok := normalizeDaily(v)
	if !ok {
		return false
	}
	for _, item := range daily {
		if day, ok := item.(map[string]any); ok && isMealDay(day) {
			return true
		}
	}
	return false
}

func hasMealMarker(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, k := range mealMarkers {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
