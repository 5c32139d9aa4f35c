package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fithero/planner/internal/config"
	"fithero/planner/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		kind     Kind
		text     string
		dataKeys []string
	}{
		{
			name:     "structured",
			body:     `{"daily_workouts": {"1": {}}}`,
			kind:     Structured,
			dataKeys: []string{"daily_workouts"},
		},
		{
			name:     "structured inside raw_response",
			body:     `{"raw_response": {"daily_meals": {"1": {}}}, "meta": 1}`,
			kind:     Structured,
			dataKeys: []string{"daily_meals"},
		},
		{
			name: "malformed wrapper",
			body: `{"success": false, "raw_result": "{daily_workouts: {1: {}},}"}`,
			kind: Malformed,
			text: `{daily_workouts: {1: {}},}`,
		},
		{
			name: "not json",
			body: `Here is your plan: {'a': 1}`,
			kind: Malformed,
			text: `Here is your plan: {'a': 1}`,
		},
		{
			name: "raw_response text",
			body: `{"raw_response": "{\"a\": 1,}"}`,
			kind: Malformed,
			text: `{"a": 1,}`,
		},
		{
			name:     "validated top level",
			body:     `{"validated_data": {"daily_workouts": {"1": {}}, "monthly_overview": {}}}`,
			kind:     Validated,
			dataKeys: []string{"daily_workouts", "monthly_overview"},
		},
		{
			name:     "validated with filtered data",
			body:     `{"raw_response": {"validated_data": {"v": 1}, "filtered_data": {"f": 1}}}`,
			kind:     Validated,
			dataKeys: []string{"f"},
		},
		{
			name:     "empty validated falls through",
			body:     `{"validated_data": {}, "daily_workouts": {"1": {}}}`,
			kind:     Structured,
			dataKeys: []string{"validated_data", "daily_workouts"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.body))
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.body, string(got.Raw))
			assert.Equal(t, tt.text, got.Text)
			keys := make([]string, 0, len(got.Data))
			for k := range got.Data {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.dataKeys, keys)
		})
	}
}

func TestRequestPayload(t *testing.T) {
	workout := Request{PlayerID: "p", Month: 8, Year: 2025, Type: domain.PlanTypeWorkout,
		Params: domain.GenerationParams{FitnessLevel: "beginner", Goals: []string{"strength"}}}.Payload()
	assert.Equal(t, "beginner", workout["fitness_level"])
	assert.Equal(t, 45, workout["available_time"])
	assert.Equal(t, []string{}, workout["injuries_limitations"])
	assert.NotContains(t, workout, "calorie_target")

	meal := Request{PlayerID: "p", Month: 8, Year: 2025, Type: domain.PlanTypeMeal}.Payload()
	assert.Equal(t, 2000, meal["calorie_target"])
	assert.Equal(t, "medium", meal["budget_range"])
	assert.NotContains(t, meal, "fitness_level")
}

func TestHTTPClient_Generate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "raw_result": "{\"daily_meals\": {}}"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(config.AIConfig{
		BaseURL:     srv.URL + "/",
		Timeout:     time.Second,
		WorkoutPath: "/generate-monthly-workout-plan",
		MealPath:    "/generate-monthly-meal-plan",
	}, nil)

	resp, err := c.Generate(context.Background(), Request{PlayerID: "abc", Month: 3, Year: 2025, Type: domain.PlanTypeMeal})
	require.NoError(t, err)

	assert.Equal(t, "/generate-monthly-meal-plan", gotPath)
	assert.Equal(t, "abc", gotBody["user_id"])
	assert.Equal(t, float64(3), gotBody["month"])
	assert.Equal(t, Malformed, resp.Kind)
	assert.Equal(t, `{"daily_meals": {}}`, resp.Text)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(config.AIConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)
	_, err := c.Generate(context.Background(), Request{Type: domain.PlanTypeWorkout})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Contains(t, statusErr.Body, "model overloaded")
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(config.AIConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := c.Generate(context.Background(), Request{Type: domain.PlanTypeWorkout})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
