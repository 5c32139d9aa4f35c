package service

import (
	"errors"
	"testing"
	"time"

	"fithero/planner/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePlan(t *testing.T) {
	overview := map[string]any{"month": 8.0}
	tests := []struct {
		name    string
		pt      domain.PlanType
		data    domain.Document
		missing []string
	}{
		{
			name: "valid workout",
			pt:   domain.PlanTypeWorkout,
			data: domain.Document{"daily_workouts": map[string]any{"1": map[string]any{}}, "monthly_overview": overview},
		},
		{
			name: "valid meal",
			pt:   domain.PlanTypeMeal,
			data: domain.Document{"daily_meals": map[string]any{"1": map[string]any{}}, "monthly_overview": overview},
		},
		{
			name:    "meal data checked for the wrong type",
			pt:      domain.PlanTypeWorkout,
			data:    domain.Document{"daily_meals": map[string]any{"1": map[string]any{}}, "monthly_overview": overview},
			missing: []string{"missing required field: daily_workouts"},
		},
		{
			name:    "empty day map and no overview",
			pt:      domain.PlanTypeMeal,
			data:    domain.Document{"daily_meals": map[string]any{}},
			missing: []string{"daily_meals is empty", "missing required field: monthly_overview"},
		},
		{
			name:    "day map is an array",
			pt:      domain.PlanTypeWorkout,
			data:    domain.Document{"daily_workouts": []any{map[string]any{}}, "monthly_overview": overview},
			missing: []string{"daily_workouts must be an object keyed by day"},
		},
		{
			name:    "nil",
			pt:      domain.PlanTypeWorkout,
			missing: []string{"plan data is empty"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlan(tt.pt, tt.data)
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.missing, verr.Missing)
		})
	}
}

func TestStampValidated_DoesNotMutateInput(t *testing.T) {
	in := domain.Document{"daily_workouts": map[string]any{"1": map[string]any{}}}
	out := stampValidated(in, time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))

	assert.NotContains(t, in, "validation")
	stamp := out["validation"].(map[string]any)
	assert.Equal(t, "2025-08-01T12:00:00Z", stamp["validated_at"])
	assert.Equal(t, "1.0", stamp["validation_version"])
}
