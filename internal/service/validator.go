package service

import (
	"fmt"
	"time"

	"fithero/planner/internal/domain"
)

const (
	validationVersion = "1.0"
	filterVersion     = "1.0"
	fieldOverview     = "monthly_overview"
	fieldValidation   = "validation"
)

// ValidatePlan checks that filtered data carries the fields daily slicing
// depends on: a non-empty per-day map and a monthly overview object.
func ValidatePlan(t domain.PlanType, data domain.Document) error {
	var missing []string
	dailyField := domain.DailyMapField(t)

	if data == nil {
		return &ValidationError{Missing: []string{"plan data is empty"}}
	}
	switch daily := data[dailyField].(type) {
	case map[string]any:
		if len(daily) == 0 {
			missing = append(missing, fmt.Sprintf("%s is empty", dailyField))
		}
	case nil:
		missing = append(missing, fmt.Sprintf("missing required field: %s", dailyField))
	default:
		missing = append(missing, fmt.Sprintf("%s must be an object keyed by day", dailyField))
	}
	if _, ok := data[fieldOverview].(map[string]any); !ok {
		missing = append(missing, fmt.Sprintf("missing required field: %s", fieldOverview))
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// stampValidated copies data and records when and by which rules it was validated.
func stampValidated(data domain.Document, at time.Time) domain.Document {
	out := data.Clone()
	out[fieldValidation] = map[string]any{
		"validated_at":       at.UTC().Format(time.RFC3339),
		"validation_version": validationVersion,
	}
	return out
}
