// Package generator talks to the external AI plan service and classifies
// whatever it returns.
package generator

import (
	"context"
	"encoding/json"

	"fithero/planner/internal/domain"
)

// Request is sent for one (player, month, year, plan type).
type Request struct {
	PlayerID string
	Month    int
	Year     int
	Type     domain.PlanType
	Params   domain.GenerationParams
}

// Kind tells the pipeline which path a response takes.
type Kind int

const (
	// Structured responses are JSON objects used as-is.
	Structured Kind = iota
	// Malformed responses carry text that still needs recovery parsing.
	Malformed
	// Validated responses were validated upstream and skip filtering.
	Validated
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Validated:
		return "validated"
	default:
		return "structured"
	}
}

// Response is a classified AI reply. Raw always holds the body as received.
type Response struct {
	Kind      Kind
	Raw       []byte
	Data      map[string]any // Structured payload, or filtered data of a Validated reply
	Validated map[string]any // Validated only
	Text      string         // Malformed only
}

// Generator produces monthly plan payloads.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request) (*Response, error)

func (f Func) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Classify inspects a response body. It never fails: anything that is not a
// JSON object becomes Malformed text for the recovery parser.
func Classify(body []byte) *Response {
	resp := &Response{Raw: body}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		resp.Kind = Malformed
		resp.Text = string(body)
		return resp
	}

	if ok, present := obj["success"].(bool); present && !ok {
		if text, isText := obj["raw_result"].(string); isText {
			resp.Kind = Malformed
			resp.Text = text
			return resp
		}
	}

	inner := obj
	switch rr := obj["raw_response"].(type) {
	case map[string]any:
		inner = rr
	case string:
		if _, hasValidated := obj["validated_data"]; !hasValidated {
			resp.Kind = Malformed
			resp.Text = rr
			return resp
		}
	}

	for _, container := range []map[string]any{obj, inner} {
		validated, ok := container["validated_data"].(map[string]any)
		if !ok || len(validated) == 0 {
			continue
		}
		resp.Kind = Validated
		resp.Validated = validated
		resp.Data = validated
		if filtered, ok := container["filtered_data"].(map[string]any); ok && len(filtered) > 0 {
			resp.Data = filtered
		}
		return resp
	}

	resp.Kind = Structured
	resp.Data = inner
	return resp
}

// Payload is the request body understood by the AI service.
func (r Request) Payload() map[string]any {
	p := r.Params
	body := map[string]any{
		"user_id": r.PlayerID,
		"month":   r.Month,
		"year":    r.Year,
	}
	if r.Type == domain.PlanTypeMeal {
		body["dietary_preferences"] = nonNil(p.DietaryPreferences)
		body["allergies"] = nonNil(p.Allergies)
		body["calorie_target"] = orDefault(p.CalorieTarget, 2000)
		body["meal_prep_time"] = orDefault(p.MealPrepTime, 30)
		body["budget_range"] = p.BudgetRange
		if p.BudgetRange == "" {
			body["budget_range"] = "medium"
		}
		return body
	}
	body["fitness_level"] = p.FitnessLevel
	body["goals"] = nonNil(p.Goals)
	body["available_time"] = orDefault(p.AvailableTime, 45)
	body["equipment"] = nonNil(p.Equipment)
	body["injuries_limitations"] = nonNil(p.Injuries)
	body["preferred_activities"] = nonNil(p.Preferences)
	return body
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
