// internal/domain/plan.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanType distinguishes the two monthly plan variants. Daily slices reuse it as their slice type.
type PlanType string

const (
	PlanTypeWorkout PlanType = "workout"
	PlanTypeMeal    PlanType = "meal"
)

var (
	ErrInvalidPlanType = errors.New("invalid plan type")
	ErrInvalidPeriod   = errors.New("invalid month/year")
	ErrInvalidPlayer   = errors.New("player id is required")
)

// ParsePlanType accepts "workout"/"meal" (case-insensitive).
func ParsePlanType(s string) (PlanType, error) {
	t := PlanType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlanType, s)
	}
	return t, nil
}

func (t PlanType) Valid() bool {
	return t == PlanTypeWorkout || t == PlanTypeMeal
}

// Sibling returns the other plan type (meal for workout and vice versa).
func (t PlanType) Sibling() PlanType {
	if t == PlanTypeWorkout {
		return PlanTypeMeal
	}
	return PlanTypeWorkout
}

// PlanStatus tracks a MonthlyPlan through the filter -> validate pipeline.
type PlanStatus string

const (
	StatusPending    PlanStatus = "PENDING"
	StatusFiltered   PlanStatus = "FILTERED"
	StatusActive     PlanStatus = "ACTIVE"
	StatusError      PlanStatus = "ERROR"
	StatusSuperseded PlanStatus = "SUPERSEDED" // Replaced by a regeneration, kept for audit
)

// allowedTransitions is the plan state machine. ACTIVE and ERROR are terminal
// apart from being superseded by an explicit regeneration.
var allowedTransitions = map[PlanStatus][]PlanStatus{
	StatusPending:  {StatusFiltered, StatusActive, StatusError, StatusSuperseded},
	StatusFiltered: {StatusActive, StatusError, StatusSuperseded},
	StatusActive:   {StatusSuperseded},
	StatusError:    {StatusSuperseded},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether generation never moves a row out of s on its own.
func (s PlanStatus) IsTerminal() bool {
	return s == StatusActive || s == StatusError || s == StatusSuperseded
}

// PlanKey identifies the single current plan of a type for a player and month.
type PlanKey struct {
	PlayerID primitive.ObjectID `json:"playerId"`
	Month    int                `json:"month"`
	Year     int                `json:"year"`
	Type     PlanType           `json:"planType"`
}

func (k PlanKey) String() string {
	return fmt.Sprintf("%s:%04d-%02d:%s", k.PlayerID.Hex(), k.Year, k.Month, k.Type)
}

// Validate checks the key fields without touching the store.
func (k PlanKey) Validate() error {
	if k.PlayerID == primitive.NilObjectID {
		return ErrInvalidPlayer
	}
	if k.Month < 1 || k.Month > 12 || k.Year < 2000 || k.Year > 2200 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidPeriod, k.Month, k.Year)
	}
	if !k.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlanType, k.Type)
	}
	return nil
}

// Sibling returns the same period key for the other plan type.
func (k PlanKey) Sibling() PlanKey {
	k.Type = k.Type.Sibling()
	return k
}

// DaysInMonth returns the number of calendar days of the key's month.
func (k PlanKey) DaysInMonth() int {
	return time.Date(k.Year, time.Month(k.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// PlanKeyFor builds the key covering the given calendar date.
func PlanKeyFor(playerID primitive.ObjectID, date time.Time, t PlanType) PlanKey {
	d := NormalizeDate(date)
	return PlanKey{PlayerID: playerID, Month: int(d.Month()), Year: d.Year(), Type: t}
}

// GenerationParams carries the fitness/dietary inputs forwarded to the AI collaborator.
type GenerationParams struct {
	FitnessLevel       string   `bson:"fitnessLevel,omitempty" json:"fitnessLevel,omitempty"`
	Goals              []string `bson:"goals,omitempty" json:"goals,omitempty"`
	AvailableTime      int      `bson:"availableTime,omitempty" json:"availableTime,omitempty"` // minutes per session
	Equipment          []string `bson:"equipment,omitempty" json:"equipment,omitempty"`
	Injuries           []string `bson:"injuries,omitempty" json:"injuries,omitempty"`
	Preferences        []string `bson:"preferences,omitempty" json:"preferences,omitempty"`
	DietaryPreferences []string `bson:"dietaryPreferences,omitempty" json:"dietaryPreferences,omitempty"`
	Allergies          []string `bson:"allergies,omitempty" json:"allergies,omitempty"`
	CalorieTarget      int      `bson:"calorieTarget,omitempty" json:"calorieTarget,omitempty"`
	MealPrepTime       int      `bson:"mealPrepTime,omitempty" json:"mealPrepTime,omitempty"`
	BudgetRange        string   `bson:"budgetRange,omitempty" json:"budgetRange,omitempty"`
}

// FilterMetadata describes how filteredData was obtained.
type FilterMetadata struct {
	FilteredAt       time.Time `bson:"filteredAt" json:"filteredAt"`
	FilterVersion    string    `bson:"filterVersion" json:"filterVersion"`
	ExtractionMethod string    `bson:"extractionMethod,omitempty" json:"extractionMethod,omitempty"`
	RecoveryStrategy string    `bson:"recoveryStrategy,omitempty" json:"recoveryStrategy,omitempty"`
	Synthesized      bool      `bson:"synthesized" json:"synthesized"`
	WarningsCount    int       `bson:"warningsCount" json:"warningsCount"`
}

// ErrorLog keeps filter warnings and validator errors side by side; validator
// errors are appended, never replacing the filter warnings.
type ErrorLog struct {
	FilterErrors   []string        `bson:"filterErrors,omitempty" json:"filterErrors,omitempty"`
	Errors         []string        `bson:"errors,omitempty" json:"errors,omitempty"`
	FilterMetadata *FilterMetadata `bson:"filterMetadata,omitempty" json:"filterMetadata,omitempty"`
}

// Empty reports whether nothing has been logged.
func (l *ErrorLog) Empty() bool {
	return l == nil || (len(l.FilterErrors) == 0 && len(l.Errors) == 0 && l.FilterMetadata == nil)
}

// MonthlyPlan is a month-scoped workout or meal plan produced by the AI collaborator.
type MonthlyPlan struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlayerID          primitive.ObjectID `bson:"playerId" json:"playerId"`
	Month             int                `bson:"month" json:"month"`
	Year              int                `bson:"year" json:"year"`
	PlanType          PlanType           `bson:"planType" json:"planType"`
	Status            PlanStatus         `bson:"status" json:"status"`
	Superseded        bool               `bson:"superseded" json:"superseded"` // Drives the partial unique index
	Params            GenerationParams   `bson:"params" json:"params"`
	RawResponse       string             `bson:"rawResponse,omitempty" json:"-"` // Opaque captured AI payload
	RawObjectKey      string             `bson:"rawObjectKey,omitempty" json:"-"`
	FilteredData      Document           `bson:"filteredData,omitempty" json:"filteredData,omitempty"`
	ValidatedData     Document           `bson:"validatedData,omitempty" json:"validatedData,omitempty"`
	ErrorLog          *ErrorLog          `bson:"errorLog,omitempty" json:"errorLog,omitempty"`
	GeneratedAt       *time.Time         `bson:"generatedAt,omitempty" json:"generatedAt,omitempty"`
	LastPopulatedDate *time.Time         `bson:"lastPopulatedDate,omitempty" json:"lastPopulatedDate,omitempty"`
	SupersededAt      *time.Time         `bson:"supersededAt,omitempty" json:"supersededAt,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Key returns the plan's identifying key.
func (p *MonthlyPlan) Key() PlanKey {
	return PlanKey{PlayerID: p.PlayerID, Month: p.Month, Year: p.Year, Type: p.PlanType}
}

func (p *MonthlyPlan) IsActive() bool {
	return p.Status == StatusActive && !p.Superseded
}

// DailyMapField is the top-level field holding the per-day map for a plan type.
func DailyMapField(t PlanType) string {
	if t == PlanTypeMeal {
		return "daily_meals"
	}
	return "daily_workouts"
}
