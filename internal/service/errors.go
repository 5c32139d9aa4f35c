package service

import (
	"errors"
	"strings"

	"fithero/planner/internal/domain"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound         = errors.New("monthly plan not found")
	ErrPlanNotActive        = errors.New("monthly plan is not active")
	ErrDayNotFound          = errors.New("no plan entry for the requested day")
	ErrInvalidPeriod        = domain.ErrInvalidPeriod
	ErrInvalidPlanType      = domain.ErrInvalidPlanType
	ErrGeneratorUnavailable = errors.New("plan generator unavailable")
	ErrArchiveDisabled      = errors.New("raw payload archive is not configured")
	ErrRawPayloadMissing    = errors.New("plan has no archived raw payload")
	ErrInvalidRange         = errors.New("invalid date range")
	ErrPlayerNotFound       = errors.New("player not found")
)

// ValidationError lists the structural problems found in a filtered plan.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "plan validation failed: " + strings.Join(e.Missing, "; ")
}
