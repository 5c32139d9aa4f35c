package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/extract"
	"fithero/planner/internal/logger"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// MaxRangeDays bounds Range and RegenerateRange.
const MaxRangeDays = 62

const defaultSweepConcurrency = 4

// DailyService cuts immutable daily slices out of ACTIVE monthly plans.
type DailyService interface {
	// Populate returns the slice for the date, creating it on first request.
	Populate(ctx context.Context, playerID primitive.ObjectID, date time.Time, t domain.PlanType) (*domain.DailySlice, error)
	// PopulateDay populates both slice types. Per-type failures are returned
	// alongside whatever succeeded.
	PopulateDay(ctx context.Context, playerID primitive.ObjectID, date time.Time) (*DaySlices, error)
	// Range lists existing slices without creating any.
	Range(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) ([]domain.DailySlice, error)
	// RegenerateRange deletes the slices in range and cuts them again from
	// the current plans. Operator tool only.
	RegenerateRange(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) (*RangeResult, error)
	// PopulateAll runs PopulateDay for every player holding an ACTIVE plan
	// covering the date.
	PopulateAll(ctx context.Context, date time.Time) (*SweepResult, error)
}

// DaySlices is the outcome of PopulateDay.
type DaySlices struct {
	Workout *domain.DailySlice         `json:"workout,omitempty"`
	Meal    *domain.DailySlice         `json:"meal,omitempty"`
	Errors  map[domain.PlanType]string `json:"errors,omitempty"`
}

// RangeResult summarises a RegenerateRange run.
type RangeResult struct {
	Deleted int64    `json:"deleted"`
	Created int      `json:"created"`
	Skipped []string `json:"skipped,omitempty"`
}

// SweepResult summarises a PopulateAll run.
type SweepResult struct {
	Date      string   `json:"date"`
	Players   int      `json:"players"`
	Populated int      `json:"populated"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type dailyService struct {
	plans       repository.MonthlyPlanRepository
	slices      repository.DailySliceRepository
	concurrency int
	log         *logger.Logger
	now         func() time.Time
}

// NewDailyService creates a new instance of dailyService. sweepConcurrency
// bounds how many players PopulateAll works on at once; zero picks a default.
func NewDailyService(plans repository.MonthlyPlanRepository, slices repository.DailySliceRepository, sweepConcurrency int, log *logger.Logger) DailyService {
	if sweepConcurrency <= 0 {
		sweepConcurrency = defaultSweepConcurrency
	}
	return &dailyService{
		plans:       plans,
		slices:      slices,
		concurrency: sweepConcurrency,
		log:         logger.OrNop(log).With("component", "DailyService"),
		now:         time.Now,
	}
}

func (s *dailyService) Populate(ctx context.Context, playerID primitive.ObjectID, date time.Time, t domain.PlanType) (*domain.DailySlice, error) {
	if playerID == primitive.NilObjectID {
		return nil, domain.ErrInvalidPlayer
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlanType, t)
	}
	date = domain.NormalizeDate(date)

	// 1. Existing slices are returned untouched.
	existing, err := s.slices.Find(ctx, playerID, date, t)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// 2. The covering plan must be ACTIVE.
	plan, err := s.plans.FindCurrent(ctx, domain.PlanKeyFor(playerID, date, t))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive() {
		return nil, fmt.Errorf("%w: status is %s", ErrPlanNotActive, plan.Status)
	}

	// 3. Locate the day entry.
	daily, _ := plan.ValidatedData[domain.DailyMapField(t)].(map[string]any)
	entry, ok := extract.DayEntry(daily, date.Day())
	if !ok {
		return nil, fmt.Errorf("%w: %s day %d", ErrDayNotFound, t, date.Day())
	}

	// 4. Sanitize and persist once.
	slice := &domain.DailySlice{
		PlayerID:            playerID,
		Date:                date,
		SliceType:           t,
		SourceMonthlyPlanID: plan.ID,
		GeneratedBy:         domain.GeneratedByMonthlyAI,
		CreatedAt:           s.now(),
	}
	if t == domain.PlanTypeMeal {
		meal := SanitizeMealDay(entry)
		slice.Meal = &meal
	} else {
		workout := SanitizeWorkoutDay(entry)
		slice.Workout = &workout
	}

	_, err = s.slices.Create(ctx, slice)
	switch {
	case err == nil:
		if err := s.plans.SetLastPopulatedDate(ctx, plan.ID, date); err != nil {
			s.log.Warn("failed to record last populated date", "planId", plan.ID.Hex(), "error", err)
		}
		s.log.Info("daily slice created", "playerId", playerID.Hex(), "date", date.Format(time.DateOnly), "type", t, "planId", plan.ID.Hex())
	case errors.Is(err, repository.ErrDuplicate):
		s.log.Debug("daily slice created concurrently", "playerId", playerID.Hex(), "date", date.Format(time.DateOnly), "type", t)
	default:
		return nil, fmt.Errorf("create daily slice: %w", err)
	}

	// Return the stored row so every caller sees identical content.
	return s.slices.Find(ctx, playerID, date, t)
}

func (s *dailyService) PopulateDay(ctx context.Context, playerID primitive.ObjectID, date time.Time) (*DaySlices, error) {
	out := &DaySlices{}
	for _, t := range []domain.PlanType{domain.PlanTypeWorkout, domain.PlanTypeMeal} {
		slice, err := s.Populate(ctx, playerID, date, t)
		if err != nil {
			if out.Errors == nil {
				out.Errors = map[domain.PlanType]string{}
			}
			out.Errors[t] = err.Error()
			continue
		}
		if t == domain.PlanTypeMeal {
			out.Meal = slice
		} else {
			out.Workout = slice
		}
	}
	if out.Workout == nil && out.Meal == nil {
		return out, ErrDayNotFound
	}
	return out, nil
}

func (s *dailyService) Range(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) ([]domain.DailySlice, error) {
	start, end, err := checkRange(playerID, start, end)
	if err != nil {
		return nil, err
	}
	return s.slices.ListRange(ctx, playerID, start, end)
}

func (s *dailyService) RegenerateRange(ctx context.Context, playerID primitive.ObjectID, start, end time.Time) (*RangeResult, error) {
	start, end, err := checkRange(playerID, start, end)
	if err != nil {
		return nil, err
	}
	deleted, err := s.slices.DeleteRange(ctx, playerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("delete daily slices: %w", err)
	}
	res := &RangeResult{Deleted: deleted}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, t := range []domain.PlanType{domain.PlanTypeWorkout, domain.PlanTypeMeal} {
			if _, err := s.Populate(ctx, playerID, d, t); err != nil {
				res.Skipped = append(res.Skipped, fmt.Sprintf("%s %s: %v", d.Format(time.DateOnly), t, err))
				continue
			}
			res.Created++
		}
	}
	s.log.Info("daily slices regenerated", "playerId", playerID.Hex(), "start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly), "deleted", deleted, "created", res.Created)
	return res, nil
}

func (s *dailyService) PopulateAll(ctx context.Context, date time.Time) (*SweepResult, error) {
	date = domain.NormalizeDate(date)
	players, err := s.plans.ListActivePlayers(ctx, int(date.Month()), date.Year())
	if err != nil {
		return nil, fmt.Errorf("list players with active plans: %w", err)
	}
	res := &SweepResult{Date: date.Format(time.DateOnly), Players: len(players)}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, playerID := range players {
		playerID := playerID
		g.Go(func() error {
			_, err := s.PopulateDay(ctx, playerID, date)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("player %s: %v", playerID.Hex(), err))
				return nil
			}
			res.Populated++
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(res.Errors)

	s.log.Info("daily sweep finished", "date", res.Date, "players", res.Players, "populated", res.Populated, "failed", res.Failed)
	return res, nil
}

func checkRange(playerID primitive.ObjectID, start, end time.Time) (time.Time, time.Time, error) {
	if playerID == primitive.NilObjectID {
		return start, end, domain.ErrInvalidPlayer
	}
	start, end = domain.NormalizeDate(start), domain.NormalizeDate(end)
	if end.Before(start) {
		return start, end, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxRangeDays {
		return start, end, fmt.Errorf("%w: %d days exceeds %d", ErrInvalidRange, days, MaxRangeDays)
	}
	return start, end, nil
}
