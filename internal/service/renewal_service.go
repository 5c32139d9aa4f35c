package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/logger"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const defaultActiveWindow = 30 * 24 * time.Hour

// RenewalService carries recently active players into a new month.
type RenewalService interface {
	// RenewAll generates the month's missing plans for every player active
	// within the configured window. Per-player failures are counted, not returned.
	RenewAll(ctx context.Context, month, year int) (*RenewalStats, error)
	// RenewPlayer generates the month's missing plans for one player and
	// reports whether anything had to be generated.
	RenewPlayer(ctx context.Context, playerID primitive.ObjectID, month, year int) (bool, error)
	// Coverage reports how many players hold a plan of each type for the month.
	Coverage(ctx context.Context, month, year int) (*RenewalCoverage, error)
}

// RenewalStats summarises a RenewAll run.
type RenewalStats struct {
	Month   int      `json:"month"`
	Year    int      `json:"year"`
	Total   int      `json:"total"`
	Renewed int      `json:"renewed"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// RenewalCoverage is the per-month plan count against the player base.
type RenewalCoverage struct {
	Month        int     `json:"month"`
	Year         int     `json:"year"`
	TotalPlayers int64   `json:"totalPlayers"`
	WorkoutPlans int64   `json:"workoutPlans"`
	MealPlans    int64   `json:"mealPlans"`
	CoveragePct  float64 `json:"coveragePct"` // players with both types, as a percentage
}

// RenewalOptions tunes RenewAll.
type RenewalOptions struct {
	ActiveWindow time.Duration
	Concurrency  int
}

type renewalService struct {
	plans     PlanService
	planStore repository.MonthlyPlanRepository
	players   repository.PlayerRepository
	opts      RenewalOptions
	log       *logger.Logger
	now       func() time.Time
}

// NewRenewalService creates a new instance of renewalService.
func NewRenewalService(plans PlanService, store repository.Store, opts RenewalOptions, log *logger.Logger) RenewalService {
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = defaultActiveWindow
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultSweepConcurrency
	}
	return &renewalService{
		plans:     plans,
		planStore: store.Plans,
		players:   store.Players,
		opts:      opts,
		log:       logger.OrNop(log).With("component", "RenewalService"),
		now:       time.Now,
	}
}

func validPeriod(month, year int) error {
	// Any player id will do; only the period is being checked.
	key := domain.PlanKey{PlayerID: primitive.NewObjectID(), Month: month, Year: year, Type: domain.PlanTypeWorkout}
	return key.Validate()
}

func (s *renewalService) RenewAll(ctx context.Context, month, year int) (*RenewalStats, error) {
	if err := validPeriod(month, year); err != nil {
		return nil, err
	}
	since := s.now().Add(-s.opts.ActiveWindow)
	players, err := s.players.ListActiveSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list active players: %w", err)
	}

	stats := &RenewalStats{Month: month, Year: year, Total: len(players)}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)
	for _, p := range players {
		p := p
		g.Go(func() error {
			renewed, err := s.RenewPlayer(ctx, p.ID, month, year)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
				stats.Errors = append(stats.Errors, fmt.Sprintf("player %s: %v", p.ID.Hex(), err))
			case renewed:
				stats.Renewed++
			default:
				stats.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(stats.Errors)

	s.log.Info("monthly renewal finished", "month", month, "year", year,
		"total", stats.Total, "renewed", stats.Renewed, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func (s *renewalService) RenewPlayer(ctx context.Context, playerID primitive.ObjectID, month, year int) (bool, error) {
	if playerID == primitive.NilObjectID {
		return false, domain.ErrInvalidPlayer
	}
	if err := validPeriod(month, year); err != nil {
		return false, err
	}
	if _, err := s.players.GetByID(ctx, playerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrPlayerNotFound
		}
		return false, err
	}

	var missing []domain.PlanType
	for _, t := range []domain.PlanType{domain.PlanTypeWorkout, domain.PlanTypeMeal} {
		_, err := s.planStore.FindCurrent(ctx, domain.PlanKey{PlayerID: playerID, Month: month, Year: year, Type: t})
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrNotFound):
			missing = append(missing, t)
		default:
			return false, err
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	params := s.previousParams(ctx, playerID, month, year)
	for _, t := range missing {
		// A workout reply may already have seeded the meal plan; Generate then returns it.
		plan, err := s.plans.Generate(ctx, GenerateRequest{PlayerID: playerID, Month: month, Year: year, Type: t, Params: params})
		if err != nil {
			return false, fmt.Errorf("%s plan: %w", t, err)
		}
		if plan.Status == domain.StatusError {
			return false, fmt.Errorf("%s plan %s ended in %s", t, plan.ID.Hex(), plan.Status)
		}
	}
	s.log.Info("plans renewed", "playerId", playerID.Hex(), "month", month, "year", year, "types", missing)
	return true, nil
}

// previousParams reuses the generation parameters of the prior month's plan,
// so a renewal asks for the same kind of plan the player last received.
func (s *renewalService) previousParams(ctx context.Context, playerID primitive.ObjectID, month, year int) domain.GenerationParams {
	month--
	if month == 0 {
		month, year = 12, year-1
	}
	for _, t := range []domain.PlanType{domain.PlanTypeWorkout, domain.PlanTypeMeal} {
		plan, err := s.planStore.FindCurrent(ctx, domain.PlanKey{PlayerID: playerID, Month: month, Year: year, Type: t})
		if err == nil {
			return plan.Params
		}
	}
	return domain.GenerationParams{}
}

func (s *renewalService) Coverage(ctx context.Context, month, year int) (*RenewalCoverage, error) {
	if err := validPeriod(month, year); err != nil {
		return nil, err
	}
	total, err := s.players.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count players: %w", err)
	}
	workouts, err := s.planStore.CountCurrent(ctx, month, year, domain.PlanTypeWorkout)
	if err != nil {
		return nil, fmt.Errorf("count workout plans: %w", err)
	}
	meals, err := s.planStore.CountCurrent(ctx, month, year, domain.PlanTypeMeal)
	if err != nil {
		return nil, fmt.Errorf("count meal plans: %w", err)
	}

	out := &RenewalCoverage{Month: month, Year: year, TotalPlayers: total, WorkoutPlans: workouts, MealPlans: meals}
	if total > 0 {
		out.CoveragePct = float64(min(workouts, meals)) / float64(total) * 100
	}
	return out, nil
}
