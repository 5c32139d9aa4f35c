// Package memory is an in-process implementation of the repository
// interfaces. It enforces the same uniqueness rules as the MongoDB indexes
// and stores BSON round-tripped copies, so callers never share state with it.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type progressKey struct {
	player      primitive.ObjectID
	achievement primitive.ObjectID
}

type sliceKey struct {
	player primitive.ObjectID
	date   time.Time
	t      domain.PlanType
}

// Store holds every collection behind one lock.
type Store struct {
	mu       sync.RWMutex
	plans    map[primitive.ObjectID]*domain.MonthlyPlan
	slices   map[sliceKey]*domain.DailySlice
	defs     []*domain.AchievementDefinition
	progress map[progressKey]*domain.PlayerAchievementProgress
	players  map[primitive.ObjectID]*domain.Player
	workouts []*domain.WorkoutSession
	meals    []*domain.MealEntry
	weights  []*domain.WeightEntry
}

func New() *Store {
	return &Store{
		plans:    make(map[primitive.ObjectID]*domain.MonthlyPlan),
		slices:   make(map[sliceKey]*domain.DailySlice),
		progress: make(map[progressKey]*domain.PlayerAchievementProgress),
		players:  make(map[primitive.ObjectID]*domain.Player),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Plans:        planRepo{s},
		Slices:       sliceRepo{s},
		Achievements: achievementRepo{s},
		Progress:     progressRepo{s},
		Players:      playerRepo{s},
		Activity:     activityRepo{s},
	}
}

// clone copies v through BSON, matching what a MongoDB round trip returns.
func clone[T any](v *T) *T {
	raw, err := bson.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memory store: encode %T: %v", v, err))
	}
	out := new(T)
	if err := bson.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("memory store: decode %T: %v", v, err))
	}
	return out
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type planRepo struct{ s *Store }

func sameKey(p *domain.MonthlyPlan, key domain.PlanKey) bool {
	return p.PlayerID == key.PlayerID && p.Month == key.Month && p.Year == key.Year && p.PlanType == key.Type
}

// conflict reports whether another current row already holds key.
func (r planRepo) conflict(key domain.PlanKey, except primitive.ObjectID) bool {
	for id, p := range r.s.plans {
		if id != except && !p.Superseded && sameKey(p, key) {
			return true
		}
	}
	return false
}

func (r planRepo) Create(_ context.Context, plan *domain.MonthlyPlan) (primitive.ObjectID, error) {
	if plan.PlayerID == primitive.NilObjectID || !plan.PlanType.Valid() {
		return primitive.NilObjectID, errors.New("plan requires playerId and a valid planType")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !plan.Superseded && r.conflict(plan.Key(), primitive.NilObjectID) {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	plan.ID = primitive.NewObjectID()
	plan.CreatedAt = now()
	plan.UpdatedAt = plan.CreatedAt
	r.s.plans[plan.ID] = clone(plan)
	return plan.ID, nil
}

func (r planRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.MonthlyPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(p), nil
}

func (r planRepo) FindCurrent(_ context.Context, key domain.PlanKey) (*domain.MonthlyPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.plans {
		if !p.Superseded && sameKey(p, key) {
			return clone(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r planRepo) ListByKey(_ context.Context, key domain.PlanKey) ([]domain.MonthlyPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.MonthlyPlan{}
	for _, p := range r.s.plans {
		if sameKey(p, key) {
			out = append(out, *clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	return out, nil
}

func (r planRepo) Update(_ context.Context, plan *domain.MonthlyPlan) error {
	if plan.ID == primitive.NilObjectID {
		return errors.New("plan ID is required for update")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[plan.ID]; !ok {
		return repository.ErrNotFound
	}
	if !plan.Superseded && r.conflict(plan.Key(), plan.ID) {
		return repository.ErrDuplicate
	}
	plan.UpdatedAt = now()
	r.s.plans[plan.ID] = clone(plan)
	return nil
}

func (r planRepo) Supersede(_ context.Context, key domain.PlanKey, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, p := range r.s.plans {
		if p.Superseded || !sameKey(p, key) {
			continue
		}
		ts := at.UTC().Truncate(time.Millisecond)
		p.Status = domain.StatusSuperseded
		p.Superseded = true
		p.SupersededAt = &ts
		p.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r planRepo) DeleteByKey(_ context.Context, key domain.PlanKey) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.plans {
		if sameKey(p, key) {
			delete(r.s.plans, id)
			n++
		}
	}
	return n, nil
}

func (r planRepo) SetLastPopulatedDate(_ context.Context, id primitive.ObjectID, date time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	d := date.UTC().Truncate(time.Millisecond)
	p.LastPopulatedDate = &d
	p.UpdatedAt = now()
	return nil
}

func (r planRepo) CountCurrent(_ context.Context, month, year int, t domain.PlanType) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, p := range r.s.plans {
		if !p.Superseded && p.Month == month && p.Year == year && p.PlanType == t {
			n++
		}
	}
	return n, nil
}

func (r planRepo) ListActivePlayers(_ context.Context, month, year int) ([]primitive.ObjectID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[primitive.ObjectID]bool{}
	out := []primitive.ObjectID{}
	for _, p := range r.s.plans {
		if p.Superseded || p.Status != domain.StatusActive || p.Month != month || p.Year != year || seen[p.PlayerID] {
			continue
		}
		seen[p.PlayerID] = true
		out = append(out, p.PlayerID)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}

type sliceRepo struct{ s *Store }

func (r sliceRepo) Create(_ context.Context, slice *domain.DailySlice) (primitive.ObjectID, error) {
	if slice.PlayerID == primitive.NilObjectID || !slice.SliceType.Valid() {
		return primitive.NilObjectID, errors.New("slice requires playerId and a valid sliceType")
	}
	slice.Date = domain.NormalizeDate(slice.Date)
	k := sliceKey{slice.PlayerID, slice.Date, slice.SliceType}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.slices[k]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	slice.ID = primitive.NewObjectID()
	slice.CreatedAt = now()
	r.s.slices[k] = clone(slice)
	return slice.ID, nil
}

func (r sliceRepo) Find(_ context.Context, playerID primitive.ObjectID, date time.Time, t domain.PlanType) (*domain.DailySlice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	s, ok := r.s.slices[sliceKey{playerID, domain.NormalizeDate(date), t}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s), nil
}

func inRange(d, start, end time.Time) bool {
	return !d.Before(domain.NormalizeDate(start)) && !d.After(domain.NormalizeDate(end))
}

func (r sliceRepo) ListRange(_ context.Context, playerID primitive.ObjectID, start, end time.Time) ([]domain.DailySlice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.DailySlice{}
	for k, s := range r.s.slices {
		if k.player == playerID && inRange(k.date, start, end) {
			out = append(out, *clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].SliceType < out[j].SliceType
	})
	return out, nil
}

func (r sliceRepo) DeleteRange(_ context.Context, playerID primitive.ObjectID, start, end time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k := range r.s.slices {
		if k.player == playerID && inRange(k.date, start, end) {
			delete(r.s.slices, k)
			n++
		}
	}
	return n, nil
}

type achievementRepo struct{ s *Store }

func (r achievementRepo) Create(_ context.Context, def *domain.AchievementDefinition) (primitive.ObjectID, error) {
	if def.Name == "" || def.Requirement.Type == "" {
		return primitive.NilObjectID, errors.New("achievement requires name and requirement type")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.defs {
		if d.Name == def.Name {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	def.ID = primitive.NewObjectID()
	r.s.defs = append(r.s.defs, clone(def))
	return def.ID, nil
}

func (r achievementRepo) List(_ context.Context) ([]domain.AchievementDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.AchievementDefinition, 0, len(r.s.defs))
	for _, d := range r.s.defs {
		out = append(out, *clone(d))
	}
	return out, nil
}

type progressRepo struct{ s *Store }

func (r progressRepo) ListByPlayer(_ context.Context, playerID primitive.ObjectID) ([]domain.PlayerAchievementProgress, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.PlayerAchievementProgress{}
	for k, p := range r.s.progress {
		if k.player == playerID {
			out = append(out, *clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (r progressRepo) UpsertProgress(_ context.Context, playerID, achievementID primitive.ObjectID, progress float64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := progressKey{playerID, achievementID}
	p, ok := r.s.progress[k]
	if !ok {
		p = &domain.PlayerAchievementProgress{ID: primitive.NewObjectID(), PlayerID: playerID, AchievementID: achievementID}
		r.s.progress[k] = p
	}
	p.Progress = progress
	p.UpdatedAt = at.UTC().Truncate(time.Millisecond)
	return nil
}

func (r progressRepo) MarkUnlocked(_ context.Context, playerID, achievementID primitive.ObjectID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.progress[progressKey{playerID, achievementID}]
	if !ok || p.UnlockedAt != nil {
		return false, nil
	}
	ts := at.UTC().Truncate(time.Millisecond)
	p.UnlockedAt = &ts
	p.UpdatedAt = ts
	return true, nil
}

func (r progressRepo) ReleaseUnlock(_ context.Context, playerID, achievementID primitive.ObjectID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.progress[progressKey{playerID, achievementID}]
	if !ok || p.UnlockedAt == nil || !p.UnlockedAt.Equal(at.UTC().Truncate(time.Millisecond)) {
		return nil
	}
	p.UnlockedAt = nil
	p.UpdatedAt = now()
	return nil
}

type playerRepo struct{ s *Store }

func (r playerRepo) Create(_ context.Context, player *domain.Player) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if player.ID == primitive.NilObjectID {
		player.ID = primitive.NewObjectID()
	}
	if _, exists := r.s.players[player.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	if player.Experience < 0 {
		player.Experience = 0
	}
	player.Level = domain.LevelFor(player.Experience)
	player.CreatedAt = now()
	player.UpdatedAt = player.CreatedAt
	r.s.players[player.ID] = clone(player)
	return player.ID, nil
}

func (r playerRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.players[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(p), nil
}

func (r playerRepo) IncrementExperience(_ context.Context, id primitive.ObjectID, delta int) (*domain.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.players[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Experience = max(0, p.Experience+delta)
	p.Level = domain.LevelFor(p.Experience)
	p.UpdatedAt = now()
	return clone(p), nil
}

func (r playerRepo) ListActiveSince(_ context.Context, since time.Time) ([]domain.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Player{}
	for _, p := range r.s.players {
		if !p.UpdatedAt.Before(since) {
			out = append(out, *clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (r playerRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.players)), nil
}

type activityRepo struct{ s *Store }

func (r activityRepo) AddWorkout(_ context.Context, w *domain.WorkoutSession) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w.ID = primitive.NewObjectID()
	r.s.workouts = append(r.s.workouts, clone(w))
	return w.ID, nil
}

func (r activityRepo) AddMeal(_ context.Context, m *domain.MealEntry) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = primitive.NewObjectID()
	r.s.meals = append(r.s.meals, clone(m))
	return m.ID, nil
}

func (r activityRepo) AddWeight(_ context.Context, w *domain.WeightEntry) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w.ID = primitive.NewObjectID()
	r.s.weights = append(r.s.weights, clone(w))
	return w.ID, nil
}

func (r activityRepo) History(_ context.Context, playerID primitive.ObjectID) (domain.ActivityHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	h := domain.ActivityHistory{
		Workouts: []domain.WorkoutSession{},
		Meals:    []domain.MealEntry{},
		Weights:  []domain.WeightEntry{},
	}
	for _, w := range r.s.workouts {
		if w.PlayerID == playerID {
			h.Workouts = append(h.Workouts, *clone(w))
		}
	}
	for _, m := range r.s.meals {
		if m.PlayerID == playerID {
			h.Meals = append(h.Meals, *clone(m))
		}
	}
	for _, w := range r.s.weights {
		if w.PlayerID == playerID {
			h.Weights = append(h.Weights, *clone(w))
		}
	}
	return h, nil
}
