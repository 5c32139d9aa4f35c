package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fithero/planner/internal/achievement"
	"fithero/planner/internal/domain"
	"fithero/planner/internal/logger"
	"fithero/planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AchievementService persists what the achievement engine computes.
type AchievementService interface {
	// CheckAndUpdate recomputes every achievement for the player and returns
	// the ones unlocked by this call. It never fails: errors are logged and
	// yield an empty list.
	CheckAndUpdate(ctx context.Context, playerID primitive.ObjectID) []domain.UnlockEvent
	Summary(ctx context.Context, playerID primitive.ObjectID) (*AchievementSummary, error)
}

// AchievementStatus joins a definition with the player's progress on it.
type AchievementStatus struct {
	Achievement domain.AchievementDefinition `json:"achievement"`
	Progress    float64                      `json:"progress"`
	Threshold   float64                      `json:"threshold"`
	UnlockedAt  *time.Time                   `json:"unlockedAt,omitempty"`
}

type AchievementSummary struct {
	PlayerID     primitive.ObjectID  `json:"playerId"`
	Experience   int                 `json:"experience"`
	Level        int                 `json:"level"`
	Unlocked     int                 `json:"unlocked"`
	Total        int                 `json:"total"`
	PointsEarned int                 `json:"pointsEarned"`
	Achievements []AchievementStatus `json:"achievements"`
}

type achievementService struct {
	store  repository.Store
	engine achievement.Engine
	log    *logger.Logger
}

// NewAchievementService creates a new instance of achievementService.
func NewAchievementService(store repository.Store, engine achievement.Engine, log *logger.Logger) AchievementService {
	return &achievementService{
		store:  store,
		engine: engine,
		log:    logger.OrNop(log).With("component", "AchievementService"),
	}
}

func (s *achievementService) now() time.Time {
	if s.engine.Now != nil {
		return s.engine.Now()
	}
	return time.Now()
}

func (s *achievementService) CheckAndUpdate(ctx context.Context, playerID primitive.ObjectID) []domain.UnlockEvent {
	events, err := s.check(ctx, playerID)
	if err != nil {
		s.log.Error("achievement check failed", "playerId", playerID.Hex(), "error", err)
		return []domain.UnlockEvent{}
	}
	return events
}

func (s *achievementService) check(ctx context.Context, playerID primitive.ObjectID) ([]domain.UnlockEvent, error) {
	if playerID == primitive.NilObjectID {
		return nil, domain.ErrInvalidPlayer
	}
	// Unlocks grant experience, so there must be a player row to receive it.
	if _, err := s.store.Players.GetByID(ctx, playerID); err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}

	history, err := s.store.Activity.History(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load activity history: %w", err)
	}
	defs, err := s.store.Achievements.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	rows, err := s.store.Progress.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load achievement progress: %w", err)
	}
	current := make(map[primitive.ObjectID]*domain.PlayerAchievementProgress, len(rows))
	for i := range rows {
		current[rows[i].AchievementID] = &rows[i]
	}

	events := []domain.UnlockEvent{}
	for i := range defs {
		def := &defs[i]
		now := s.now()
		decision := s.engine.Evaluate(def, current[def.ID], s.engine.Progress(history, def.Requirement))

		if err := s.store.Progress.UpsertProgress(ctx, playerID, def.ID, decision.Progress, now); err != nil {
			s.log.Warn("failed to store achievement progress", "playerId", playerID.Hex(), "achievement", def.Name, "error", err)
			continue
		}
		if !decision.Unlock {
			continue
		}

		// Only the call that flips unlockedAt from null grants the points.
		won, err := s.store.Progress.MarkUnlocked(ctx, playerID, def.ID, now)
		if err != nil {
			s.log.Warn("failed to mark achievement unlocked", "playerId", playerID.Hex(), "achievement", def.Name, "error", err)
			continue
		}
		if !won {
			continue
		}
		if def.Points > 0 {
			if _, err := s.store.Players.IncrementExperience(ctx, playerID, def.Points); err != nil {
				s.log.Error("failed to grant achievement points", "playerId", playerID.Hex(), "achievement", def.Name, "points", def.Points, "error", err)
				// Re-open the unlock so the next check can grant the points.
				if rerr := s.store.Progress.ReleaseUnlock(ctx, playerID, def.ID, now); rerr != nil {
					s.log.Error("failed to release achievement unlock", "playerId", playerID.Hex(), "achievement", def.Name, "error", rerr)
				}
				continue
			}
		}
		s.log.Info("achievement unlocked", "playerId", playerID.Hex(), "achievement", def.Name, "points", def.Points, "progress", decision.Progress)
		events = append(events, domain.UnlockEvent{
			PlayerID:    playerID,
			Achievement: *def,
			Points:      def.Points,
			UnlockedAt:  now,
		})
	}
	return events, nil
}

func (s *achievementService) Summary(ctx context.Context, playerID primitive.ObjectID) (*AchievementSummary, error) {
	if playerID == primitive.NilObjectID {
		return nil, domain.ErrInvalidPlayer
	}
	defs, err := s.store.Achievements.List(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Progress.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]domain.PlayerAchievementProgress, len(rows))
	for _, r := range rows {
		byID[r.AchievementID] = r
	}

	sum := &AchievementSummary{
		PlayerID:     playerID,
		Level:        domain.LevelFor(0),
		Total:        len(defs),
		Achievements: make([]AchievementStatus, 0, len(defs)),
	}
	player, err := s.store.Players.GetByID(ctx, playerID)
	switch {
	case err == nil:
		sum.Experience, sum.Level = player.Experience, player.Level
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}

	for _, def := range defs {
		st := AchievementStatus{Achievement: def, Threshold: def.Threshold()}
		if p, ok := byID[def.ID]; ok {
			st.Progress = p.Progress
			st.UnlockedAt = p.UnlockedAt
			if p.Unlocked() {
				sum.Unlocked++
				sum.PointsEarned += def.Points
			}
		}
		sum.Achievements = append(sum.Achievements, st)
	}
	return sum, nil
}
