package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequirementType is the closed set of progress measures an achievement can use.
type RequirementType string

const (
	ReqWorkoutCount    RequirementType = "workout_count"
	ReqWorkoutStreak   RequirementType = "workout_streak"
	ReqMealCount       RequirementType = "meal_count"
	ReqMealStreak      RequirementType = "meal_streak"
	ReqWeightLoss      RequirementType = "weight_loss"
	ReqEarlyWorkout    RequirementType = "early_workout"
	ReqPerfectWeek     RequirementType = "perfect_week"
	ReqHydrationStreak RequirementType = "hydration_streak" // Not tracked; always 0
)

type Requirement struct {
	Type  RequirementType `bson:"type" json:"type"`
	Value float64         `bson:"value" json:"value"`
}

// AchievementDefinition is externally configured and read-only to this service.
type AchievementDefinition struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	Rarity      string             `bson:"rarity,omitempty" json:"rarity,omitempty"`
	Icon        string             `bson:"icon,omitempty" json:"icon,omitempty"`
	Requirement Requirement        `bson:"requirement" json:"requirement"`
	Points      int                `bson:"points" json:"points"`
	MaxProgress *float64           `bson:"maxProgress,omitempty" json:"maxProgress,omitempty"`
}

// Threshold is the progress needed to unlock: maxProgress when set, else requirement.value.
func (d *AchievementDefinition) Threshold() float64 {
	if d.MaxProgress != nil {
		return *d.MaxProgress
	}
	return d.Requirement.Value
}

// PlayerAchievementProgress is unique per (player, achievement). UnlockedAt is
// set at most once and never cleared.
type PlayerAchievementProgress struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlayerID      primitive.ObjectID `bson:"playerId" json:"playerId"`
	AchievementID primitive.ObjectID `bson:"achievementId" json:"achievementId"`
	Progress      float64            `bson:"progress" json:"progress"`
	UnlockedAt    *time.Time         `bson:"unlockedAt,omitempty" json:"unlockedAt,omitempty"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (p *PlayerAchievementProgress) Unlocked() bool {
	return p != nil && p.UnlockedAt != nil
}

// UnlockEvent is emitted once, on the check that first unlocks an achievement.
type UnlockEvent struct {
	PlayerID    primitive.ObjectID    `json:"playerId"`
	Achievement AchievementDefinition `json:"achievement"`
	Points      int                   `json:"points"`
	UnlockedAt  time.Time             `json:"unlockedAt"`
}
