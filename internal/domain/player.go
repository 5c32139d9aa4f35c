package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExperiencePerLevel is the XP width of one level.
const ExperiencePerLevel = 100

// Player is the gamification aggregate. Level is always LevelFor(Experience).
type Player struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name,omitempty" json:"name,omitempty"`
	Experience int                `bson:"experience" json:"experience"`
	Level      int                `bson:"level" json:"level"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LevelFor derives the level from total experience: floor(exp/100) + 1.
func LevelFor(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/ExperiencePerLevel + 1
}

// Role is carried in the access token issued by the app's auth service.
type Role string

const (
	RolePlayer   Role = "player"
	RoleOperator Role = "operator"
)
