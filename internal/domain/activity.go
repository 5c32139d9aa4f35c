package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutSession is a recorded workout. Date carries the time of day it was done.
type WorkoutSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlayerID  primitive.ObjectID `bson:"playerId" json:"playerId"`
	Date      time.Time          `bson:"date" json:"date"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	Duration  int                `bson:"duration,omitempty" json:"duration,omitempty"`
	Completed bool               `bson:"completed" json:"completed"`
}

type MealEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlayerID  primitive.ObjectID `bson:"playerId" json:"playerId"`
	Date      time.Time          `bson:"date" json:"date"`
	MealType  string             `bson:"mealType,omitempty" json:"mealType,omitempty"`
	Completed bool               `bson:"completed" json:"completed"`
}

type WeightEntry struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlayerID primitive.ObjectID `bson:"playerId" json:"playerId"`
	Date     time.Time          `bson:"date" json:"date"`
	Weight   float64            `bson:"weight" json:"weight"`
}

// ActivityHistory is a player's full activity record, input to the achievement engine.
type ActivityHistory struct {
	Workouts []WorkoutSession
	Meals    []MealEntry
	Weights  []WeightEntry
}
