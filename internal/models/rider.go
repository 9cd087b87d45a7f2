package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Rider struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID          primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Name            string              `json:"name" bson:"name"`
	ActiveRideID    *primitive.ObjectID `json:"active_ride_id,omitempty" bson:"active_ride_id"`
	CurrentLocation *Location           `json:"current_location,omitempty" bson:"current_location,omitempty"`
	Rating          float64             `json:"rating" bson:"rating"`
	TotalRides      int64               `json:"total_rides" bson:"total_rides"`
	TotalSpent      float64             `json:"total_spent" bson:"total_spent"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" bson:"updated_at"`
}
