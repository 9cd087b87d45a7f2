package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverAvailability string
type VehicleClass string

const (
	DriverOffline   DriverAvailability = "OFFLINE"
	DriverAvailable DriverAvailability = "AVAILABLE"
	DriverBusy      DriverAvailability = "BUSY"

	VehicleSedan     VehicleClass = "sedan"
	VehicleHatchback VehicleClass = "hatchback"
	VehicleCompact   VehicleClass = "compact"
	VehicleSUV       VehicleClass = "suv"
	VehicleLuxury    VehicleClass = "luxury"
	VehicleXL        VehicleClass = "xl"
	VehicleVan       VehicleClass = "van"
)

func (v VehicleClass) IsValid() bool {
	switch v {
	case VehicleSedan, VehicleHatchback, VehicleCompact, VehicleSUV, VehicleLuxury, VehicleXL, VehicleVan:
		return true
	}
	return false
}

type Driver struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID          primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Name            string              `json:"name" bson:"name"`
	Availability    DriverAvailability  `json:"availability" bson:"availability"`
	CurrentRideID   *primitive.ObjectID `json:"current_ride_id,omitempty" bson:"current_ride_id"`
	CurrentLocation *Location           `json:"current_location,omitempty" bson:"current_location,omitempty"`
	VehicleClass    VehicleClass        `json:"vehicle_class" bson:"vehicle_class"`
	Rating          float64             `json:"rating" bson:"rating"`
	RatingCount     int64               `json:"rating_count" bson:"rating_count"`
	TotalRides      int64               `json:"total_rides" bson:"total_rides"`
	Earnings        float64             `json:"earnings" bson:"earnings"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" bson:"updated_at"`
}

// DriverDistance pairs a driver with its distance from a query point.
type DriverDistance struct {
	Driver     *Driver `json:"driver"`
	DistanceKm float64 `json:"distance_km"`
}
