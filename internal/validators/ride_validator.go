package validators

import (
	"goride/internal/models"
)

type RideRequestRequest struct {
	RiderID        string        `json:"rider_id" validate:"required,object_id"`
	Pickup         *models.Point `json:"pickup" validate:"required"`
	Destination    *models.Point `json:"destination" validate:"required"`
	RideClass      string        `json:"ride_class" validate:"required,ride_class"`
	PassengerCount int           `json:"passenger_count" validate:"omitempty,min=1"`
}

type FareEstimateRequest struct {
	Pickup         *models.Point `json:"pickup" validate:"required"`
	Destination    *models.Point `json:"destination" validate:"required"`
	RideClass      string        `json:"ride_class" validate:"required,ride_class"`
	PassengerCount int           `json:"passenger_count" validate:"omitempty,min=1"`
}

// RideDriverActionRequest carries the acting driver for accept and start.
type RideDriverActionRequest struct {
	DriverID string `json:"driver_id" validate:"required,object_id"`
}

type RideCompleteRequest struct {
	DriverID  string   `json:"driver_id" validate:"required,object_id"`
	FinalFare *float64 `json:"final_fare" validate:"omitempty,gte=0"`
}

type RideCancelRequest struct {
	ActorID string `json:"actor_id" validate:"required,object_id"`
	Reason  string `json:"reason" validate:"omitempty,max=255"`
}

type RideRatingRequest struct {
	RiderID string  `json:"rider_id" validate:"required,object_id"`
	Rating  float64 `json:"rating" validate:"required,rating_value"`
	Comment string  `json:"comment" validate:"omitempty,max=500"`
}

// NearbyDriversRequest looks up drivers around a pickup. An empty ride
// class matches every vehicle.
type NearbyDriversRequest struct {
	Lat       *float64 `json:"lat" validate:"required,latitude"`
	Lng       *float64 `json:"lng" validate:"required,longitude"`
	RideClass string   `json:"ride_class" validate:"omitempty,ride_class"`
	RadiusKm  float64  `json:"radius_km" validate:"omitempty,gt=0,lte=50"`
}

func (r *NearbyDriversRequest) Point() models.Point {
	return models.Point{Lat: *r.Lat, Lng: *r.Lng}
}

type RideHistoryQuery struct {
	RiderID  string `form:"rider_id" json:"rider_id" validate:"omitempty,object_id"`
	DriverID string `form:"driver_id" json:"driver_id" validate:"omitempty,object_id"`
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=REQUESTED ACCEPTED STARTED COMPLETED CANCELLED"`
}

func ValidateRideRequest(req *RideRequestRequest) ValidationErrors {
	errors := ValidateStruct(req)
	if req.PassengerCount == 0 {
		req.PassengerCount = 1
	}
	return errors
}

func ValidateFareEstimate(req *FareEstimateRequest) ValidationErrors {
	errors := ValidateStruct(req)
	if req.PassengerCount == 0 {
		req.PassengerCount = 1
	}
	return errors
}

func ValidateRideDriverAction(req *RideDriverActionRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateRideComplete(req *RideCompleteRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateRideCancel(req *RideCancelRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateRideRating(req *RideRatingRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateNearbyDrivers(req *NearbyDriversRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateRideHistoryQuery(req *RideHistoryQuery) ValidationErrors {
	errors := ValidateStruct(req)

	switch {
	case req.RiderID == "" && req.DriverID == "":
		errors = append(errors, ValidationError{
			Field:   "rider_id",
			Message: "rider_id or driver_id is required",
		})
	case req.RiderID != "" && req.DriverID != "":
		errors = append(errors, ValidationError{
			Field:   "driver_id",
			Message: "Provide either rider_id or driver_id, not both",
		})
	}

	return errors
}
