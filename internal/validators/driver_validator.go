package validators

import (
	"goride/internal/models"
)

type DriverRegistrationRequest struct {
	UserID       string  `json:"user_id" validate:"required,object_id"`
	Name         string  `json:"name" validate:"required,min=1,max=100"`
	VehicleClass string  `json:"vehicle_class" validate:"required,vehicle_class"`
	Rating       float64 `json:"rating" validate:"omitempty,rating_value"`
}

type DriverOnlineRequest struct {
	Location *models.Point `json:"location" validate:"omitempty"`
}

// LocationUpdateRequest is shared by driver and rider location pings.
type LocationUpdateRequest struct {
	Lat     *float64 `json:"lat" validate:"required,latitude"`
	Lng     *float64 `json:"lng" validate:"required,longitude"`
	Address string   `json:"address" validate:"omitempty,max=256"`
}

func (r *LocationUpdateRequest) Point() models.Point {
	return models.Point{Lat: *r.Lat, Lng: *r.Lng, Address: r.Address}
}

func ValidateDriverRegistration(req *DriverRegistrationRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateDriverOnline(req *DriverOnlineRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateLocationUpdate(req *LocationUpdateRequest) ValidationErrors {
	return ValidateStruct(req)
}
