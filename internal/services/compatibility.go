package services

import "goride/internal/models"

// VehicleCompatibility maps a requested ride class to the vehicle classes
// allowed to serve it.
var VehicleCompatibility = map[models.RideClass][]models.VehicleClass{
	models.RideClassEconomy: {models.VehicleSedan, models.VehicleHatchback, models.VehicleCompact},
	models.RideClassComfort: {models.VehicleSedan, models.VehicleSUV, models.VehicleLuxury},
	models.RideClassPremium: {models.VehicleLuxury, models.VehicleSUV},
	models.RideClassXL:      {models.VehicleXL, models.VehicleSUV, models.VehicleVan},
}

func IsCompatible(class models.RideClass, vehicle models.VehicleClass) bool {
	for _, v := range VehicleCompatibility[class] {
		if v == vehicle {
			return true
		}
	}
	return false
}

// dispatchable reports whether a driver can be offered a ride of the given
// class right now.
func dispatchable(class models.RideClass, d *models.Driver) bool {
	return d.Availability == models.DriverAvailable &&
		d.CurrentRideID == nil &&
		IsCompatible(class, d.VehicleClass)
}
