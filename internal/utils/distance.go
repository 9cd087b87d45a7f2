package utils

import (
	"math"
)

const EarthRadiusKM = 6371.0

func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineDistance(lat1, lon1, lat2, lon2)
}

func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

func IsWithinRadius(centerLat, centerLon, pointLat, pointLon, radiusKM float64) bool {
	return CalculateDistance(centerLat, centerLon, pointLat, pointLon) <= radiusKM
}

func IsValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// EstimateETAMinutes converts a distance into whole minutes at the given speed.
func EstimateETAMinutes(distanceKM float64, averageSpeedKMH float64) int {
	if averageSpeedKMH <= 0 {
		averageSpeedKMH = AverageCitySpeedKMH
	}
	return int(distanceKM / averageSpeedKMH * 60)
}

// EstimatePickupETAMinutes is the driver-to-pickup ETA used when no routing
// provider is configured.
func EstimatePickupETAMinutes(distanceKM float64) int {
	eta := EstimateETAMinutes(distanceKM, AverageCitySpeedKMH) + PickupETABufferMinutes
	if eta < MinPickupETAMinutes {
		return MinPickupETAMinutes
	}
	return eta
}

func EstimateTripDurationMinutes(distanceKM float64) int {
	duration := EstimateETAMinutes(distanceKM, AverageCitySpeedKMH)
	if duration < MinTripDurationMinutes {
		return MinTripDurationMinutes
	}
	return duration
}
