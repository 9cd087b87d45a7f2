package models

// FareBreakdown is the itemised result of a fare computation. It is stored
// inside the ride it priced and never on its own.
type FareBreakdown struct {
	BaseFare        float64 `json:"base_fare" bson:"base_fare"`
	DistanceFare    float64 `json:"distance_fare" bson:"distance_fare"`
	TimeFare        float64 `json:"time_fare" bson:"time_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier" bson:"surge_multiplier"`
	Discount        float64 `json:"discount" bson:"discount"`
	MinimumFare     float64 `json:"minimum_fare" bson:"minimum_fare"`
	Total           float64 `json:"total" bson:"total"`
}

type FareRate struct {
	BaseFare    float64 `json:"base_fare" yaml:"base_fare"`
	PerKm       float64 `json:"per_km" yaml:"per_km"`
	PerMinute   float64 `json:"per_minute" yaml:"per_minute"`
	MinimumFare float64 `json:"minimum_fare" yaml:"minimum_fare"`
}

// FareEstimate is returned by the estimate endpoint.
type FareEstimate struct {
	RideClass         RideClass `json:"ride_class"`
	DistanceKm        float64   `json:"distance_km"`
	EstimatedFare     float64   `json:"estimated_fare"`
	EstimatedDuration int       `json:"estimated_duration"`
	SurgeMultiplier   float64   `json:"surge_multiplier"`
	Currency          string    `json:"currency"`
}
