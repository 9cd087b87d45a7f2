package models

import (
	"time"
)

const GeoJSONPoint = "Point"

// Location is stored as a GeoJSON point so it can back a 2dsphere index.
// Coordinates are [lng, lat].
type Location struct {
	Type        string     `json:"type" bson:"type"`
	Coordinates []float64  `json:"coordinates" bson:"coordinates" validate:"required,len=2"`
	Address     string     `json:"address,omitempty" bson:"address,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

func NewLocation(lat, lng float64, address string) *Location {
	return &Location{
		Type:        GeoJSONPoint,
		Coordinates: []float64{lng, lat},
		Address:     address,
	}
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) >= 2 {
		return l.Coordinates[1]
	}
	return 0
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) >= 1 {
		return l.Coordinates[0]
	}
	return 0
}

// Point is the wire shape of a coordinate pair.
type Point struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Address string  `json:"address,omitempty" validate:"omitempty,max=256"`
}

func (p Point) ToLocation() *Location {
	return NewLocation(p.Lat, p.Lng, p.Address)
}
