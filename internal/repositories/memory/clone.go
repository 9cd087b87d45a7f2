package memory

import (
	"goride/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func cloneID(id *primitive.ObjectID) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneLocation(l *models.Location) *models.Location {
	if l == nil {
		return nil
	}
	c := *l
	c.Coordinates = append([]float64(nil), l.Coordinates...)
	return &c
}

func cloneRide(r *models.Ride) *models.Ride {
	c := *r
	c.DriverID = cloneID(r.DriverID)
	c.CancelledByID = cloneID(r.CancelledByID)
	c.PickupLocation = *cloneLocation(&r.PickupLocation)
	c.DestinationLocation = *cloneLocation(&r.DestinationLocation)
	if r.FinalFare != nil {
		v := *r.FinalFare
		c.FinalFare = &v
	}
	if r.DriverRating != nil {
		v := *r.DriverRating
		c.DriverRating = &v
	}
	if r.FareBreakdown != nil {
		v := *r.FareBreakdown
		c.FareBreakdown = &v
	}
	return &c
}

func cloneDriver(d *models.Driver) *models.Driver {
	c := *d
	c.CurrentRideID = cloneID(d.CurrentRideID)
	c.CurrentLocation = cloneLocation(d.CurrentLocation)
	return &c
}

func cloneRider(r *models.Rider) *models.Rider {
	c := *r
	c.ActiveRideID = cloneID(r.ActiveRideID)
	c.CurrentLocation = cloneLocation(r.CurrentLocation)
	return &c
}
