package interfaces

import (
	"context"

	"goride/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverRepository interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.Driver, error)

	// Reserve binds the driver to rideID only if it is AVAILABLE with no
	// current ride. Returns false when the predicate did not hold.
	Reserve(ctx context.Context, driverID, rideID primitive.ObjectID) (bool, error)
	// Release frees the driver only if it is still bound to rideID. When
	// completed is true the ride counts toward totalRides and earnings.
	Release(ctx context.Context, driverID, rideID primitive.ObjectID, completed bool, earnings float64) (bool, error)
	// SetAvailability moves a driver with no current ride between OFFLINE
	// and AVAILABLE.
	SetAvailability(ctx context.Context, driverID primitive.ObjectID, availability models.DriverAvailability) (*models.Driver, bool, error)

	// ApplyRating stores a new average rating only if rating_count still
	// equals observedCount, and increments the count.
	ApplyRating(ctx context.Context, driverID primitive.ObjectID, observedCount int64, rating float64) (bool, error)

	UpdateLocation(ctx context.Context, driverID primitive.ObjectID, location *models.Location) (*models.Driver, error)
	// FindNearbyAvailable uses the store's spatial index on current_location.
	// A non-empty vehicles list restricts the result before the limit is
	// applied.
	FindNearbyAvailable(ctx context.Context, lat, lng, radiusKm float64, vehicles []models.VehicleClass, limit int) ([]*models.DriverDistance, error)
}
