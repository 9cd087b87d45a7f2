package interfaces

import (
	"context"

	"goride/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RiderRepository interface {
	Create(ctx context.Context, rider *models.Rider) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Rider, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Rider, error)

	// ClaimActiveRide sets activeRideId only if the rider has none.
	ClaimActiveRide(ctx context.Context, riderID, rideID primitive.ObjectID) (bool, error)
	// ReleaseActiveRide clears activeRideId only if it still equals rideID.
	ReleaseActiveRide(ctx context.Context, riderID, rideID primitive.ObjectID, completed bool, spent float64) (bool, error)

	UpdateLocation(ctx context.Context, riderID primitive.ObjectID, location *models.Location) (*models.Rider, error)
}
