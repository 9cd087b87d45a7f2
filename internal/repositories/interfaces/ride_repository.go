package interfaces

import (
	"context"
	"time"

	"goride/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	GetActiveByRider(ctx context.Context, riderID primitive.ObjectID) (*models.Ride, error)
	GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error)

	// ConditionalUpdate applies update only if the ride currently matches
	// cond. It returns the updated ride and true when applied, or the
	// current ride and false when the predicate did not hold.
	ConditionalUpdate(ctx context.Context, id primitive.ObjectID, cond models.RideCondition, update models.RideUpdate) (*models.Ride, bool, error)

	// FindRequestedNear returns unassigned REQUESTED rides whose pickup is
	// within radiusKm, nearest first.
	FindRequestedNear(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]*models.Ride, error)
	// FindRequestedBefore returns REQUESTED rides requested before cutoff,
	// oldest first.
	FindRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Ride, error)
	List(ctx context.Context, filter models.RideHistoryFilter) ([]*models.Ride, int64, error)
}
