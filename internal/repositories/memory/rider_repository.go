package memory

import (
	"context"
	"sync"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RiderRepository struct {
	mu     sync.Mutex
	riders map[primitive.ObjectID]*models.Rider
}

func NewRiderRepository() *RiderRepository {
	return &RiderRepository{
		riders: make(map[primitive.ObjectID]*models.Rider),
	}
}

var _ interfaces.RiderRepository = (*RiderRepository)(nil)

func (r *RiderRepository) Create(ctx context.Context, rider *models.Rider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rider.ID.IsZero() {
		rider.ID = primitive.NewObjectID()
	}
	for _, existing := range r.riders {
		if existing.ID == rider.ID || (!rider.UserID.IsZero() && existing.UserID == rider.UserID) {
			return interfaces.ErrDuplicate
		}
	}
	rider.CreatedAt = time.Now()
	rider.UpdatedAt = time.Now()
	r.riders[rider.ID] = cloneRider(rider)
	return nil
}

func (r *RiderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Rider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rider, ok := r.riders[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneRider(rider), nil
}

func (r *RiderRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Rider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rider := range r.riders {
		if rider.UserID == userID {
			return cloneRider(rider), nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *RiderRepository) ClaimActiveRide(ctx context.Context, riderID, rideID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rider, ok := r.riders[riderID]
	if !ok || rider.ActiveRideID != nil {
		return false, nil
	}
	rider.ActiveRideID = cloneID(&rideID)
	rider.UpdatedAt = time.Now()
	return true, nil
}

func (r *RiderRepository) ReleaseActiveRide(ctx context.Context, riderID, rideID primitive.ObjectID, completed bool, spent float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rider, ok := r.riders[riderID]
	if !ok || rider.ActiveRideID == nil || *rider.ActiveRideID != rideID {
		return false, nil
	}
	rider.ActiveRideID = nil
	if completed {
		rider.TotalRides++
		rider.TotalSpent += spent
	}
	rider.UpdatedAt = time.Now()
	return true, nil
}

func (r *RiderRepository) UpdateLocation(ctx context.Context, riderID primitive.ObjectID, location *models.Location) (*models.Rider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rider, ok := r.riders[riderID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	now := time.Now()
	location.UpdatedAt = &now
	rider.CurrentLocation = cloneLocation(location)
	rider.UpdatedAt = now
	return cloneRider(rider), nil
}
