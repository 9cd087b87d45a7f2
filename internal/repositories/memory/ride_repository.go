package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideRepository keeps rides in a map guarded by a single mutex so every
// conditional update is atomic.
type RideRepository struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
	now   func() time.Time
}

func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides: make(map[primitive.ObjectID]*models.Ride),
		now:   time.Now,
	}
}

var _ interfaces.RideRepository = (*RideRepository)(nil)

func (r *RideRepository) Create(ctx context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	if _, exists := r.rides[ride.ID]; exists {
		return interfaces.ErrDuplicate
	}
	now := r.now()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.RequestedAt.IsZero() {
		ride.RequestedAt = now
	}
	r.rides[ride.ID] = cloneRide(ride)
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneRide(ride), nil
}

func (r *RideRepository) GetActiveByRider(ctx context.Context, riderID primitive.ObjectID) (*models.Ride, error) {
	return r.findFirst(func(ride *models.Ride) bool {
		return ride.RiderID == riderID && !ride.Status.IsTerminal()
	})
}

func (r *RideRepository) GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error) {
	return r.findFirst(func(ride *models.Ride) bool {
		return ride.DriverID != nil && *ride.DriverID == driverID &&
			(ride.Status == models.RideStatusAccepted || ride.Status == models.RideStatusStarted)
	})
}

func (r *RideRepository) ConditionalUpdate(ctx context.Context, id primitive.ObjectID, cond models.RideCondition, update models.RideUpdate) (*models.Ride, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, false, interfaces.ErrNotFound
	}
	if !cond.Matches(ride) {
		return cloneRide(ride), false, nil
	}
	update.Apply(ride, r.now())
	return cloneRide(ride), true, nil
}

func (r *RideRepository) FindRequestedNear(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]*models.Ride, error) {
	type scored struct {
		ride *models.Ride
		dist float64
	}

	r.mu.Lock()
	var matches []scored
	for _, ride := range r.rides {
		if ride.Status != models.RideStatusRequested || ride.DriverID != nil {
			continue
		}
		d := utils.CalculateDistance(lat, lng, ride.PickupLocation.Latitude(), ride.PickupLocation.Longitude())
		if d <= radiusKm {
			matches = append(matches, scored{ride: cloneRide(ride), dist: d})
		}
	}
	r.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].ride.ID.Hex() < matches[j].ride.ID.Hex()
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	rides := make([]*models.Ride, len(matches))
	for i, m := range matches {
		rides[i] = m.ride
	}
	return rides, nil
}

func (r *RideRepository) FindRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Ride, error) {
	r.mu.Lock()
	var rides []*models.Ride
	for _, ride := range r.rides {
		if ride.Status == models.RideStatusRequested && ride.RequestedAt.Before(cutoff) {
			rides = append(rides, cloneRide(ride))
		}
	}
	r.mu.Unlock()

	sort.Slice(rides, func(i, j int) bool {
		return rides[i].RequestedAt.Before(rides[j].RequestedAt)
	})
	if limit > 0 && len(rides) > limit {
		rides = rides[:limit]
	}
	return rides, nil
}

func (r *RideRepository) List(ctx context.Context, filter models.RideHistoryFilter) ([]*models.Ride, int64, error) {
	r.mu.Lock()
	var rides []*models.Ride
	for _, ride := range r.rides {
		if filter.RiderID != nil && ride.RiderID != *filter.RiderID {
			continue
		}
		if filter.DriverID != nil && (ride.DriverID == nil || *ride.DriverID != *filter.DriverID) {
			continue
		}
		if filter.Status != "" && ride.Status != filter.Status {
			continue
		}
		rides = append(rides, cloneRide(ride))
	}
	r.mu.Unlock()

	sort.Slice(rides, func(i, j int) bool {
		return rides[i].CreatedAt.After(rides[j].CreatedAt)
	})

	total := int64(len(rides))
	if filter.Offset >= len(rides) {
		return []*models.Ride{}, total, nil
	}
	rides = rides[filter.Offset:]
	if filter.Limit > 0 && len(rides) > filter.Limit {
		rides = rides[:filter.Limit]
	}
	return rides, total, nil
}

func (r *RideRepository) findFirst(match func(*models.Ride) bool) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ride := range r.rides {
		if match(ride) {
			return cloneRide(ride), nil
		}
	}
	return nil, interfaces.ErrNotFound
}
