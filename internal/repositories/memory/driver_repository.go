package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverRepository struct {
	mu      sync.Mutex
	drivers map[primitive.ObjectID]*models.Driver
}

func NewDriverRepository() *DriverRepository {
	return &DriverRepository{
		drivers: make(map[primitive.ObjectID]*models.Driver),
	}
}

var _ interfaces.DriverRepository = (*DriverRepository)(nil)

func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if driver.ID.IsZero() {
		driver.ID = primitive.NewObjectID()
	}
	for _, existing := range r.drivers {
		if existing.ID == driver.ID || (!driver.UserID.IsZero() && existing.UserID == driver.UserID) {
			return interfaces.ErrDuplicate
		}
	}
	driver.CreatedAt = time.Now()
	driver.UpdatedAt = time.Now()
	if driver.Availability == "" {
		driver.Availability = models.DriverOffline
	}
	r.drivers[driver.ID] = cloneDriver(driver)
	return nil
}

func (r *DriverRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, ok := r.drivers[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneDriver(driver), nil
}

func (r *DriverRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, driver := range r.drivers {
		if driver.UserID == userID {
			return cloneDriver(driver), nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *DriverRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drivers := make([]*models.Driver, 0, len(ids))
	for _, id := range ids {
		if driver, ok := r.drivers[id]; ok {
			drivers = append(drivers, cloneDriver(driver))
		}
	}
	return drivers, nil
}

func (r *DriverRepository) Reserve(ctx context.Context, driverID, rideID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, ok := r.drivers[driverID]
	if !ok || driver.Availability != models.DriverAvailable || driver.CurrentRideID != nil {
		return false, nil
	}
	driver.Availability = models.DriverBusy
	driver.CurrentRideID = cloneID(&rideID)
	driver.UpdatedAt = time.Now()
	return true, nil
}

func (r *DriverRepository) Release(ctx context.Context, driverID, rideID primitive.ObjectID, completed bool, earnings float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, ok := r.drivers[driverID]
	if !ok || driver.CurrentRideID == nil || *driver.CurrentRideID != rideID {
		return false, nil
	}
	driver.Availability = models.DriverAvailable
	driver.CurrentRideID = nil
	if completed {
		driver.TotalRides++
		driver.Earnings += earnings
	}
	driver.UpdatedAt = time.Now()
	return true, nil
}

func (r *DriverRepository) ApplyRating(ctx context.Context, driverID primitive.ObjectID, observedCount int64, rating float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, ok := r.drivers[driverID]
	if !ok || driver.RatingCount != observedCount {
		return false, nil
	}
	driver.Rating = rating
	driver.RatingCount++
	driver.UpdatedAt = time.Now()
	return true, nil
}

func (r *DriverRepository) SetAvailability(ctx context.Context, driverID primitive.ObjectID, availability models.DriverAvailability) (*models.Driver, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, ok := r.drivers[driverID]
	if !ok {
		return nil, false, interfaces.ErrNotFound
	}
	if driver.CurrentRideID != nil || driver.Availability == models.DriverBusy {
		return cloneDriver(driver), false, nil
	}
	driver.Availability = availability
	driver.UpdatedAt = time.Now()
	return cloneDriver(driver), true, nil
}

func (r *DriverRepository) UpdateLocation(ctx context.Context, driverID primitive.ObjectID, location *models.Location) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, ok := r.drivers[driverID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	now := time.Now()
	location.UpdatedAt = &now
	driver.CurrentLocation = cloneLocation(location)
	driver.UpdatedAt = now
	return cloneDriver(driver), nil
}

func (r *DriverRepository) FindNearbyAvailable(ctx context.Context, lat, lng, radiusKm float64, vehicles []models.VehicleClass, limit int) ([]*models.DriverDistance, error) {
	r.mu.Lock()
	var results []*models.DriverDistance
	for _, driver := range r.drivers {
		if driver.Availability != models.DriverAvailable || driver.CurrentRideID != nil || driver.CurrentLocation == nil {
			continue
		}
		if len(vehicles) > 0 && !slices.Contains(vehicles, driver.VehicleClass) {
			continue
		}
		d := utils.CalculateDistance(lat, lng, driver.CurrentLocation.Latitude(), driver.CurrentLocation.Longitude())
		if d <= radiusKm {
			results = append(results, &models.DriverDistance{Driver: cloneDriver(driver), DistanceKm: d})
		}
	}
	r.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		return results[i].Driver.ID.Hex() < results[j].Driver.ID.Hex()
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
