package services

import (
	"context"
	"fmt"
	"testing"

	"goride/internal/models"
	"goride/internal/utils"
	"goride/pkg/geo"
	"goride/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// staleGeoIndex returns a fixed candidate snapshot regardless of the store.
type staleGeoIndex struct {
	candidates []*models.DriverDistance
}

func (s *staleGeoIndex) UpdateDriverLocation(context.Context, primitive.ObjectID, float64, float64) error {
	return nil
}

func (s *staleGeoIndex) RemoveDriver(context.Context, primitive.ObjectID) error { return nil }

func (s *staleGeoIndex) NearbyDrivers(context.Context, float64, float64, float64, int, []models.VehicleClass, func(*models.Driver) bool) ([]*models.DriverDistance, error) {
	return s.candidates, nil
}

func economyRequest(riderID primitive.ObjectID) *CreateRideRequest {
	return &CreateRideRequest{
		RiderID:        riderID,
		Pickup:         models.Point{Lat: 0, Lng: 0, Address: "pickup"},
		Destination:    models.Point{Lat: 0, Lng: 0.09, Address: "dropoff"},
		RideClass:      models.RideClassEconomy,
		PassengerCount: 1,
	}
}

func TestDispatchEngine_PushAssignsNearbySedan(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()
	rider := h.addRider(t)
	driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)

	ride, err := h.dispatch.RequestRide(ctx, economyRequest(rider.ID))
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAccepted, ride.Status)
	require.NotNil(t, ride.DriverID)
	assert.Equal(t, driver.ID, *ride.DriverID)

	storedDriver, err := h.drivers.GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DriverBusy, storedDriver.Availability)
	assert.Equal(t, ride.ID, *storedDriver.CurrentRideID)
}

func TestDispatchEngine_PushWithPointIndex(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()
	index := NewPointGeoIndex(geo.NewMemoryIndex(), h.drivers)
	h.driverSv = NewDriverService(h.drivers, h.rides, h.riders, index, h.events, logger.Nop())
	h.dispatch = NewDispatchEngine(h.config, h.machine, index, h.rides, h.drivers, h.events, Nearest{}, logger.Nop())

	far := h.addDriver(t, models.VehicleCompact, 0, 0.05)
	near := h.addDriver(t, models.VehicleHatchback, 0, 0.002)

	ride, err := h.dispatch.RequestRide(ctx, economyRequest(h.addRider(t).ID))
	require.NoError(t, err)
	require.NotNil(t, ride.DriverID)
	assert.Equal(t, near.ID, *ride.DriverID)

	storedFar, err := h.drivers.GetByID(ctx, far.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DriverAvailable, storedFar.Availability)
}

func TestDispatchEngine_PushSkipsIncompatibleVehicles(t *testing.T) {
	h := newHarness(t, "push")
	h.addDriver(t, models.VehicleVan, 0, 0.001)
	h.addDriver(t, models.VehicleLuxury, 0, 0.002)

	ride, err := h.dispatch.RequestRide(context.Background(), economyRequest(h.addRider(t).ID))
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusRequested, ride.Status)
	assert.Nil(t, ride.DriverID)
}

func TestDispatchEngine_PushSkipsDriversOutsideRadius(t *testing.T) {
	h := newHarness(t, "push")
	h.addDriver(t, models.VehicleSedan, 0, 0.5)

	ride, err := h.dispatch.RequestRide(context.Background(), economyRequest(h.addRider(t).ID))
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusRequested, ride.Status)
}

func TestDispatchEngine_RetriesNextCandidateAfterConflict(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()

	taken := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	free := h.addDriver(t, models.VehicleSedan, 0, 0.003)
	staleSnapshot := *taken

	// the nearest driver gets booked after the index snapshot was taken
	other := h.createRide(t, h.addRider(t).ID, models.RideClassEconomy)
	_, err := h.machine.Assign(ctx, other.ID, taken.ID)
	require.NoError(t, err)

	index := &staleGeoIndex{candidates: []*models.DriverDistance{
		{Driver: &staleSnapshot, DistanceKm: 0.11},
		{Driver: free, DistanceKm: 0.33},
	}}
	engine := NewDispatchEngine(h.config, h.machine, index, h.rides, h.drivers, h.events, Nearest{}, logger.Nop())

	ride, err := engine.RequestRide(ctx, economyRequest(h.addRider(t).ID))
	require.NoError(t, err)
	require.Equal(t, models.RideStatusAccepted, ride.Status)
	assert.Equal(t, free.ID, *ride.DriverID)
}

func TestDispatchEngine_GivesUpAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()
	h.config.MaxAttempts = 1

	taken := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	free := h.addDriver(t, models.VehicleSedan, 0, 0.003)
	staleSnapshot := *taken
	other := h.createRide(t, h.addRider(t).ID, models.RideClassEconomy)
	_, err := h.machine.Assign(ctx, other.ID, taken.ID)
	require.NoError(t, err)

	index := &staleGeoIndex{candidates: []*models.DriverDistance{
		{Driver: &staleSnapshot, DistanceKm: 0.11},
		{Driver: free, DistanceKm: 0.33},
	}}
	engine := NewDispatchEngine(h.config, h.machine, index, h.rides, h.drivers, h.events, Nearest{}, logger.Nop())

	ride, err := engine.RequestRide(ctx, economyRequest(h.addRider(t).ID))
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusRequested, ride.Status)
	assert.Nil(t, ride.DriverID)
}

func TestDispatchEngine_StopsWhenRideNoLongerOpen(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()
	rider := h.addRider(t)
	h.addDriver(t, models.VehicleSedan, 0, 0.001)

	ride := h.createRide(t, rider.ID, models.RideClassEconomy)
	_, err := h.machine.Cancel(ctx, ride.ID, rider.ID, "")
	require.NoError(t, err)

	result, err := h.dispatch.Dispatch(ctx, ride)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, result.Status)
}

func TestDispatchEngine_PullBroadcastsToCompatibleDrivers(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	sedan := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	compact := h.addDriver(t, models.VehicleCompact, 0, 0.004)
	van := h.addDriver(t, models.VehicleVan, 0, 0.002)

	ride, err := h.dispatch.RequestRide(ctx, economyRequest(h.addRider(t).ID))
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusRequested, ride.Status)

	offers := h.events.ofType(models.EventNewRideRequest)
	require.Len(t, offers, 2)
	var notified []string
	for _, offer := range offers {
		notified = append(notified, offer.channels...)
		assert.Equal(t, ride.ID.Hex(), offer.event.Data["ride_id"])
	}
	assert.ElementsMatch(t, []string{
		models.UserChannel(sedan.UserID.Hex()),
		models.UserChannel(compact.UserID.Hex()),
	}, notified)
	assert.NotContains(t, notified, models.UserChannel(van.UserID.Hex()))

	accepted, err := h.dispatch.AcceptRide(ctx, ride.ID, compact.ID)
	require.NoError(t, err)
	assert.Equal(t, compact.ID, *accepted.DriverID)

	_, err = h.dispatch.AcceptRide(ctx, ride.ID, sedan.ID)
	assert.ErrorIs(t, err, utils.ErrConflict)
}

func TestDispatchEngine_ListAvailableRides(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	h.config.AvailableRideCap = 5

	driver := h.addDriver(t, models.VehicleSedan, 0, 0)
	for i := 0; i < 7; i++ {
		_, err := h.machine.Create(ctx, &CreateRideRequest{
			RiderID:        h.addRider(t).ID,
			Pickup:         models.Point{Lat: 0, Lng: 0.01 * float64(7-i)},
			Destination:    models.Point{Lat: 0.05, Lng: 0.05},
			RideClass:      models.RideClassEconomy,
			PassengerCount: 1,
		})
		require.NoError(t, err)
	}
	// incompatible and far away requests are never listed
	_, err := h.machine.Create(ctx, &CreateRideRequest{
		RiderID: h.addRider(t).ID, Pickup: models.Point{Lat: 0, Lng: 0.001}, Destination: models.Point{Lat: 0.05, Lng: 0.05},
		RideClass: models.RideClassXL, PassengerCount: 4,
	})
	require.NoError(t, err)
	_, err = h.machine.Create(ctx, &CreateRideRequest{
		RiderID: h.addRider(t).ID, Pickup: models.Point{Lat: 1, Lng: 1}, Destination: models.Point{Lat: 1.05, Lng: 1.05},
		RideClass: models.RideClassEconomy, PassengerCount: 1,
	})
	require.NoError(t, err)

	available, err := h.dispatch.ListAvailableRides(ctx, driver.ID)
	require.NoError(t, err)
	require.Len(t, available, 5)
	for i := 1; i < len(available); i++ {
		assert.LessOrEqual(t, available[i-1].DistanceKm, available[i].DistanceKm)
	}
	assert.InDelta(t, 1.11, available[0].DistanceKm, 0.01)
	for _, r := range available {
		assert.Equal(t, models.RideClassEconomy, r.RideClass)
	}
}

func TestDispatchEngine_ListAvailableRidesWithoutLocation(t *testing.T) {
	h := newHarness(t, "pull")
	driver, err := h.driverSv.CreateDriver(context.Background(), &CreateDriverRequest{
		UserID:       primitive.NewObjectID(),
		VehicleClass: models.VehicleSedan,
	})
	require.NoError(t, err)

	available, err := h.dispatch.ListAvailableRides(context.Background(), driver.ID)
	require.NoError(t, err)
	assert.Empty(t, available)

	_, err = h.dispatch.ListAvailableRides(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestTieBreakers(t *testing.T) {
	candidates := make([]*models.DriverDistance, 5)
	for i := range candidates {
		candidates[i] = &models.DriverDistance{
			Driver:     &models.Driver{ID: primitive.NewObjectID()},
			DistanceKm: 1.0,
		}
	}
	candidates = append(candidates, &models.DriverDistance{
		Driver:     &models.Driver{ID: primitive.NewObjectID()},
		DistanceKm: 5.0,
	})

	ranked := Nearest{}.Rank(candidates)
	assert.Equal(t, Nearest{}.Rank(candidates), ranked, "nearest is deterministic")
	assert.Equal(t, 5.0, ranked[len(ranked)-1].DistanceKm)

	first := NewJitteredNearest(7, 0.1).Rank(candidates)
	second := NewJitteredNearest(7, 0.1).Rank(candidates)
	assert.Equal(t, first, second, "same seed gives the same order")
	assert.Equal(t, 5.0, first[len(first)-1].DistanceKm, "jitter never lifts a clearly farther driver")

	// equidistant drivers should not always come out in the same order
	seen := map[string]bool{}
	for seed := int64(1); seed <= 20; seed++ {
		seen[NewJitteredNearest(seed, 0.1).Rank(candidates)[0].Driver.ID.Hex()] = true
	}
	assert.Greater(t, len(seen), 1, fmt.Sprintf("winners: %v", seen))
}
