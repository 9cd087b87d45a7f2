package services

import (
	"context"
	"testing"

	"goride/internal/models"
	"goride/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crowdWithHatchbacks puts more incompatible drivers next to the pickup than
// any candidate limit, with one XL-capable driver behind them.
func crowdWithHatchbacks(t *testing.T, h *harness) *models.Driver {
	t.Helper()
	for i := 0; i < 70; i++ {
		h.addDriver(t, models.VehicleHatchback, 0, 0.001)
	}
	return h.addDriver(t, models.VehicleSUV, 0, 0.03)
}

func TestGeospatialIndex_IncompatibleCrowdDoesNotHideDriver(t *testing.T) {
	h := newHarness(t, "push")
	suv := crowdWithHatchbacks(t, h)
	ctx := context.Background()

	memoryIndex := NewPointGeoIndex(geo.NewMemoryIndex(), h.drivers)
	drivers, err := h.drivers.FindNearbyAvailable(ctx, 0, 0, 10, nil, 0)
	require.NoError(t, err)
	for _, d := range drivers {
		require.NoError(t, memoryIndex.UpdateDriverLocation(ctx, d.Driver.ID, d.Driver.CurrentLocation.Latitude(), d.Driver.CurrentLocation.Longitude()))
	}

	indexes := map[string]GeospatialIndex{
		"repository": h.geo,
		"point":      memoryIndex,
	}
	for name, index := range indexes {
		t.Run(name, func(t *testing.T) {
			found, err := index.NearbyDrivers(ctx, 0, 0, 10, 20, VehicleCompatibility[models.RideClassXL], nil)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, suv.ID, found[0].Driver.ID)
		})
	}
}

func TestDispatchEngine_PushFindsCompatibleDriverBehindCrowd(t *testing.T) {
	h := newHarness(t, "push")
	suv := crowdWithHatchbacks(t, h)
	rider := h.addRider(t)

	ride, err := h.dispatch.RequestRide(context.Background(), &CreateRideRequest{
		RiderID:        rider.ID,
		Pickup:         models.Point{Lat: 0, Lng: 0},
		Destination:    models.Point{Lat: 0, Lng: 0.09},
		RideClass:      models.RideClassXL,
		PassengerCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAccepted, ride.Status)
	require.NotNil(t, ride.DriverID)
	assert.Equal(t, suv.ID, *ride.DriverID)
}
