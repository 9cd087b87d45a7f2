package services

import (
	"context"
	"testing"

	"goride/internal/models"
	"goride/internal/repositories/memory"
	"goride/internal/utils"
	"goride/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// hookedDrivers runs callbacks around Reserve so a test can land another
// transition between the ride gate and the driver gate of Assign.
type hookedDrivers struct {
	*memory.DriverRepository
	beforeReserve func()
	afterReserve  func()
}

func (d *hookedDrivers) Reserve(ctx context.Context, driverID, rideID primitive.ObjectID) (bool, error) {
	if d.beforeReserve != nil {
		d.beforeReserve()
	}
	ok, err := d.DriverRepository.Reserve(ctx, driverID, rideID)
	if d.afterReserve != nil {
		d.afterReserve()
	}
	return ok, err
}

func TestRideStateMachine_CancelDuringAssignFreesDriver(t *testing.T) {
	tests := []struct {
		name   string
		before bool
	}{
		{name: "cancel before driver reserved", before: true},
		{name: "cancel after driver reserved", before: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "pull")
			ctx := context.Background()
			driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)
			rider := h.addRider(t)
			ride := h.createRide(t, rider.ID, models.RideClassEconomy)

			hooked := &hookedDrivers{DriverRepository: h.drivers}
			machine := NewRideStateMachine(h.rides, hooked, h.riders, h.fares, h.events, nil, 6, logger.Nop())

			var cancelErr error
			cancel := func() {
				_, cancelErr = machine.Cancel(ctx, ride.ID, rider.ID, "changed plans")
			}
			if tt.before {
				hooked.beforeReserve = cancel
			} else {
				hooked.afterReserve = cancel
			}

			_, err := machine.Assign(ctx, ride.ID, driver.ID)
			require.NoError(t, cancelErr)
			assert.ErrorIs(t, err, utils.ErrConflict)

			stored, err := h.rides.GetByID(ctx, ride.ID)
			require.NoError(t, err)
			assert.Equal(t, models.RideStatusCancelled, stored.Status)
			assert.Nil(t, stored.DriverID)

			storedDriver, err := h.drivers.GetByID(ctx, driver.ID)
			require.NoError(t, err)
			assert.Equal(t, models.DriverAvailable, storedDriver.Availability)
			assert.Nil(t, storedDriver.CurrentRideID)
			assert.Empty(t, h.events.ofType(models.EventRideAccepted))

			// The driver can take the next ride.
			next := h.createRide(t, h.addRider(t).ID, models.RideClassEconomy)
			hooked.beforeReserve, hooked.afterReserve = nil, nil
			accepted, err := machine.Assign(ctx, next.ID, driver.ID)
			require.NoError(t, err)
			assert.Equal(t, models.RideStatusAccepted, accepted.Status)
		})
	}
}
