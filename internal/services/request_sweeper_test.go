package services

import (
	"context"
	"testing"
	"time"

	"goride/internal/models"
	"goride/internal/utils"
	"goride/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSweeper_ExpiresOldRequests(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	rider := h.addRider(t)
	ride := h.createRide(t, rider.ID, models.RideClassEconomy)

	sweeper := NewRequestSweeper(h.config, h.rides, h.machine, h.dispatch, h.clock.Now, logger.Nop())

	expired, _, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired, "fresh requests are left alone")

	h.clock.Advance(6 * time.Minute)
	expired, assigned, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Zero(t, assigned)

	stored, err := h.rides.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, stored.Status)
	assert.Equal(t, models.CancelActorSystem, stored.CancelledBy)
	assert.Equal(t, utils.ReasonNoDriverFound, stored.CancellationReason)

	storedRider, err := h.riders.GetByID(ctx, rider.ID)
	require.NoError(t, err)
	assert.Nil(t, storedRider.ActiveRideID)

	cancelled := h.events.ofType(models.EventRideCancelled)
	require.Len(t, cancelled, 1)
	assert.Contains(t, cancelled[0].channels, models.UserChannel(rider.UserID.Hex()))
}

func TestRequestSweeper_RedispatchesInPushMode(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()

	ride, err := h.dispatch.RequestRide(ctx, economyRequest(h.addRider(t).ID))
	require.NoError(t, err)
	require.Equal(t, models.RideStatusRequested, ride.Status)

	driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	h.clock.Advance(time.Minute)

	sweeper := NewRequestSweeper(h.config, h.rides, h.machine, h.dispatch, h.clock.Now, logger.Nop())
	expired, assigned, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, 1, assigned)

	stored, err := h.rides.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAccepted, stored.Status)
	assert.Equal(t, driver.ID, *stored.DriverID)
}

func TestRequestSweeper_NoRedispatchInPullMode(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	ride := h.createRide(t, h.addRider(t).ID, models.RideClassEconomy)
	h.addDriver(t, models.VehicleSedan, 0, 0.001)

	sweeper := NewRequestSweeper(h.config, h.rides, h.machine, h.dispatch, h.clock.Now, logger.Nop())
	_, assigned, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, assigned)

	stored, err := h.rides.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusRequested, stored.Status)
}

func TestRequestSweeper_RunStopsWithContext(t *testing.T) {
	h := newHarness(t, "pull")
	h.config.SweepInterval = 10 * time.Millisecond
	sweeper := NewRequestSweeper(h.config, h.rides, h.machine, h.dispatch, h.clock.Now, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
