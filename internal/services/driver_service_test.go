package services

import (
	"context"
	"testing"

	"goride/internal/models"
	"goride/internal/utils"
	"goride/pkg/geo"
	"goride/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDriverService_CreateDriver(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()
	userID := primitive.NewObjectID()

	driver, err := h.driverSv.CreateDriver(ctx, &CreateDriverRequest{UserID: userID, VehicleClass: models.VehicleSUV})
	require.NoError(t, err)
	assert.Equal(t, models.DriverOffline, driver.Availability)

	_, err = h.driverSv.CreateDriver(ctx, &CreateDriverRequest{UserID: userID, VehicleClass: models.VehicleSUV})
	assert.ErrorIs(t, err, utils.ErrConflict)

	_, err = h.driverSv.CreateDriver(ctx, &CreateDriverRequest{UserID: primitive.NewObjectID(), VehicleClass: "bike"})
	assert.ErrorIs(t, err, utils.ErrValidation)

	found, err := h.driverSv.GetDriverByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, driver.ID, found.ID)
}

func TestDriverService_OnlineOfflineMaintainsIndex(t *testing.T) {
	h := newHarness(t, "push")
	ctx := context.Background()
	index := geo.NewMemoryIndex()
	h.driverSv = NewDriverService(h.drivers, h.rides, h.riders, NewPointGeoIndex(index, h.drivers), h.events, logger.Nop())

	driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	assert.Equal(t, 1, index.Len())

	offline, err := h.driverSv.GoOffline(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DriverOffline, offline.Availability)
	assert.Zero(t, index.Len())

	_, err = h.driverSv.UpdateLocation(ctx, driver.ID, models.Point{Lat: 0, Lng: 0.002})
	require.NoError(t, err)
	assert.Zero(t, index.Len(), "offline drivers stay out of the index")

	online, err := h.driverSv.GoOnline(ctx, driver.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DriverAvailable, online.Availability)
	assert.Equal(t, 1, index.Len(), "last known location is indexed again")
}

func TestDriverService_OfflineRefusedWhileBusy(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	ride := h.createRide(t, h.addRider(t).ID, models.RideClassEconomy)
	driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	_, err := h.machine.Assign(ctx, ride.ID, driver.ID)
	require.NoError(t, err)

	_, err = h.driverSv.GoOffline(ctx, driver.ID)
	assert.ErrorIs(t, err, utils.ErrConflict)

	_, err = h.driverSv.GoOnline(ctx, driver.ID, nil)
	assert.ErrorIs(t, err, utils.ErrConflict, "a busy driver cannot be made available again")

	stored, err := h.drivers.GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DriverBusy, stored.Availability)

	_, err = h.driverSv.GoOffline(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestDriverService_LocationForwardedToRider(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	rider := h.addRider(t)
	ride := h.createRide(t, rider.ID, models.RideClassEconomy)
	driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)

	_, err := h.driverSv.UpdateLocation(ctx, driver.ID, models.Point{Lat: 0, Lng: 0.0015})
	require.NoError(t, err)
	assert.Empty(t, h.events.ofType(models.EventDriverLocation), "no ride, nobody to tell")

	_, err = h.machine.Assign(ctx, ride.ID, driver.ID)
	require.NoError(t, err)
	_, err = h.driverSv.UpdateLocation(ctx, driver.ID, models.Point{Lat: 0, Lng: 0.0005})
	require.NoError(t, err)

	pings := h.events.ofType(models.EventDriverLocation)
	require.Len(t, pings, 1)
	assert.Contains(t, pings[0].channels, models.UserChannel(rider.UserID.Hex()))
	assert.Contains(t, pings[0].channels, models.RideChannel(ride.ID.Hex()))
	assert.Equal(t, 0.0005, pings[0].event.Data["lng"])

	_, err = h.driverSv.UpdateLocation(ctx, driver.ID, models.Point{Lat: 95, Lng: 0})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestRiderService_LocationForwardedToDriver(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	rider := h.addRider(t)
	ride := h.createRide(t, rider.ID, models.RideClassEconomy)

	_, err := h.riderSv.UpdateLocation(ctx, rider.ID, models.Point{Lat: 0, Lng: 0})
	require.NoError(t, err)
	assert.Empty(t, h.events.ofType(models.EventRiderLocation), "no driver bound yet")

	driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	_, err = h.machine.Assign(ctx, ride.ID, driver.ID)
	require.NoError(t, err)

	updated, err := h.riderSv.UpdateLocation(ctx, rider.ID, models.Point{Lat: 0.0001, Lng: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, updated.CurrentLocation.Latitude(), 1e-12)

	pings := h.events.ofType(models.EventRiderLocation)
	require.Len(t, pings, 1)
	assert.Contains(t, pings[0].channels, models.UserChannel(driver.UserID.Hex()))

	_, err = h.riderSv.UpdateLocation(ctx, primitive.NewObjectID(), models.Point{})
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestRealtimeGateway(t *testing.T) {
	h := newHarness(t, "pull")
	ctx := context.Background()
	gateway := NewRealtimeGateway(h.machine, h.driverSv, h.riderSv)

	rider := h.addRider(t)
	ride := h.createRide(t, rider.ID, models.RideClassEconomy)
	driver := h.addDriver(t, models.VehicleSedan, 0, 0.001)
	room := models.RideChannel(ride.ID.Hex())

	assert.True(t, gateway.AuthorizeRoom(ctx, rider.UserID.Hex(), UserTypeRider, room))
	assert.False(t, gateway.AuthorizeRoom(ctx, driver.UserID.Hex(), UserTypeDriver, room))
	assert.False(t, gateway.AuthorizeRoom(ctx, rider.UserID.Hex(), UserTypeRider, "ride:not-an-id"))
	assert.False(t, gateway.AuthorizeRoom(ctx, rider.UserID.Hex(), UserTypeRider, "user:"+driver.UserID.Hex()))

	_, err := h.machine.Assign(ctx, ride.ID, driver.ID)
	require.NoError(t, err)
	assert.True(t, gateway.AuthorizeRoom(ctx, driver.UserID.Hex(), UserTypeDriver, room))

	require.NoError(t, gateway.HandleLocation(ctx, driver.UserID.Hex(), UserTypeDriver, 0, 0.0002))
	stored, err := h.drivers.GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0002, stored.CurrentLocation.Longitude(), 1e-12)

	require.NoError(t, gateway.HandleLocation(ctx, rider.UserID.Hex(), UserTypeRider, 0.0003, 0))
	assert.ErrorIs(t, gateway.HandleLocation(ctx, rider.UserID.Hex(), "admin", 0, 0), utils.ErrValidation)
	assert.ErrorIs(t, gateway.HandleLocation(ctx, "bad", UserTypeRider, 0, 0), utils.ErrValidation)
}
