package services

import (
	"context"
	"strings"

	"goride/internal/models"
	"goride/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	UserTypeDriver = "driver"
	UserTypeRider  = "rider"
)

// RealtimeGateway connects websocket sessions to the ride services: it
// decides who may join a ride room and applies location pings sent over
// the socket.
type RealtimeGateway struct {
	machine RideStateMachine
	drivers DriverService
	riders  RiderService
}

func NewRealtimeGateway(machine RideStateMachine, drivers DriverService, riders RiderService) *RealtimeGateway {
	return &RealtimeGateway{machine: machine, drivers: drivers, riders: riders}
}

// AuthorizeRoom allows joining ride:{id} only for the ride's participants.
func (g *RealtimeGateway) AuthorizeRoom(ctx context.Context, userID, userType, room string) bool {
	rideHex, ok := strings.CutPrefix(room, "ride:")
	if !ok {
		return false
	}
	rideID, err := primitive.ObjectIDFromHex(rideHex)
	if err != nil {
		return false
	}
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return false
	}

	ride, err := g.machine.Get(ctx, rideID)
	if err != nil {
		return false
	}
	return g.machine.AuthorizeUser(ctx, ride, uid) == nil
}

func (g *RealtimeGateway) HandleLocation(ctx context.Context, userID, userType string, lat, lng float64) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.NewValidationError("invalid user id", nil)
	}
	point := models.Point{Lat: lat, Lng: lng}

	switch userType {
	case UserTypeDriver:
		driver, err := g.drivers.GetDriverByUserID(ctx, uid)
		if err != nil {
			return err
		}
		_, err = g.drivers.UpdateLocation(ctx, driver.ID, point)
		return err
	case UserTypeRider:
		rider, err := g.riders.GetRiderByUserID(ctx, uid)
		if err != nil {
			return err
		}
		_, err = g.riders.UpdateLocation(ctx, rider.ID, point)
		return err
	default:
		return utils.NewValidationError("unknown user type", nil)
	}
}
