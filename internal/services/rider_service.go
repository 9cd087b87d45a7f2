package services

import (
	"context"
	"errors"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"
	"goride/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RiderService interface {
	CreateRider(ctx context.Context, req *CreateRiderRequest) (*models.Rider, error)
	GetRider(ctx context.Context, riderID primitive.ObjectID) (*models.Rider, error)
	GetRiderByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Rider, error)
	UpdateLocation(ctx context.Context, riderID primitive.ObjectID, point models.Point) (*models.Rider, error)
}

type CreateRiderRequest struct {
	UserID primitive.ObjectID
	Name   string
	Rating float64
}

type riderService struct {
	riders  interfaces.RiderRepository
	rides   interfaces.RideRepository
	drivers interfaces.DriverRepository
	events  EventPublisher
	logger  *logger.Logger
}

func NewRiderService(
	riders interfaces.RiderRepository,
	rides interfaces.RideRepository,
	drivers interfaces.DriverRepository,
	events EventPublisher,
	log *logger.Logger,
) RiderService {
	return &riderService{
		riders:  riders,
		rides:   rides,
		drivers: drivers,
		events:  events,
		logger:  log,
	}
}

func (s *riderService) CreateRider(ctx context.Context, req *CreateRiderRequest) (*models.Rider, error) {
	if req.UserID.IsZero() {
		return nil, utils.NewValidationError(utils.MsgValidationFailed, map[string]string{"user_id": "required"})
	}

	rider := &models.Rider{
		UserID: req.UserID,
		Name:   req.Name,
		Rating: req.Rating,
	}
	if err := s.riders.Create(ctx, rider); err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			return nil, utils.NewConflictError("rider profile already exists")
		}
		return nil, utils.NewInternalError("failed to create rider", err)
	}

	s.logger.WithUserID(rider.UserID).Info("Rider profile created")
	return rider, nil
}

func (s *riderService) GetRider(ctx context.Context, riderID primitive.ObjectID) (*models.Rider, error) {
	rider, err := s.riders.GetByID(ctx, riderID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRiderNotFound)
	}
	return rider, nil
}

func (s *riderService) GetRiderByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Rider, error) {
	rider, err := s.riders.GetByUserID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRiderNotFound)
	}
	return rider, nil
}

// UpdateLocation records the rider's position and forwards it to the
// driver bound to the rider's active ride, if any.
func (s *riderService) UpdateLocation(ctx context.Context, riderID primitive.ObjectID, point models.Point) (*models.Rider, error) {
	if !utils.IsValidCoordinates(point.Lat, point.Lng) {
		return nil, utils.NewValidationError("invalid coordinates", nil)
	}

	rider, err := s.riders.UpdateLocation(ctx, riderID, point.ToLocation())
	if err != nil {
		return nil, lookupError(err, utils.MsgRiderNotFound)
	}
	if rider.ActiveRideID == nil {
		return rider, nil
	}

	ride, err := s.rides.GetByID(ctx, *rider.ActiveRideID)
	if err != nil || ride.DriverID == nil || ride.Status.IsTerminal() {
		return rider, nil
	}

	channels := []string{models.RideChannel(ride.ID.Hex())}
	if driver, err := s.drivers.GetByID(ctx, *ride.DriverID); err == nil {
		channels = append(channels, models.UserChannel(driver.UserID.Hex()))
	}
	s.events.Publish(models.NewEvent(models.EventRiderLocation, ride.ID.Hex(), map[string]interface{}{
		"rider_id": rider.ID.Hex(),
		"lat":      point.Lat,
		"lng":      point.Lng,
	}), channels...)

	return rider, nil
}
