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

type DriverService interface {
	CreateDriver(ctx context.Context, req *CreateDriverRequest) (*models.Driver, error)
	GetDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Driver, error)
	GetDriverByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error)
	GoOnline(ctx context.Context, driverID primitive.ObjectID, location *models.Point) (*models.Driver, error)
	GoOffline(ctx context.Context, driverID primitive.ObjectID) (*models.Driver, error)
	UpdateLocation(ctx context.Context, driverID primitive.ObjectID, point models.Point) (*models.Driver, error)
}

type CreateDriverRequest struct {
	UserID       primitive.ObjectID
	Name         string
	VehicleClass models.VehicleClass
	Rating       float64
}

type driverService struct {
	drivers interfaces.DriverRepository
	rides   interfaces.RideRepository
	riders  interfaces.RiderRepository
	geo     GeospatialIndex
	events  EventPublisher
	logger  *logger.Logger
}

func NewDriverService(
	drivers interfaces.DriverRepository,
	rides interfaces.RideRepository,
	riders interfaces.RiderRepository,
	geo GeospatialIndex,
	events EventPublisher,
	log *logger.Logger,
) DriverService {
	return &driverService{
		drivers: drivers,
		rides:   rides,
		riders:  riders,
		geo:     geo,
		events:  events,
		logger:  log,
	}
}

func (s *driverService) CreateDriver(ctx context.Context, req *CreateDriverRequest) (*models.Driver, error) {
	details := map[string]string{}
	if req.UserID.IsZero() {
		details["user_id"] = "required"
	}
	if !req.VehicleClass.IsValid() {
		details["vehicle_class"] = "must be a known vehicle class"
	}
	if len(details) > 0 {
		return nil, utils.NewValidationError(utils.MsgValidationFailed, details)
	}

	driver := &models.Driver{
		UserID:       req.UserID,
		Name:         req.Name,
		Availability: models.DriverOffline,
		VehicleClass: req.VehicleClass,
		Rating:       req.Rating,
	}
	if err := s.drivers.Create(ctx, driver); err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			return nil, utils.NewConflictError("driver profile already exists")
		}
		return nil, utils.NewInternalError("failed to create driver", err)
	}

	s.logger.WithDriverID(driver.ID).WithField("vehicle_class", driver.VehicleClass).Info("Driver profile created")
	return driver, nil
}

func (s *driverService) GetDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Driver, error) {
	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, lookupError(err, utils.MsgDriverNotFound)
	}
	return driver, nil
}

func (s *driverService) GetDriverByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error) {
	driver, err := s.drivers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, utils.MsgDriverNotFound)
	}
	return driver, nil
}

func (s *driverService) GoOnline(ctx context.Context, driverID primitive.ObjectID, location *models.Point) (*models.Driver, error) {
	if location != nil && !utils.IsValidCoordinates(location.Lat, location.Lng) {
		return nil, utils.NewValidationError("invalid coordinates", nil)
	}

	driver, applied, err := s.drivers.SetAvailability(ctx, driverID, models.DriverAvailable)
	if err != nil {
		return nil, lookupError(err, utils.MsgDriverNotFound)
	}
	if !applied {
		return nil, utils.NewConflictError(utils.MsgDriverBusy)
	}

	if location != nil {
		if driver, err = s.drivers.UpdateLocation(ctx, driverID, location.ToLocation()); err != nil {
			return nil, lookupError(err, utils.MsgDriverNotFound)
		}
	}
	if driver.CurrentLocation != nil {
		s.index(ctx, driver)
	}

	s.logger.WithDriverID(driverID).Info("Driver is online")
	return driver, nil
}

func (s *driverService) GoOffline(ctx context.Context, driverID primitive.ObjectID) (*models.Driver, error) {
	driver, applied, err := s.drivers.SetAvailability(ctx, driverID, models.DriverOffline)
	if err != nil {
		return nil, lookupError(err, utils.MsgDriverNotFound)
	}
	if !applied {
		return nil, utils.NewConflictError(utils.MsgDriverBusy)
	}

	if err := s.geo.RemoveDriver(ctx, driverID); err != nil {
		s.logger.WithError(err).WithDriverID(driverID).Warn("Failed to remove driver from index")
	}

	s.logger.WithDriverID(driverID).Info("Driver is offline")
	return driver, nil
}

// UpdateLocation records the driver's position, refreshes the index for
// drivers that are not offline and forwards the position to the rider of
// the driver's current ride.
func (s *driverService) UpdateLocation(ctx context.Context, driverID primitive.ObjectID, point models.Point) (*models.Driver, error) {
	if !utils.IsValidCoordinates(point.Lat, point.Lng) {
		return nil, utils.NewValidationError("invalid coordinates", nil)
	}

	driver, err := s.drivers.UpdateLocation(ctx, driverID, point.ToLocation())
	if err != nil {
		return nil, lookupError(err, utils.MsgDriverNotFound)
	}
	if driver.Availability != models.DriverOffline {
		s.index(ctx, driver)
	}

	if driver.CurrentRideID != nil {
		s.forwardToRider(ctx, driver, point)
	}
	return driver, nil
}

func (s *driverService) index(ctx context.Context, driver *models.Driver) {
	loc := driver.CurrentLocation
	if err := s.geo.UpdateDriverLocation(ctx, driver.ID, loc.Latitude(), loc.Longitude()); err != nil {
		s.logger.WithError(err).WithDriverID(driver.ID).Warn("Failed to index driver location")
	}
}

func (s *driverService) forwardToRider(ctx context.Context, driver *models.Driver, point models.Point) {
	ride, err := s.rides.GetByID(ctx, *driver.CurrentRideID)
	if err != nil || ride.Status.IsTerminal() {
		return
	}

	channels := []string{models.RideChannel(ride.ID.Hex())}
	if rider, err := s.riders.GetByID(ctx, ride.RiderID); err == nil {
		channels = append(channels, models.UserChannel(rider.UserID.Hex()))
	}

	s.events.Publish(models.NewEvent(models.EventDriverLocation, ride.ID.Hex(), map[string]interface{}{
		"driver_id": driver.ID.Hex(),
		"lat":       point.Lat,
		"lng":       point.Lng,
	}), channels...)
}
