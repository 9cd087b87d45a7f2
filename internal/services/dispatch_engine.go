package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"
	"goride/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DispatchEngine matches ride requests to drivers. In push mode it assigns
// the best candidate itself; in pull mode it offers the request to every
// compatible driver and lets the first claim win. Both paths go through
// RideStateMachine.Assign.
type DispatchEngine interface {
	RequestRide(ctx context.Context, req *CreateRideRequest) (*models.Ride, error)
	Dispatch(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	Broadcast(ctx context.Context, ride *models.Ride) (int, error)
	AcceptRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)
	ListAvailableRides(ctx context.Context, driverID primitive.ObjectID) ([]*AvailableRide, error)
	// NearbyDrivers shows a rider which drivers could serve a pickup. An
	// empty class matches every vehicle.
	NearbyDrivers(ctx context.Context, pickup models.Point, class models.RideClass, radiusKm float64) ([]*NearbyDriver, error)
	Mode() string
}

// AvailableRide is an open request as seen from one driver.
type AvailableRide struct {
	RideID         string           `json:"ride_id"`
	RideClass      models.RideClass `json:"ride_class"`
	Pickup         models.Location  `json:"pickup"`
	Destination    models.Location  `json:"destination"`
	DistanceKm     float64          `json:"distance_km"`
	TripDistanceKm float64          `json:"trip_distance_km"`
	EstimatedFare  float64          `json:"estimated_fare"`
	PassengerCount int              `json:"passenger_count"`
	RequestedAt    time.Time        `json:"requested_at"`
}

// NearbyDriver is an available driver as seen from a pickup point.
type NearbyDriver struct {
	DriverID     string              `json:"driver_id"`
	Name         string              `json:"name"`
	Rating       float64             `json:"rating"`
	VehicleClass models.VehicleClass `json:"vehicle_class"`
	DistanceKm   float64             `json:"distance_km"`
	ETAMinutes   int                 `json:"eta_minutes"`
	Location     models.Point        `json:"location"`
}

type dispatchEngine struct {
	machine RideStateMachine
	geo     GeospatialIndex
	rides   interfaces.RideRepository
	drivers interfaces.DriverRepository
	events  EventPublisher
	ranker  TieBreaker
	config  *config.DispatchConfig
	logger  *logger.Logger
}

func NewDispatchEngine(
	cfg *config.DispatchConfig,
	machine RideStateMachine,
	geo GeospatialIndex,
	rides interfaces.RideRepository,
	drivers interfaces.DriverRepository,
	events EventPublisher,
	ranker TieBreaker,
	log *logger.Logger,
) DispatchEngine {
	if ranker == nil {
		ranker = NewJitteredNearest(cfg.JitterSeed, cfg.JitterPct)
	}
	return &dispatchEngine{
		machine: machine,
		geo:     geo,
		rides:   rides,
		drivers: drivers,
		events:  events,
		ranker:  ranker,
		config:  cfg,
		logger:  log,
	}
}

func (d *dispatchEngine) Mode() string {
	return d.config.Mode
}

// RequestRide creates the ride and runs the configured dispatch policy.
// Dispatch failures are logged; the ride stays REQUESTED and is returned.
func (d *dispatchEngine) RequestRide(ctx context.Context, req *CreateRideRequest) (*models.Ride, error) {
	ride, err := d.machine.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	switch d.config.Mode {
	case config.DispatchModePull:
		if _, err := d.Broadcast(ctx, ride); err != nil {
			d.logger.WithError(err).WithRideID(ride.ID).Warn("Ride broadcast failed")
		}
		return ride, nil
	default:
		dispatched, err := d.Dispatch(ctx, ride)
		if err != nil {
			d.logger.WithError(err).WithRideID(ride.ID).Warn("Auto dispatch failed")
			return ride, nil
		}
		return dispatched, nil
	}
}

func (d *dispatchEngine) candidates(ctx context.Context, ride *models.Ride) ([]*models.DriverDistance, error) {
	return d.geo.NearbyDrivers(ctx,
		ride.PickupLocation.Latitude(), ride.PickupLocation.Longitude(),
		clampRadius(d.config.SearchRadiusKm), d.config.CandidateLimit,
		VehicleCompatibility[ride.RideClass],
		func(driver *models.Driver) bool { return dispatchable(ride.RideClass, driver) },
	)
}

// Dispatch tries up to MaxAttempts candidates, best ranked first. A lost
// race moves on to the next candidate; a ride that is no longer open stops
// the loop.
func (d *dispatchEngine) Dispatch(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	candidates, err := d.candidates(ctx, ride)
	if err != nil {
		return ride, utils.NewInternalError("failed to find nearby drivers", err)
	}
	ranked := d.ranker.Rank(candidates)

	attempt := 0
	for _, candidate := range ranked {
		if attempt >= d.config.MaxAttempts {
			break
		}
		attempt++

		assigned, err := d.machine.Assign(ctx, ride.ID, candidate.Driver.ID)
		if err == nil {
			d.logger.LogDispatchAttempt(ride.ID, candidate.Driver.ID, attempt, "assigned")
			return assigned, nil
		}
		if !errors.Is(err, utils.ErrConflict) {
			d.logger.LogDispatchAttempt(ride.ID, candidate.Driver.ID, attempt, "error")
			return ride, err
		}
		d.logger.LogDispatchAttempt(ride.ID, candidate.Driver.ID, attempt, "conflict")

		current, err := d.rides.GetByID(ctx, ride.ID)
		if err != nil {
			return ride, lookupError(err, utils.MsgRideNotFound)
		}
		if current.Status != models.RideStatusRequested || current.DriverID != nil {
			return current, nil
		}
		ride = current
	}

	d.logger.WithRideID(ride.ID).WithFields(map[string]interface{}{
		"candidates": len(ranked),
		"attempts":   attempt,
	}).Info("No driver assigned, ride is still searching")
	return ride, nil
}

// Broadcast offers the ride to every compatible driver nearby and returns
// how many were notified.
func (d *dispatchEngine) Broadcast(ctx context.Context, ride *models.Ride) (int, error) {
	candidates, err := d.candidates(ctx, ride)
	if err != nil {
		return 0, utils.NewInternalError("failed to find nearby drivers", err)
	}

	for _, c := range candidates {
		d.events.Publish(models.NewEvent(models.EventNewRideRequest, ride.ID.Hex(), map[string]interface{}{
			"ride_id":          ride.ID.Hex(),
			"ride_class":       ride.RideClass,
			"pickup":           ride.PickupLocation,
			"destination":      ride.DestinationLocation,
			"distance_km":      utils.RoundMoney(c.DistanceKm),
			"trip_distance_km": utils.RoundMoney(ride.DistanceKm),
			"estimated_fare":   ride.EstimatedFare,
			"passenger_count":  ride.PassengerCount,
		}), models.UserChannel(c.Driver.UserID.Hex()))
	}

	d.logger.LogRideEvent(ride.ID, string(models.EventNewRideRequest), map[string]interface{}{
		"drivers_notified": len(candidates),
	})
	return len(candidates), nil
}

func (d *dispatchEngine) AcceptRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	return d.machine.Assign(ctx, rideID, driverID)
}

// ListAvailableRides returns open requests near the driver's last known
// location that its vehicle can serve, nearest first.
func (d *dispatchEngine) ListAvailableRides(ctx context.Context, driverID primitive.ObjectID) ([]*AvailableRide, error) {
	driver, err := d.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, lookupError(err, utils.MsgDriverNotFound)
	}
	if driver.CurrentLocation == nil {
		return []*AvailableRide{}, nil
	}

	limit := d.config.AvailableRideCap
	if limit < utils.MinAvailableRides || limit > utils.MaxAvailableRides {
		limit = utils.DefaultAvailableRides
	}

	lat, lng := driver.CurrentLocation.Latitude(), driver.CurrentLocation.Longitude()
	rides, err := d.rides.FindRequestedNear(ctx, lat, lng, clampRadius(d.config.SearchRadiusKm), limit*4)
	if err != nil {
		return nil, utils.NewInternalError("failed to find open rides", err)
	}

	available := make([]*AvailableRide, 0, limit)
	for _, ride := range rides {
		if !IsCompatible(ride.RideClass, driver.VehicleClass) {
			continue
		}
		available = append(available, &AvailableRide{
			RideID:         ride.ID.Hex(),
			RideClass:      ride.RideClass,
			Pickup:         ride.PickupLocation,
			Destination:    ride.DestinationLocation,
			DistanceKm:     utils.CalculateDistance(lat, lng, ride.PickupLocation.Latitude(), ride.PickupLocation.Longitude()),
			TripDistanceKm: ride.DistanceKm,
			EstimatedFare:  ride.EstimatedFare,
			PassengerCount: ride.PassengerCount,
			RequestedAt:    ride.RequestedAt,
		})
	}

	sortAvailable(available)
	if len(available) > limit {
		available = available[:limit]
	}
	return available, nil
}

func (d *dispatchEngine) NearbyDrivers(ctx context.Context, pickup models.Point, class models.RideClass, radiusKm float64) ([]*NearbyDriver, error) {
	if radiusKm <= 0 {
		radiusKm = utils.DefaultNearbyRadius
	}
	var vehicles []models.VehicleClass
	if class != "" {
		if !class.IsValid() {
			return nil, utils.NewValidationError(utils.MsgValidationFailed, map[string]string{
				"ride_class": "Invalid ride class",
			})
		}
		vehicles = VehicleCompatibility[class]
	}

	found, err := d.geo.NearbyDrivers(ctx, pickup.Lat, pickup.Lng, clampRadius(radiusKm), utils.MaxNearbyDrivers, vehicles,
		func(driver *models.Driver) bool {
			return driver.Availability == models.DriverAvailable && driver.CurrentRideID == nil && driver.CurrentLocation != nil
		},
	)
	if err != nil {
		return nil, utils.NewInternalError("failed to find nearby drivers", err)
	}

	nearby := make([]*NearbyDriver, 0, len(found))
	for _, c := range found {
		eta := utils.EstimateETAMinutes(c.DistanceKm, utils.AverageCitySpeedKMH)
		if eta < 1 {
			eta = 1
		}
		nearby = append(nearby, &NearbyDriver{
			DriverID:     c.Driver.ID.Hex(),
			Name:         c.Driver.Name,
			Rating:       c.Driver.Rating,
			VehicleClass: c.Driver.VehicleClass,
			DistanceKm:   math.Round(c.DistanceKm*100) / 100,
			ETAMinutes:   eta,
			Location: models.Point{
				Lat: c.Driver.CurrentLocation.Latitude(),
				Lng: c.Driver.CurrentLocation.Longitude(),
			},
		})
	}
	return nearby, nil
}

func sortAvailable(rides []*AvailableRide) {
	sort.SliceStable(rides, func(i, j int) bool {
		if rides[i].DistanceKm != rides[j].DistanceKm {
			return rides[i].DistanceKm < rides[j].DistanceKm
		}
		return rides[i].RideID < rides[j].RideID
	})
}
