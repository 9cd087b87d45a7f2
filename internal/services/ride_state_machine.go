package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"
	"goride/pkg/logger"
	"goride/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// cancelRetries bounds how often cancel re-reads a ride that changed
	// under it before giving up.
	cancelRetries = 3
	// ratingRetries bounds how often a rating is re-folded into a driver
	// average that another rating changed first.
	ratingRetries = 5
	// staleClaimAge is how old a rider's pointer to a missing ride must be
	// before it is cleared.
	staleClaimAge = time.Minute
)

// RideStateMachine owns every status transition of a ride together with the
// driver and rider pointers that move with it. Each transition is gated by a
// conditional update on the ride; dependent records are changed only after
// that gate has been won.
type RideStateMachine interface {
	Create(ctx context.Context, req *CreateRideRequest) (*models.Ride, error)
	Assign(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)
	Start(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)
	Complete(ctx context.Context, rideID, driverID primitive.ObjectID, finalFareOverride *float64) (*models.Ride, error)
	Cancel(ctx context.Context, rideID, actorID primitive.ObjectID, reason string) (*models.Ride, error)
	// Expire cancels a ride that is still waiting for a driver on behalf of
	// the system. It reports false when the ride had already moved on.
	Expire(ctx context.Context, rideID primitive.ObjectID, reason string) (*models.Ride, bool, error)
	// Rate records the rider's rating of a completed ride, once, and folds
	// it into the driver's average.
	Rate(ctx context.Context, rideID, riderID primitive.ObjectID, rating float64, comment string) (*models.Ride, error)

	Get(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error)
	// AuthorizeUser checks that the account owns the ride's rider or driver
	// profile.
	AuthorizeUser(ctx context.Context, ride *models.Ride, userID primitive.ObjectID) error
	ActiveRide(ctx context.Context, riderID, driverID *primitive.ObjectID) (*models.Ride, error)
	History(ctx context.Context, filter models.RideHistoryFilter) ([]*models.Ride, int64, error)
}

type CreateRideRequest struct {
	RiderID        primitive.ObjectID
	Pickup         models.Point
	Destination    models.Point
	RideClass      models.RideClass
	PassengerCount int
}

type rideStateMachine struct {
	rides         interfaces.RideRepository
	drivers       interfaces.DriverRepository
	riders        interfaces.RiderRepository
	fares         *FareCalculator
	events        EventPublisher
	eta           maps.ETAEstimator
	maxPassengers int
	logger        *logger.Logger
}

func NewRideStateMachine(
	rides interfaces.RideRepository,
	drivers interfaces.DriverRepository,
	riders interfaces.RiderRepository,
	fares *FareCalculator,
	events EventPublisher,
	eta maps.ETAEstimator,
	maxPassengers int,
	log *logger.Logger,
) RideStateMachine {
	if eta == nil {
		eta = maps.HaversineEstimator{}
	}
	if maxPassengers <= 0 {
		maxPassengers = utils.DefaultMaxPassengers
	}
	return &rideStateMachine{
		rides:         rides,
		drivers:       drivers,
		riders:        riders,
		fares:         fares,
		events:        events,
		eta:           eta,
		maxPassengers: maxPassengers,
		logger:        log,
	}
}

func (m *rideStateMachine) Create(ctx context.Context, req *CreateRideRequest) (*models.Ride, error) {
	if err := m.validateCreate(req); err != nil {
		return nil, err
	}

	rider, err := m.riders.GetByID(ctx, req.RiderID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRiderNotFound)
	}

	distance := utils.CalculateDistance(req.Pickup.Lat, req.Pickup.Lng, req.Destination.Lat, req.Destination.Lng)
	estimate, err := m.fares.EstimateRide(distance, req.RideClass, req.PassengerCount)
	if err != nil {
		return nil, err
	}

	rideID := primitive.NewObjectID()
	if err := m.claimRider(ctx, rider, rideID); err != nil {
		return nil, err
	}

	now := m.fares.Now()
	ride := &models.Ride{
		ID:                  rideID,
		RiderID:             rider.ID,
		Status:              models.RideStatusRequested,
		RideClass:           req.RideClass,
		PickupLocation:      *req.Pickup.ToLocation(),
		DestinationLocation: *req.Destination.ToLocation(),
		DistanceKm:          distance,
		PassengerCount:      req.PassengerCount,
		EstimatedFare:       estimate.EstimatedFare,
		SurgeMultiplier:     estimate.SurgeMultiplier,
		RequestedAt:         now,
	}

	if err := m.rides.Create(ctx, ride); err != nil {
		if _, relErr := m.riders.ReleaseActiveRide(ctx, rider.ID, rideID, false, 0); relErr != nil {
			m.logger.WithError(relErr).WithRideID(rideID).Error("Failed to release rider after ride insert failure")
		}
		return nil, utils.NewInternalError("failed to create ride", err)
	}

	m.logger.LogRideEvent(ride.ID, string(models.EventRideRequested), map[string]interface{}{
		"rider_id":       rider.ID.Hex(),
		"ride_class":     ride.RideClass,
		"distance_km":    distance,
		"estimated_fare": ride.EstimatedFare,
	})
	m.publish(models.EventRideRequested, ride, map[string]interface{}{
		"estimated_fare": ride.EstimatedFare,
		"distance_km":    utils.RoundMoney(distance),
	}, rider, nil)

	return ride, nil
}

func (m *rideStateMachine) validateCreate(req *CreateRideRequest) error {
	details := map[string]string{}
	if req.RiderID.IsZero() {
		details["rider_id"] = "required"
	}
	if !req.RideClass.IsValid() {
		details["ride_class"] = "must be one of economy, comfort, premium, xl"
	}
	if req.PassengerCount < 1 || req.PassengerCount > m.maxPassengers {
		details["passenger_count"] = fmt.Sprintf("must be between 1 and %d", m.maxPassengers)
	}
	if !utils.IsValidCoordinates(req.Pickup.Lat, req.Pickup.Lng) {
		details["pickup"] = "invalid coordinates"
	}
	if !utils.IsValidCoordinates(req.Destination.Lat, req.Destination.Lng) {
		details["destination"] = "invalid coordinates"
	}
	if len(details) > 0 {
		return utils.NewValidationError(utils.MsgValidationFailed, details)
	}
	return nil
}

// claimRider points the rider at rideID. A pointer left behind by a ride
// that has since ended is cleared once and the claim retried.
func (m *rideStateMachine) claimRider(ctx context.Context, rider *models.Rider, rideID primitive.ObjectID) error {
	claimed, err := m.riders.ClaimActiveRide(ctx, rider.ID, rideID)
	if err != nil {
		return utils.NewInternalError("failed to reserve rider", err)
	}
	if claimed {
		return nil
	}

	current, err := m.riders.GetByID(ctx, rider.ID)
	if err != nil {
		return lookupError(err, utils.MsgRiderNotFound)
	}
	if current.ActiveRideID == nil {
		return utils.NewConflictError(utils.MsgActiveRideExists)
	}
	active, err := m.rides.GetByID(ctx, *current.ActiveRideID)
	switch {
	case err == nil:
		if !active.Status.IsTerminal() {
			return utils.NewConflictError(utils.MsgActiveRideExists)
		}
	case errors.Is(err, interfaces.ErrNotFound):
		// a claim whose insert is still in flight looks the same as one
		// whose insert never happened, so only old ids count as stale
		if time.Since(current.ActiveRideID.Timestamp()) < staleClaimAge {
			return utils.NewConflictError(utils.MsgActiveRideExists)
		}
	default:
		return utils.NewInternalError("failed to load active ride", err)
	}

	m.logger.WithUserID(rider.ID).WithField("stale_ride_id", current.ActiveRideID.Hex()).
		Warn("Clearing stale active ride pointer")
	if _, err := m.riders.ReleaseActiveRide(ctx, rider.ID, *current.ActiveRideID, false, 0); err != nil {
		return utils.NewInternalError("failed to clear stale active ride", err)
	}

	claimed, err = m.riders.ClaimActiveRide(ctx, rider.ID, rideID)
	if err != nil {
		return utils.NewInternalError("failed to reserve rider", err)
	}
	if !claimed {
		return utils.NewConflictError(utils.MsgActiveRideExists)
	}
	return nil
}

func (m *rideStateMachine) Assign(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRideNotFound)
	}
	if ride.Status != models.RideStatusRequested || ride.DriverID != nil {
		return nil, utils.NewConflictError(utils.MsgRideTaken)
	}

	driver, err := m.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, lookupError(err, utils.MsgDriverNotFound)
	}
	if driver.CurrentRideID != nil || driver.Availability == models.DriverBusy {
		return nil, utils.NewConflictError(utils.MsgDriverBusy)
	}
	if driver.Availability != models.DriverAvailable {
		return nil, utils.NewConflictError(utils.MsgDriverUnavailable)
	}

	now := m.fares.Now()
	accepted, applied, err := m.rides.ConditionalUpdate(ctx, rideID,
		models.RideCondition{Statuses: []models.RideStatus{models.RideStatusRequested}, Unassigned: true},
		models.RideUpdate{Status: models.RideStatusAccepted, DriverID: &driverID, AcceptedAt: &now},
	)
	if err != nil {
		return nil, utils.NewInternalError("failed to assign ride", err)
	}
	if !applied {
		return nil, utils.NewConflictError(utils.MsgRideTaken)
	}

	reserved, err := m.drivers.Reserve(ctx, driverID, rideID)
	if err != nil || !reserved {
		m.rollbackAssign(ctx, rideID, driverID)
		if err != nil {
			return nil, utils.NewInternalError("failed to reserve driver", err)
		}
		return nil, utils.NewConflictError(utils.MsgDriverBusy)
	}

	// The ride may have been cancelled between the two gates; its cancel
	// found no reservation to release, so the reservation is undone here.
	current, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		m.releaseOrphanedDriver(ctx, rideID, driverID)
		return nil, utils.NewInternalError("failed to confirm assignment", err)
	}
	if !boundTo(current, driverID) {
		m.releaseOrphanedDriver(ctx, rideID, driverID)
		return nil, utils.NewConflictError(utils.MsgRideTaken)
	}

	eta := m.pickupETA(ctx, driver, accepted)
	m.logger.LogRideEvent(rideID, string(models.EventRideAccepted), map[string]interface{}{
		"driver_id":   driverID.Hex(),
		"eta_minutes": eta,
	})

	rider, _ := m.riders.GetByID(ctx, accepted.RiderID)
	m.publish(models.EventRideAccepted, accepted, map[string]interface{}{
		"driver_id":     driverID.Hex(),
		"driver_name":   driver.Name,
		"vehicle_class": driver.VehicleClass,
		"rating":        driver.Rating,
		"eta_minutes":   eta,
	}, rider, driver)

	return accepted, nil
}

// rollbackAssign undoes a won ride gate after the driver could not be
// reserved, returning the ride to the open pool.
func (m *rideStateMachine) rollbackAssign(ctx context.Context, rideID, driverID primitive.ObjectID) {
	_, applied, err := m.rides.ConditionalUpdate(ctx, rideID,
		models.RideCondition{Statuses: []models.RideStatus{models.RideStatusAccepted}, DriverID: &driverID},
		models.RideUpdate{Status: models.RideStatusRequested, ClearDriver: true, ClearAcceptedAt: true},
	)
	log := m.logger.WithRideID(rideID).WithDriverID(driverID)
	switch {
	case err != nil:
		log.WithError(err).Error("Failed to roll back ride assignment")
	case !applied:
		log.Warn("Ride moved on before assignment rollback")
	default:
		log.Warn("Rolled back ride assignment, driver no longer available")
	}
}

func boundTo(ride *models.Ride, driverID primitive.ObjectID) bool {
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return false
	}
	return ride.Status == models.RideStatusAccepted || ride.Status == models.RideStatusStarted
}

// releaseOrphanedDriver frees a driver reserved for a ride that no longer
// holds them. The release is conditional on the reservation, so it is a
// no-op when the cancel already released it.
func (m *rideStateMachine) releaseOrphanedDriver(ctx context.Context, rideID, driverID primitive.ObjectID) {
	released, err := m.drivers.Release(ctx, driverID, rideID, false, 0)
	log := m.logger.WithRideID(rideID).WithDriverID(driverID)
	if err != nil {
		log.WithError(err).Error("Failed to release driver of a ride cancelled during assignment")
		return
	}
	if released {
		log.Warn("Released driver reserved for a ride cancelled during assignment")
	}
}

func (m *rideStateMachine) pickupETA(ctx context.Context, driver *models.Driver, ride *models.Ride) int {
	if driver.CurrentLocation == nil {
		return utils.MinPickupETAMinutes
	}
	eta, err := m.eta.PickupETA(ctx,
		maps.Location{Latitude: driver.CurrentLocation.Latitude(), Longitude: driver.CurrentLocation.Longitude()},
		maps.Location{Latitude: ride.PickupLocation.Latitude(), Longitude: ride.PickupLocation.Longitude()},
	)
	if err != nil {
		m.logger.WithError(err).WithRideID(ride.ID).Warn("Pickup ETA unavailable")
		return utils.MinPickupETAMinutes
	}
	return eta
}

func (m *rideStateMachine) Start(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRideNotFound)
	}
	if err := checkDriverTransition(ride, driverID, models.RideStatusAccepted); err != nil {
		return nil, err
	}

	now := m.fares.Now()
	started, applied, err := m.rides.ConditionalUpdate(ctx, rideID,
		models.RideCondition{Statuses: []models.RideStatus{models.RideStatusAccepted}, DriverID: &driverID},
		models.RideUpdate{Status: models.RideStatusStarted, StartedAt: &now},
	)
	if err != nil {
		return nil, utils.NewInternalError("failed to start ride", err)
	}
	if !applied {
		if err := checkDriverTransition(started, driverID, models.RideStatusAccepted); err != nil {
			return nil, err
		}
		return nil, utils.NewConflictError("ride changed concurrently")
	}

	m.logger.LogRideEvent(rideID, string(models.EventRideStarted), map[string]interface{}{
		"driver_id": driverID.Hex(),
	})
	rider, _ := m.riders.GetByID(ctx, started.RiderID)
	driver, _ := m.drivers.GetByID(ctx, driverID)
	m.publish(models.EventRideStarted, started, map[string]interface{}{
		"started_at": now,
	}, rider, driver)

	return started, nil
}

func (m *rideStateMachine) Complete(ctx context.Context, rideID, driverID primitive.ObjectID, finalFareOverride *float64) (*models.Ride, error) {
	if finalFareOverride != nil && *finalFareOverride < 0 {
		return nil, utils.NewValidationError(utils.MsgValidationFailed, map[string]string{
			"final_fare": "must not be negative",
		})
	}

	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRideNotFound)
	}
	if err := checkDriverTransition(ride, driverID, models.RideStatusStarted); err != nil {
		return nil, err
	}

	now := m.fares.Now()
	startedAt := now
	if ride.StartedAt != nil {
		startedAt = *ride.StartedAt
	}
	minutes := now.Sub(startedAt).Minutes()
	if minutes < 0 {
		minutes = 0
	}

	breakdown, err := m.fares.Finalize(ride.DistanceKm, minutes, ride.RideClass, startedAt, now)
	if err != nil {
		return nil, err
	}
	if finalFareOverride != nil {
		breakdown.Total = utils.RoundMoney(*finalFareOverride)
	}
	fare := breakdown.Total

	completed, applied, err := m.rides.ConditionalUpdate(ctx, rideID,
		models.RideCondition{Statuses: []models.RideStatus{models.RideStatusStarted}, DriverID: &driverID},
		models.RideUpdate{
			Status:        models.RideStatusCompleted,
			CompletedAt:   &now,
			FinalFare:     &fare,
			FareBreakdown: breakdown,
		},
	)
	if err != nil {
		return nil, utils.NewInternalError("failed to complete ride", err)
	}
	if !applied {
		if err := checkDriverTransition(completed, driverID, models.RideStatusStarted); err != nil {
			return nil, err
		}
		return nil, utils.NewConflictError("ride changed concurrently")
	}

	if released, err := m.drivers.Release(ctx, driverID, rideID, true, fare); err != nil || !released {
		m.logger.WithError(err).WithRideID(rideID).WithDriverID(driverID).Error("Failed to release driver after completion")
	}
	if released, err := m.riders.ReleaseActiveRide(ctx, completed.RiderID, rideID, true, fare); err != nil || !released {
		m.logger.WithError(err).WithRideID(rideID).Error("Failed to release rider after completion")
	}

	m.logger.LogRideEvent(rideID, string(models.EventRideCompleted), map[string]interface{}{
		"driver_id":        driverID.Hex(),
		"final_fare":       fare,
		"duration_minutes": minutes,
	})
	rider, _ := m.riders.GetByID(ctx, completed.RiderID)
	driver, _ := m.drivers.GetByID(ctx, driverID)
	m.publish(models.EventRideCompleted, completed, map[string]interface{}{
		"final_fare":     fare,
		"fare_breakdown": breakdown,
	}, rider, driver)

	return completed, nil
}

func (m *rideStateMachine) Cancel(ctx context.Context, rideID, actorID primitive.ObjectID, reason string) (*models.Ride, error) {
	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRideNotFound)
	}

	for attempt := 0; attempt < cancelRetries; attempt++ {
		if ride.Status.IsTerminal() {
			return nil, utils.NewTerminalStateError(utils.MsgRideTerminal)
		}

		var actor models.CancelActor
		switch {
		case ride.RiderID == actorID:
			actor = models.CancelActorRider
		case ride.DriverID != nil && *ride.DriverID == actorID:
			actor = models.CancelActorDriver
		default:
			return nil, utils.NewUnauthorizedError(utils.MsgNotParticipant)
		}

		cancelled, applied, err := m.cancelObserved(ctx, ride, actor, &actorID, reason)
		if err != nil {
			return nil, err
		}
		if applied {
			return cancelled, nil
		}
		ride = cancelled
	}
	return nil, utils.NewConflictError("ride changed concurrently")
}

func (m *rideStateMachine) Expire(ctx context.Context, rideID primitive.ObjectID, reason string) (*models.Ride, bool, error) {
	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, false, lookupError(err, utils.MsgRideNotFound)
	}
	if ride.Status != models.RideStatusRequested || ride.DriverID != nil {
		return ride, false, nil
	}
	return m.cancelObserved(ctx, ride, models.CancelActorSystem, nil, reason)
}

// cancelObserved cancels the ride only if it is still in the status and
// driver binding that was observed, so a driver bound in between is never
// left pointing at a cancelled ride.
func (m *rideStateMachine) cancelObserved(ctx context.Context, observed *models.Ride, actor models.CancelActor, actorID *primitive.ObjectID, reason string) (*models.Ride, bool, error) {
	cond := models.RideCondition{Statuses: []models.RideStatus{observed.Status}}
	if observed.DriverID == nil {
		cond.Unassigned = true
	} else {
		cond.DriverID = observed.DriverID
	}

	now := m.fares.Now()
	cancelled, applied, err := m.rides.ConditionalUpdate(ctx, observed.ID, cond, models.RideUpdate{
		Status:             models.RideStatusCancelled,
		ClearDriver:        true,
		CancelledAt:        &now,
		CancelledBy:        actor,
		CancelledByID:      actorID,
		CancellationReason: reason,
	})
	if err != nil {
		return nil, false, utils.NewInternalError("failed to cancel ride", err)
	}
	if !applied {
		return cancelled, false, nil
	}

	var driver *models.Driver
	if observed.DriverID != nil {
		if released, err := m.drivers.Release(ctx, *observed.DriverID, observed.ID, false, 0); err != nil || !released {
			m.logger.WithError(err).WithRideID(observed.ID).WithDriverID(*observed.DriverID).Warn("Driver was not bound to cancelled ride")
		}
		driver, _ = m.drivers.GetByID(ctx, *observed.DriverID)
	}
	if released, err := m.riders.ReleaseActiveRide(ctx, observed.RiderID, observed.ID, false, 0); err != nil || !released {
		m.logger.WithError(err).WithRideID(observed.ID).Warn("Rider was not bound to cancelled ride")
	}

	m.logger.LogRideEvent(observed.ID, string(models.EventRideCancelled), map[string]interface{}{
		"cancelled_by": actor,
		"reason":       reason,
		"from_status":  observed.Status,
	})
	rider, _ := m.riders.GetByID(ctx, observed.RiderID)
	m.publish(models.EventRideCancelled, cancelled, map[string]interface{}{
		"cancelled_by": actor,
		"reason":       reason,
	}, rider, driver)

	return cancelled, true, nil
}

func (m *rideStateMachine) Rate(ctx context.Context, rideID, riderID primitive.ObjectID, rating float64, comment string) (*models.Ride, error) {
	if rating < utils.MinRating || rating > utils.MaxRating {
		return nil, utils.NewValidationError(utils.MsgValidationFailed, map[string]string{
			"rating": "Rating must be between 1.0 and 5.0",
		})
	}

	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRideNotFound)
	}
	if err := checkRating(ride, riderID); err != nil {
		return nil, err
	}

	now := m.fares.Now()
	rated, applied, err := m.rides.ConditionalUpdate(ctx, rideID,
		models.RideCondition{Statuses: []models.RideStatus{models.RideStatusCompleted}, Unrated: true},
		models.RideUpdate{DriverRating: &rating, RatingComment: comment, RatedAt: &now},
	)
	if err != nil {
		return nil, utils.NewInternalError("failed to rate ride", err)
	}
	if !applied {
		if err := checkRating(rated, riderID); err != nil {
			return nil, err
		}
		return nil, utils.NewConflictError("ride changed concurrently")
	}

	driver, err := m.foldDriverRating(ctx, *rated.DriverID, rating)
	if err != nil {
		m.logger.WithError(err).WithRideID(rideID).WithDriverID(*rated.DriverID).Error("Failed to update driver rating")
	}

	m.logger.LogRideEvent(rideID, string(models.EventRideRated), map[string]interface{}{
		"driver_id": rated.DriverID.Hex(),
		"rating":    rating,
	})
	rider, _ := m.riders.GetByID(ctx, rated.RiderID)
	m.publish(models.EventRideRated, rated, map[string]interface{}{
		"rating": rating,
	}, rider, driver)

	return rated, nil
}

// checkRating classifies why the rider may not rate the ride as it is.
func checkRating(ride *models.Ride, riderID primitive.ObjectID) error {
	if ride.RiderID != riderID {
		return utils.NewUnauthorizedError(utils.MsgNotParticipant)
	}
	if ride.Status != models.RideStatusCompleted || ride.DriverID == nil {
		return utils.NewStateError(fmt.Sprintf("ride is %s, only completed rides can be rated", ride.Status))
	}
	if ride.DriverRating != nil {
		return utils.NewConflictError(utils.MsgRideRated)
	}
	return nil
}

// foldDriverRating adds one rating to the driver's running average, retrying
// when a concurrent rating moved the count first.
func (m *rideStateMachine) foldDriverRating(ctx context.Context, driverID primitive.ObjectID, rating float64) (*models.Driver, error) {
	for attempt := 0; attempt < ratingRetries; attempt++ {
		driver, err := m.drivers.GetByID(ctx, driverID)
		if err != nil {
			return nil, err
		}
		average := runningAverage(driver.Rating, driver.RatingCount, rating)
		applied, err := m.drivers.ApplyRating(ctx, driverID, driver.RatingCount, average)
		if err != nil {
			return nil, err
		}
		if applied {
			driver.Rating = average
			driver.RatingCount++
			return driver, nil
		}
	}
	return nil, fmt.Errorf("driver rating changed %d times concurrently", ratingRetries)
}

// runningAverage replaces the profile rating with the first real rating and
// averages the rest, rounded to two decimals.
func runningAverage(current float64, count int64, rating float64) float64 {
	if count <= 0 {
		return math.Round(rating*100) / 100
	}
	total := current*float64(count) + rating
	return math.Round(total/float64(count+1)*100) / 100
}

func (m *rideStateMachine) Get(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, lookupError(err, utils.MsgRideNotFound)
	}
	return ride, nil
}

func (m *rideStateMachine) AuthorizeUser(ctx context.Context, ride *models.Ride, userID primitive.ObjectID) error {
	rider, err := m.riders.GetByID(ctx, ride.RiderID)
	if err == nil && rider.UserID == userID {
		return nil
	}
	if ride.DriverID != nil {
		driver, err := m.drivers.GetByID(ctx, *ride.DriverID)
		if err == nil && driver.UserID == userID {
			return nil
		}
	}
	return utils.NewUnauthorizedError(utils.MsgNotParticipant)
}

func (m *rideStateMachine) ActiveRide(ctx context.Context, riderID, driverID *primitive.ObjectID) (*models.Ride, error) {
	var (
		ride *models.Ride
		err  error
	)
	switch {
	case riderID != nil:
		ride, err = m.rides.GetActiveByRider(ctx, *riderID)
	case driverID != nil:
		ride, err = m.rides.GetActiveByDriver(ctx, *driverID)
	default:
		return nil, utils.NewValidationError("rider_id or driver_id is required", nil)
	}
	if err != nil {
		return nil, lookupError(err, "no active ride")
	}
	return ride, nil
}

func (m *rideStateMachine) History(ctx context.Context, filter models.RideHistoryFilter) ([]*models.Ride, int64, error) {
	if filter.RiderID == nil && filter.DriverID == nil {
		return nil, 0, utils.NewValidationError("rider_id or driver_id is required", nil)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, utils.NewValidationError("invalid status filter", nil)
	}
	if filter.Limit <= 0 || filter.Limit > utils.MaxPageSize {
		filter.Limit = utils.DefaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	rides, total, err := m.rides.List(ctx, filter)
	if err != nil {
		return nil, 0, utils.NewInternalError("failed to load ride history", err)
	}
	return rides, total, nil
}

// publish sends a ride event to the ride room and to the personal channel
// of every participant that was loaded.
func (m *rideStateMachine) publish(eventType models.EventType, ride *models.Ride, data map[string]interface{}, rider *models.Rider, driver *models.Driver) {
	if m.events == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["ride_id"] = ride.ID.Hex()
	data["status"] = ride.Status
	data["rider_id"] = ride.RiderID.Hex()

	channels := []string{models.RideChannel(ride.ID.Hex())}
	if rider != nil {
		channels = append(channels, models.UserChannel(rider.UserID.Hex()))
	}
	if driver != nil {
		channels = append(channels, models.UserChannel(driver.UserID.Hex()))
	}
	m.events.Publish(models.NewEvent(eventType, ride.ID.Hex(), data), channels...)
}

// checkDriverTransition classifies why a driver-driven transition from the
// expected status is not allowed.
func checkDriverTransition(ride *models.Ride, driverID primitive.ObjectID, expected models.RideStatus) error {
	if ride.Status != expected {
		return utils.NewStateError(fmt.Sprintf("ride is %s, expected %s", ride.Status, expected))
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return utils.NewUnauthorizedError("driver is not assigned to this ride")
	}
	return nil
}

func lookupError(err error, notFoundMsg string) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return utils.NewNotFoundError(notFoundMsg)
	}
	return utils.NewInternalError("failed to load record", err)
}
