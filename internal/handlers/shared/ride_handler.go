package handlers

import (
	"goride/internal/models"
	"goride/internal/services"
	"goride/internal/utils"
	"goride/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	dispatch services.DispatchEngine
	machine  services.RideStateMachine
	fares    *services.FareCalculator
	drivers  services.DriverService
	riders   services.RiderService
}

func NewRideHandler(
	dispatch services.DispatchEngine,
	machine services.RideStateMachine,
	fares *services.FareCalculator,
	drivers services.DriverService,
	riders services.RiderService,
) *RideHandler {
	return &RideHandler{
		dispatch: dispatch,
		machine:  machine,
		fares:    fares,
		drivers:  drivers,
		riders:   riders,
	}
}

// RequestRide creates a ride and hands it to the dispatch engine
func (h *RideHandler) RequestRide(c *gin.Context) {
	var req validators.RideRequestRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateRideRequest(&req)) {
		return
	}

	riderID := bodyObjectID(req.RiderID)
	if !h.ownsRider(c, riderID) {
		return
	}

	ride, err := h.dispatch.RequestRide(c.Request.Context(), &services.CreateRideRequest{
		RiderID:        riderID,
		Pickup:         *req.Pickup,
		Destination:    *req.Destination,
		RideClass:      models.RideClass(req.RideClass),
		PassengerCount: req.PassengerCount,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride requested successfully", ride)
}

// EstimateFare prices a trip without creating a ride
func (h *RideHandler) EstimateFare(c *gin.Context) {
	var req validators.FareEstimateRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateFareEstimate(&req)) {
		return
	}

	distance := utils.CalculateDistance(req.Pickup.Lat, req.Pickup.Lng, req.Destination.Lat, req.Destination.Lng)
	estimate, err := h.fares.EstimateRide(distance, models.RideClass(req.RideClass), req.PassengerCount)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Fare estimated successfully", estimate)
}

// NearbyDrivers lists available drivers around a pickup point
func (h *RideHandler) NearbyDrivers(c *gin.Context) {
	var req validators.NearbyDriversRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateNearbyDrivers(&req)) {
		return
	}

	drivers, err := h.dispatch.NearbyDrivers(c.Request.Context(), req.Point(), models.RideClass(req.RideClass), req.RadiusKm)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Nearby drivers retrieved successfully", drivers)
}

func (h *RideHandler) AcceptRide(c *gin.Context) {
	rideID, ok := paramObjectID(c, "id", "ride")
	if !ok {
		return
	}
	var req validators.RideDriverActionRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateRideDriverAction(&req)) {
		return
	}

	driverID := bodyObjectID(req.DriverID)
	if !h.ownsDriver(c, driverID) {
		return
	}

	ride, err := h.dispatch.AcceptRide(c.Request.Context(), rideID, driverID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride accepted successfully", ride)
}

func (h *RideHandler) StartRide(c *gin.Context) {
	rideID, ok := paramObjectID(c, "id", "ride")
	if !ok {
		return
	}
	var req validators.RideDriverActionRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateRideDriverAction(&req)) {
		return
	}

	driverID := bodyObjectID(req.DriverID)
	if !h.ownsDriver(c, driverID) {
		return
	}

	ride, err := h.machine.Start(c.Request.Context(), rideID, driverID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride started successfully", ride)
}

func (h *RideHandler) CompleteRide(c *gin.Context) {
	rideID, ok := paramObjectID(c, "id", "ride")
	if !ok {
		return
	}
	var req validators.RideCompleteRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateRideComplete(&req)) {
		return
	}

	driverID := bodyObjectID(req.DriverID)
	if !h.ownsDriver(c, driverID) {
		return
	}

	ride, err := h.machine.Complete(c.Request.Context(), rideID, driverID, req.FinalFare)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride completed successfully", ride)
}

// CancelRide accepts either participant's profile id as the actor
func (h *RideHandler) CancelRide(c *gin.Context) {
	rideID, ok := paramObjectID(c, "id", "ride")
	if !ok {
		return
	}
	var req validators.RideCancelRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateRideCancel(&req)) {
		return
	}

	actorID := bodyObjectID(req.ActorID)
	if !h.ownsActor(c, actorID) {
		return
	}

	ride, err := h.machine.Cancel(c.Request.Context(), rideID, actorID, req.Reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride cancelled successfully", ride)
}

// RateRide lets the rider rate the driver of a completed ride once
func (h *RideHandler) RateRide(c *gin.Context) {
	rideID, ok := paramObjectID(c, "id", "ride")
	if !ok {
		return
	}
	var req validators.RideRatingRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateRideRating(&req)) {
		return
	}

	riderID := bodyObjectID(req.RiderID)
	if !h.ownsRider(c, riderID) {
		return
	}

	ride, err := h.machine.Rate(c.Request.Context(), rideID, riderID, req.Rating, req.Comment)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride rated successfully", ride)
}

// GetRide returns a ride to its participants only
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := paramObjectID(c, "id", "ride")
	if !ok {
		return
	}

	ride, err := h.machine.Get(c.Request.Context(), rideID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	if uid, ok := callerID(c); ok {
		if err := h.machine.AuthorizeUser(c.Request.Context(), ride, uid); err != nil {
			utils.HandleError(c, err)
			return
		}
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

// GetActiveRide looks up the open ride of a rider or driver
func (h *RideHandler) GetActiveRide(c *gin.Context) {
	riderID, driverID, ok := h.participantQuery(c)
	if !ok {
		return
	}

	ride, err := h.machine.ActiveRide(c.Request.Context(), riderID, driverID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Active ride retrieved successfully", ride)
}

func (h *RideHandler) GetRideHistory(c *gin.Context) {
	riderID, driverID, ok := h.participantQuery(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.machine.History(c.Request.Context(), models.RideHistoryFilter{
		RiderID:  riderID,
		DriverID: driverID,
		Status:   models.RideStatus(c.Query("status")),
		Limit:    params.GetLimit(),
		Offset:   params.GetSkip(),
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Ride history retrieved successfully", rides, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(rides),
	})
}

// participantQuery reads rider_id or driver_id from the query string and
// checks the caller owns that profile.
func (h *RideHandler) participantQuery(c *gin.Context) (*primitive.ObjectID, *primitive.ObjectID, bool) {
	var query validators.RideHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return nil, nil, false
	}
	if rejectInvalid(c, validators.ValidateRideHistoryQuery(&query)) {
		return nil, nil, false
	}

	if query.RiderID != "" {
		riderID := bodyObjectID(query.RiderID)
		if !h.ownsRider(c, riderID) {
			return nil, nil, false
		}
		return &riderID, nil, true
	}

	driverID := bodyObjectID(query.DriverID)
	if !h.ownsDriver(c, driverID) {
		return nil, nil, false
	}
	return nil, &driverID, true
}

func (h *RideHandler) ownsRider(c *gin.Context, riderID primitive.ObjectID) bool {
	if _, ok := callerID(c); !ok {
		return requireOwner(c, primitive.NilObjectID)
	}
	rider, err := h.riders.GetRider(c.Request.Context(), riderID)
	if err != nil {
		utils.HandleError(c, err)
		return false
	}
	return requireOwner(c, rider.UserID)
}

func (h *RideHandler) ownsDriver(c *gin.Context, driverID primitive.ObjectID) bool {
	if _, ok := callerID(c); !ok {
		return requireOwner(c, primitive.NilObjectID)
	}
	driver, err := h.drivers.GetDriver(c.Request.Context(), driverID)
	if err != nil {
		utils.HandleError(c, err)
		return false
	}
	return requireOwner(c, driver.UserID)
}

// ownsActor resolves a cancel actor to whichever profile it names. An
// authenticated caller naming no known profile is refused.
func (h *RideHandler) ownsActor(c *gin.Context, actorID primitive.ObjectID) bool {
	if _, ok := callerID(c); !ok {
		return requireOwner(c, primitive.NilObjectID)
	}
	if rider, err := h.riders.GetRider(c.Request.Context(), actorID); err == nil {
		return requireOwner(c, rider.UserID)
	}
	if driver, err := h.drivers.GetDriver(c.Request.Context(), actorID); err == nil {
		return requireOwner(c, driver.UserID)
	}
	utils.ForbiddenResponse(c)
	return false
}
