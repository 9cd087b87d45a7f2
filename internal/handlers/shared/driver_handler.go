package handlers

import (
	"goride/internal/models"
	"goride/internal/services"
	"goride/internal/utils"
	"goride/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverHandler struct {
	drivers  services.DriverService
	dispatch services.DispatchEngine
}

func NewDriverHandler(drivers services.DriverService, dispatch services.DispatchEngine) *DriverHandler {
	return &DriverHandler{
		drivers:  drivers,
		dispatch: dispatch,
	}
}

// CreateDriver registers the dispatch profile of an existing account
func (h *DriverHandler) CreateDriver(c *gin.Context) {
	var req validators.DriverRegistrationRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateDriverRegistration(&req)) {
		return
	}

	userID := bodyObjectID(req.UserID)
	if !requireOwner(c, userID) {
		return
	}

	driver, err := h.drivers.CreateDriver(c.Request.Context(), &services.CreateDriverRequest{
		UserID:       userID,
		Name:         req.Name,
		VehicleClass: models.VehicleClass(req.VehicleClass),
		Rating:       req.Rating,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, "Driver created successfully", driver)
}

func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, ok := h.loadOwned(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "Driver retrieved successfully", driver)
}

func (h *DriverHandler) GoOnline(c *gin.Context) {
	driver, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var req validators.DriverOnlineRequest
	if !bindJSON(c, &req, true) {
		return
	}
	if rejectInvalid(c, validators.ValidateDriverOnline(&req)) {
		return
	}

	driver, err := h.drivers.GoOnline(c.Request.Context(), driver.ID, req.Location)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Driver is online", driver)
}

func (h *DriverHandler) GoOffline(c *gin.Context) {
	driver, ok := h.loadOwned(c)
	if !ok {
		return
	}

	driver, err := h.drivers.GoOffline(c.Request.Context(), driver.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Driver is offline", driver)
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	driverID, ok := paramObjectID(c, "id", "driver")
	if !ok {
		return
	}
	var req validators.LocationUpdateRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateLocationUpdate(&req)) {
		return
	}
	if !h.owns(c, driverID) {
		return
	}

	driver, err := h.drivers.UpdateLocation(c.Request.Context(), driverID, req.Point())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", driver)
}

// GetAvailableRides lists open requests near the driver for pull dispatch
func (h *DriverHandler) GetAvailableRides(c *gin.Context) {
	driver, ok := h.loadOwned(c)
	if !ok {
		return
	}

	rides, err := h.dispatch.ListAvailableRides(c.Request.Context(), driver.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Available rides retrieved successfully", rides, &utils.Meta{
		Count: len(rides),
	})
}

func (h *DriverHandler) loadOwned(c *gin.Context) (*models.Driver, bool) {
	driverID, ok := paramObjectID(c, "id", "driver")
	if !ok {
		return nil, false
	}
	driver, err := h.drivers.GetDriver(c.Request.Context(), driverID)
	if err != nil {
		utils.HandleError(c, err)
		return nil, false
	}
	if !requireOwner(c, driver.UserID) {
		return nil, false
	}
	return driver, true
}

func (h *DriverHandler) owns(c *gin.Context, driverID primitive.ObjectID) bool {
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
