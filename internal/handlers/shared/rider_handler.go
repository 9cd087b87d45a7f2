package handlers

import (
	"goride/internal/services"
	"goride/internal/utils"
	"goride/internal/validators"

	"github.com/gin-gonic/gin"
)

type RiderHandler struct {
	riders services.RiderService
}

func NewRiderHandler(riders services.RiderService) *RiderHandler {
	return &RiderHandler{
		riders: riders,
	}
}

func (h *RiderHandler) CreateRider(c *gin.Context) {
	var req validators.RiderRegistrationRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if rejectInvalid(c, validators.ValidateRiderRegistration(&req)) {
		return
	}

	userID := bodyObjectID(req.UserID)
	if !requireOwner(c, userID) {
		return
	}

	rider, err := h.riders.CreateRider(c.Request.Context(), &services.CreateRiderRequest{
		UserID: userID,
		Name:   req.Name,
		Rating: req.Rating,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, "Rider created successfully", rider)
}

func (h *RiderHandler) GetRider(c *gin.Context) {
	riderID, ok := paramObjectID(c, "id", "rider")
	if !ok {
		return
	}

	rider, err := h.riders.GetRider(c.Request.Context(), riderID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if !requireOwner(c, rider.UserID) {
		return
	}

	utils.SuccessResponse(c, "Rider retrieved successfully", rider)
}

func (h *RiderHandler) UpdateLocation(c *gin.Context) {
	riderID, ok := paramObjectID(c, "id", "rider")
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

	rider, err := h.riders.GetRider(c.Request.Context(), riderID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if !requireOwner(c, rider.UserID) {
		return
	}

	rider, err = h.riders.UpdateLocation(c.Request.Context(), riderID, req.Point())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", rider)
}
