package handlers

import (
	"errors"
	"io"

	"goride/internal/middleware"
	"goride/internal/utils"
	"goride/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// bindJSON decodes the body into req. An empty body is accepted when
// optional is set.
func bindJSON(c *gin.Context, req interface{}, optional bool) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return false
	}
	return true
}

// rejectInvalid writes the validation envelope and reports whether it did.
func rejectInvalid(c *gin.Context, errs validators.ValidationErrors) bool {
	if len(errs) == 0 {
		return false
	}
	utils.ValidationErrorResponse(c, errs.Details())
	return true
}

func paramObjectID(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// bodyObjectID parses an id that already passed object_id validation.
func bodyObjectID(hex string) primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(hex)
	return id
}

// callerID returns the authenticated account, if the request carries one.
func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	raw := c.GetString(middleware.ContextUserID)
	if raw == "" {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// requireOwner rejects the request when an authenticated caller acts on a
// profile owned by another account. Anonymous callers only get this far
// when authentication is disabled.
func requireOwner(c *gin.Context, owner primitive.ObjectID) bool {
	if c.GetString(middleware.ContextUserID) == "" {
		return true
	}
	uid, ok := callerID(c)
	if !ok || uid != owner {
		utils.ForbiddenResponse(c)
		return false
	}
	return true
}
