package middleware

import (
	"net/http"
	"strings"

	"goride/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ContextUserID   = "user_id"
	ContextUserType = "user_type"
)

// AuthRequired middleware validates the bearer token and sets user context.
// Browsers cannot set headers on a websocket upgrade, so a token query
// parameter is accepted as well.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Bearer token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid token")
			c.Abort()
			return
		}

		if _, err := primitive.ObjectIDFromHex(claims.UserID); err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid user ID in token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserType, claims.UserType)

		c.Next()
	}
}

// DevIdentity stands in for AuthRequired when authentication is disabled.
// It trusts X-User-ID and X-User-Type, or the user_id and user_type query
// parameters, and leaves the context empty when neither is present.
func DevIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = c.Query("user_id")
		}
		userType := c.GetHeader("X-User-Type")
		if userType == "" {
			userType = c.Query("user_type")
		}

		if _, err := primitive.ObjectIDFromHex(userID); err == nil && userType != "" {
			c.Set(ContextUserID, userID)
			c.Set(ContextUserType, userType)
		}

		c.Next()
	}
}

// Identity picks AuthRequired or DevIdentity from configuration.
func Identity(authEnabled bool, secret string) gin.HandlerFunc {
	if authEnabled {
		return AuthRequired(secret)
	}
	return DevIdentity()
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			return "", false
		}
		return tokenString, true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
