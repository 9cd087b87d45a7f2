package routes

import (
	handlers "goride/internal/handlers/shared"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up the ride lifecycle routes. auth is applied to the
// whole group; pass middleware.Identity so disabled auth still works.
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, auth gin.HandlerFunc) {
	rides := r.Group("/rides")
	rides.Use(auth)
	{
		rides.POST("", rideHandler.RequestRide)
		rides.POST("/estimate", rideHandler.EstimateFare)
		rides.POST("/nearby-drivers", rideHandler.NearbyDrivers)

		// Lookups
		rides.GET("/active", rideHandler.GetActiveRide)
		rides.GET("/history", rideHandler.GetRideHistory)
		rides.GET("/:id", rideHandler.GetRide)

		// Transitions
		rides.POST("/:id/accept", rideHandler.AcceptRide)
		rides.POST("/:id/start", rideHandler.StartRide)
		rides.POST("/:id/complete", rideHandler.CompleteRide)
		rides.POST("/:id/cancel", rideHandler.CancelRide)
		rides.POST("/:id/rate", rideHandler.RateRide)
	}
}

// SetupDriverRoutes sets up driver profile, availability and pull dispatch routes
func SetupDriverRoutes(r *gin.RouterGroup, driverHandler *handlers.DriverHandler, auth gin.HandlerFunc) {
	drivers := r.Group("/drivers")
	drivers.Use(auth)
	{
		drivers.POST("", driverHandler.CreateDriver)
		drivers.GET("/:id", driverHandler.GetDriver)
		drivers.POST("/:id/online", driverHandler.GoOnline)
		drivers.POST("/:id/offline", driverHandler.GoOffline)
		drivers.PUT("/:id/location", driverHandler.UpdateLocation)
		drivers.GET("/:id/available-rides", driverHandler.GetAvailableRides)
	}
}

func SetupRiderRoutes(r *gin.RouterGroup, riderHandler *handlers.RiderHandler, auth gin.HandlerFunc) {
	riders := r.Group("/riders")
	riders.Use(auth)
	{
		riders.POST("", riderHandler.CreateRider)
		riders.GET("/:id", riderHandler.GetRider)
		riders.PUT("/:id/location", riderHandler.UpdateLocation)
	}
}
