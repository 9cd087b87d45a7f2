package utils

import "time"

const (
	AppName    = "GoRide"
	AppVersion = "1.0.0"

	DefaultCurrency = "USD"
	DefaultTimeZone = "UTC"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Dispatch
	DefaultSearchRadius     = 10.0 // kilometers
	MaxSearchRadius         = 50.0 // kilometers
	DefaultDispatchAttempts = 3
	DefaultCandidateLimit   = 20
	DefaultAvailableRides   = 10
	MinAvailableRides       = 5
	MaxAvailableRides       = 20
	DefaultJitterPct        = 0.1
	RideRequestTimeout      = 5 * time.Minute
	RequestSweepInterval    = 30 * time.Second
	DefaultMaxPassengers    = 6
	AverageCitySpeedKMH     = 30.0
	MinPickupETAMinutes     = 3
	PickupETABufferMinutes  = 2
	MinTripDurationMinutes  = 5
	DefaultNearbyRadius     = 5.0 // kilometers
	MaxNearbyDrivers        = 10

	// Ratings
	MinRating = 1.0
	MaxRating = 5.0

	// JWT
	JWTAccessTokenTTL = 24 * time.Hour
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	MsgInternalServer    = "internal server error"
	MsgUnauthorized      = "unauthorized"
	MsgForbidden         = "forbidden"
	MsgValidationFailed  = "validation failed"
	MsgRideNotFound      = "ride not found"
	MsgDriverNotFound    = "driver not found"
	MsgRiderNotFound     = "rider not found"
	MsgRideTaken         = "ride is no longer open for assignment"
	MsgActiveRideExists  = "rider already has an active ride"
	MsgDriverBusy        = "driver has an active ride"
	MsgNotParticipant    = "actor is not a participant of this ride"
	MsgDriverUnavailable = "driver is not available"
	MsgRideTerminal      = "ride is already completed or cancelled"
	MsgRideRated         = "ride has already been rated"
)

// Redis keys and channels
const (
	DriverGeoKey       = "geo:drivers"
	EventBridgeChannel = "goride:events"
)

// System actor values
const (
	ReasonNoDriverFound = "no_driver_found"
)
