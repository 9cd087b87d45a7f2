package validators

import (
	"testing"

	"goride/internal/models"
	"goride/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validRideRequest() *RideRequestRequest {
	return &RideRequestRequest{
		RiderID:     primitive.NewObjectID().Hex(),
		Pickup:      &models.Point{Lat: 40.7, Lng: -74.0},
		Destination: &models.Point{Lat: 40.8, Lng: -73.9},
		RideClass:   "economy",
	}
}

func TestValidateRideRequest(t *testing.T) {
	req := validRideRequest()
	assert.Empty(t, ValidateRideRequest(req))
	assert.Equal(t, 1, req.PassengerCount, "passenger count defaults to one")

	tests := []struct {
		name   string
		mutate func(*RideRequestRequest)
		field  string
	}{
		{"missing rider", func(r *RideRequestRequest) { r.RiderID = "" }, "rider_id"},
		{"bad rider id", func(r *RideRequestRequest) { r.RiderID = "xyz" }, "rider_id"},
		{"missing destination", func(r *RideRequestRequest) { r.Destination = nil }, "destination"},
		{"bad longitude", func(r *RideRequestRequest) { r.Destination.Lng = -181 }, "destination.lng"},
		{"bad class", func(r *RideRequestRequest) { r.RideClass = "limo" }, "ride_class"},
		{"negative passengers", func(r *RideRequestRequest) { r.PassengerCount = -2 }, "passenger_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRideRequest()
			tt.mutate(req)
			errs := ValidateRideRequest(req)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs.Details(), tt.field)
		})
	}
}

func TestValidationErrors_AppError(t *testing.T) {
	var none ValidationErrors
	assert.NoError(t, none.AppError())

	errs := ValidateRideComplete(&RideCompleteRequest{DriverID: primitive.NewObjectID().Hex(), FinalFare: ptr(-1.0)})
	err := errs.AppError()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.Contains(t, utils.AsAppError(err).Details, "final_fare")

	assert.Empty(t, ValidateRideComplete(&RideCompleteRequest{DriverID: primitive.NewObjectID().Hex()}))
	assert.Empty(t, ValidateRideComplete(&RideCompleteRequest{DriverID: primitive.NewObjectID().Hex(), FinalFare: ptr(0.0)}))
}

func TestValidateRideHistoryQuery(t *testing.T) {
	id := primitive.NewObjectID().Hex()

	assert.Empty(t, ValidateRideHistoryQuery(&RideHistoryQuery{RiderID: id}))
	assert.Empty(t, ValidateRideHistoryQuery(&RideHistoryQuery{DriverID: id, Status: "COMPLETED"}))
	assert.NotEmpty(t, ValidateRideHistoryQuery(&RideHistoryQuery{}))
	assert.NotEmpty(t, ValidateRideHistoryQuery(&RideHistoryQuery{RiderID: id, DriverID: id}))
	assert.NotEmpty(t, ValidateRideHistoryQuery(&RideHistoryQuery{RiderID: id, Status: "DONE"}))
}

func TestValidateLocationUpdate(t *testing.T) {
	assert.Empty(t, ValidateLocationUpdate(&LocationUpdateRequest{Lat: ptr(0.0), Lng: ptr(0.0)}))

	errs := ValidateLocationUpdate(&LocationUpdateRequest{Lng: ptr(10.0)})
	assert.Contains(t, errs.Details(), "lat")

	errs = ValidateLocationUpdate(&LocationUpdateRequest{Lat: ptr(-90.5), Lng: ptr(10.0)})
	assert.Contains(t, errs.Details(), "lat")

	req := &LocationUpdateRequest{Lat: ptr(1.25), Lng: ptr(-2.5), Address: "Pier 39"}
	assert.Equal(t, models.Point{Lat: 1.25, Lng: -2.5, Address: "Pier 39"}, req.Point())
}

func TestValidateProfiles(t *testing.T) {
	userID := primitive.NewObjectID().Hex()

	assert.Empty(t, ValidateDriverRegistration(&DriverRegistrationRequest{UserID: userID, Name: "D", VehicleClass: "van"}))
	errs := ValidateDriverRegistration(&DriverRegistrationRequest{UserID: userID, Name: "D", VehicleClass: "bike", Rating: 0.5})
	assert.Contains(t, errs.Details(), "vehicle_class")
	assert.Contains(t, errs.Details(), "rating")

	assert.Empty(t, ValidateRiderRegistration(&RiderRegistrationRequest{UserID: userID, Name: "R", Rating: 4.5}))
	assert.Contains(t, ValidateRiderRegistration(&RiderRegistrationRequest{UserID: userID}).Details(), "name")

	assert.Empty(t, ValidateDriverOnline(&DriverOnlineRequest{}))
	assert.NotEmpty(t, ValidateDriverOnline(&DriverOnlineRequest{Location: &models.Point{Lat: 100}}))
}

func TestValidateRideRating(t *testing.T) {
	riderID := primitive.NewObjectID().Hex()

	assert.Empty(t, ValidateRideRating(&RideRatingRequest{RiderID: riderID, Rating: 1}))
	assert.Empty(t, ValidateRideRating(&RideRatingRequest{RiderID: riderID, Rating: 4.5, Comment: "great"}))
	assert.Contains(t, ValidateRideRating(&RideRatingRequest{RiderID: riderID, Rating: 5.5}).Details(), "rating")
	assert.Contains(t, ValidateRideRating(&RideRatingRequest{RiderID: riderID}).Details(), "rating")
	assert.Contains(t, ValidateRideRating(&RideRatingRequest{RiderID: "x", Rating: 3}).Details(), "rider_id")
}

func TestValidateNearbyDrivers(t *testing.T) {
	assert.Empty(t, ValidateNearbyDrivers(&NearbyDriversRequest{Lat: ptr(0), Lng: ptr(0)}))
	assert.Empty(t, ValidateNearbyDrivers(&NearbyDriversRequest{Lat: ptr(1), Lng: ptr(2), RideClass: "xl", RadiusKm: 3}))

	assert.Contains(t, ValidateNearbyDrivers(&NearbyDriversRequest{Lng: ptr(0)}).Details(), "lat")
	assert.Contains(t, ValidateNearbyDrivers(&NearbyDriversRequest{Lat: ptr(0), Lng: ptr(0), RideClass: "limo"}).Details(), "ride_class")
	assert.Contains(t, ValidateNearbyDrivers(&NearbyDriversRequest{Lat: ptr(0), Lng: ptr(0), RadiusKm: 80}).Details(), "radius_km")

	req := &NearbyDriversRequest{Lat: ptr(1.5), Lng: ptr(-2)}
	assert.Equal(t, models.Point{Lat: 1.5, Lng: -2}, req.Point())
}

func ptr(v float64) *float64 {
	return &v
}
