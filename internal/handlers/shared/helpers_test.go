package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"goride/internal/config"
	handlers "goride/internal/handlers/shared"
	"goride/internal/models"
	"goride/internal/repositories/memory"
	"goride/internal/services"
	"goride/internal/utils"
	"goride/pkg/logger"
	"goride/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

// offPeakWednesday is outside every default surge band.
var offPeakWednesday = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

type nopPublisher struct{}

func (nopPublisher) Publish(*models.Event, ...string) {}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *utils.APIError `json:"error"`
	Meta   *utils.Meta     `json:"meta"`
}

func buildTestRouter(t *testing.T, mode string, auth gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fares, err := services.NewFareCalculator(config.DefaultPricingConfig())
	require.NoError(t, err)
	fares.SetClock(func() time.Time { return offPeakWednesday })

	rides := memory.NewRideRepository()
	drivers := memory.NewDriverRepository()
	riders := memory.NewRiderRepository()
	log := logger.Nop()
	events := nopPublisher{}

	dispatchCfg := &config.DispatchConfig{
		Mode:             mode,
		SearchRadiusKm:   10,
		MaxAttempts:      3,
		CandidateLimit:   20,
		AvailableRideCap: 10,
		JitterSeed:       7,
		RequestTimeout:   5 * time.Minute,
		MaxPassengers:    6,
	}

	geoIndex := services.NewRepositoryGeoIndex(drivers)
	machine := services.NewRideStateMachine(rides, drivers, riders, fares, events, nil, dispatchCfg.MaxPassengers, log)
	dispatch := services.NewDispatchEngine(dispatchCfg, machine, geoIndex, rides, drivers, events, services.Nearest{}, log)
	driverService := services.NewDriverService(drivers, rides, riders, geoIndex, events, log)
	riderService := services.NewRiderService(riders, rides, drivers, events, log)

	r := gin.New()
	v1 := r.Group("/api/v1")
	routes.SetupRideRoutes(v1, handlers.NewRideHandler(dispatch, machine, fares, driverService, riderService), auth)
	routes.SetupDriverRoutes(v1, handlers.NewDriverHandler(driverService, dispatch), auth)
	routes.SetupRiderRoutes(v1, handlers.NewRiderHandler(riderService), auth)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func tokenFor(t *testing.T, userID primitive.ObjectID, userType string) string {
	t.Helper()
	token, err := utils.GenerateAccessToken(userID.Hex(), userType, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func createRider(t *testing.T, r *gin.Engine, userID primitive.ObjectID, token string) *models.Rider {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/v1/riders", map[string]any{
		"user_id": userID.Hex(),
		"name":    "Ada",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rider models.Rider
	decode(t, w, &rider)
	return &rider
}

// createOnlineDriver registers a driver and puts it online at lat/lng.
func createOnlineDriver(t *testing.T, r *gin.Engine, userID primitive.ObjectID, vehicle string, lat, lng float64, token string) *models.Driver {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/v1/drivers", map[string]any{
		"user_id":       userID.Hex(),
		"name":          "Linus",
		"vehicle_class": vehicle,
		"rating":        4.9,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var driver models.Driver
	decode(t, w, &driver)

	w = doRequest(r, http.MethodPost, "/api/v1/drivers/"+driver.ID.Hex()+"/online", map[string]any{
		"location": map[string]any{"lat": lat, "lng": lng},
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &driver)
	return &driver
}

func rideRequestBody(riderID primitive.ObjectID, class string) map[string]any {
	return map[string]any{
		"rider_id":    riderID.Hex(),
		"pickup":      map[string]any{"lat": 0, "lng": 0},
		"destination": map[string]any{"lat": 0, "lng": 0.09},
		"ride_class":  class,
	}
}
