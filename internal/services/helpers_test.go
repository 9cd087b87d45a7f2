package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/repositories/memory"
	"goride/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// offPeakWednesday is outside every default surge band.
var offPeakWednesday = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

type recordedEvent struct {
	event    *models.Event
	channels []string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(event *models.Event, channels ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{event: event, channels: channels})
}

func (p *recordingPublisher) ofType(t models.EventType) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, e := range p.events {
		if e.event.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	rides    *memory.RideRepository
	drivers  *memory.DriverRepository
	riders   *memory.RiderRepository
	fares    *FareCalculator
	clock    *testClock
	events   *recordingPublisher
	geo      GeospatialIndex
	machine  RideStateMachine
	dispatch DispatchEngine
	driverSv DriverService
	riderSv  RiderService
	config   *config.DispatchConfig
}

func testDispatchConfig(mode string) *config.DispatchConfig {
	return &config.DispatchConfig{
		Mode:             mode,
		SearchRadiusKm:   10,
		MaxAttempts:      3,
		CandidateLimit:   20,
		AvailableRideCap: 10,
		JitterPct:        0.1,
		JitterSeed:       42,
		RequestTimeout:   5 * time.Minute,
		SweepInterval:    30 * time.Second,
		MaxPassengers:    6,
	}
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()

	fares, err := NewFareCalculator(config.DefaultPricingConfig())
	require.NoError(t, err)
	clock := &testClock{now: offPeakWednesday}
	fares.SetClock(clock.Now)

	h := &harness{
		rides:   memory.NewRideRepository(),
		drivers: memory.NewDriverRepository(),
		riders:  memory.NewRiderRepository(),
		fares:   fares,
		clock:   clock,
		events:  &recordingPublisher{},
		config:  testDispatchConfig(mode),
	}
	log := logger.Nop()
	h.geo = NewRepositoryGeoIndex(h.drivers)
	h.machine = NewRideStateMachine(h.rides, h.drivers, h.riders, fares, h.events, nil, 6, log)
	h.dispatch = NewDispatchEngine(h.config, h.machine, h.geo, h.rides, h.drivers, h.events, NewJitteredNearest(42, 0.1), log)
	h.driverSv = NewDriverService(h.drivers, h.rides, h.riders, h.geo, h.events, log)
	h.riderSv = NewRiderService(h.riders, h.rides, h.drivers, h.events, log)
	return h
}

func (h *harness) addRider(t *testing.T) *models.Rider {
	t.Helper()
	rider, err := h.riderSv.CreateRider(context.Background(), &CreateRiderRequest{
		UserID: primitive.NewObjectID(),
		Name:   "rider",
	})
	require.NoError(t, err)
	return rider
}

func (h *harness) addDriver(t *testing.T, vehicle models.VehicleClass, lat, lng float64) *models.Driver {
	t.Helper()
	ctx := context.Background()
	driver, err := h.driverSv.CreateDriver(ctx, &CreateDriverRequest{
		UserID:       primitive.NewObjectID(),
		Name:         "driver",
		VehicleClass: vehicle,
		Rating:       4.8,
	})
	require.NoError(t, err)
	driver, err = h.driverSv.GoOnline(ctx, driver.ID, &models.Point{Lat: lat, Lng: lng})
	require.NoError(t, err)
	return driver
}

func (h *harness) createRide(t *testing.T, riderID primitive.ObjectID, class models.RideClass) *models.Ride {
	t.Helper()
	ride, err := h.machine.Create(context.Background(), &CreateRideRequest{
		RiderID:        riderID,
		Pickup:         models.Point{Lat: 0, Lng: 0},
		Destination:    models.Point{Lat: 0, Lng: 0.09},
		RideClass:      class,
		PassengerCount: 1,
	})
	require.NoError(t, err)
	return ride
}
