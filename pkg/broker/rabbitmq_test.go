package broker

import (
	"context"
	"testing"

	"goride/internal/models"
	"goride/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "ride.accepted", RoutingKey(models.EventRideAccepted))
	assert.Equal(t, "driver.location", RoutingKey(models.EventDriverLocation))
	assert.Equal(t, "dispatch.new_ride_request", RoutingKey(models.EventNewRideRequest))
}

func TestPublishWhenDisconnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &RabbitPublisher{ctx: ctx, cfg: Config{Exchange: "ride_events"}, log: logger.Nop()}
	err := r.Deliver(context.Background(), models.NewEvent(models.EventRideStarted, "r1", nil), []string{"ride:r1"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, r.IsAlive())
}
