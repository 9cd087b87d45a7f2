package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	"goride/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEstimator struct {
	eta int
	err error
}

func (s stubEstimator) PickupETA(context.Context, Location, Location) (int, error) {
	return s.eta, s.err
}

func TestHaversineEstimator(t *testing.T) {
	// Next door: floored at the minimum.
	eta, err := HaversineEstimator{}.PickupETA(context.Background(), Location{0, 0}, Location{0, 0.001})
	require.NoError(t, err)
	assert.Equal(t, 3, eta)

	// ~10 km at 30 km/h is 20 minutes plus the buffer.
	eta, err = HaversineEstimator{}.PickupETA(context.Background(), Location{0, 0}, Location{0, 0.09})
	require.NoError(t, err)
	assert.Equal(t, 22, eta)
}

func TestFallbackEstimator(t *testing.T) {
	ok := NewFallbackEstimator(stubEstimator{eta: 7}, time.Second, logger.Nop())
	eta, err := ok.PickupETA(context.Background(), Location{0, 0}, Location{0, 0.09})
	require.NoError(t, err)
	assert.Equal(t, 7, eta)

	failing := NewFallbackEstimator(stubEstimator{err: errors.New("quota")}, time.Second, logger.Nop())
	eta, err = failing.PickupETA(context.Background(), Location{0, 0}, Location{0, 0.09})
	require.NoError(t, err)
	assert.Equal(t, 22, eta)

	none := NewFallbackEstimator(nil, time.Second, logger.Nop())
	eta, err = none.PickupETA(context.Background(), Location{0, 0}, Location{0, 0.001})
	require.NoError(t, err)
	assert.Equal(t, 3, eta)
}
