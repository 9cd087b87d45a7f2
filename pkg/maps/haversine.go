package maps

import (
	"context"
	"time"

	"goride/internal/utils"
	"goride/pkg/logger"
)

// HaversineEstimator assumes straight-line travel at city speed.
type HaversineEstimator struct{}

func (HaversineEstimator) PickupETA(_ context.Context, from, to Location) (int, error) {
	distance := utils.CalculateDistance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return utils.EstimatePickupETAMinutes(distance), nil
}

// FallbackEstimator asks the primary estimator under a deadline and falls
// back to straight-line estimates when it fails.
type FallbackEstimator struct {
	primary  ETAEstimator
	fallback ETAEstimator
	timeout  time.Duration
	logger   *logger.Logger
}

func NewFallbackEstimator(primary ETAEstimator, timeout time.Duration, log *logger.Logger) *FallbackEstimator {
	return &FallbackEstimator{
		primary:  primary,
		fallback: HaversineEstimator{},
		timeout:  timeout,
		logger:   log,
	}
}

func (f *FallbackEstimator) PickupETA(ctx context.Context, from, to Location) (int, error) {
	if f.primary != nil {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		eta, err := f.primary.PickupETA(callCtx, from, to)
		if err == nil {
			return eta, nil
		}
		f.logger.WithError(err).Warn("Routing ETA failed, using straight-line estimate")
	}
	return f.fallback.PickupETA(ctx, from, to)
}
