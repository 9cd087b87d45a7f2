package services

import (
	"context"
	"time"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"
	"goride/pkg/logger"
)

const sweepBatchSize = 100

// RequestSweeper expires ride requests nobody took within the configured
// timeout. In push mode it also retries dispatch for the requests that are
// still young enough.
type RequestSweeper struct {
	rides    interfaces.RideRepository
	machine  RideStateMachine
	dispatch DispatchEngine
	config   *config.DispatchConfig
	now      func() time.Time
	logger   *logger.Logger
}

func NewRequestSweeper(
	cfg *config.DispatchConfig,
	rides interfaces.RideRepository,
	machine RideStateMachine,
	dispatch DispatchEngine,
	now func() time.Time,
	log *logger.Logger,
) *RequestSweeper {
	if now == nil {
		now = time.Now
	}
	return &RequestSweeper{
		rides:    rides,
		machine:  machine,
		dispatch: dispatch,
		config:   cfg,
		now:      now,
		logger:   log,
	}
}

func (s *RequestSweeper) Run(ctx context.Context) {
	interval := s.config.SweepInterval
	if interval <= 0 {
		interval = utils.RequestSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.Sweep(ctx); err != nil {
				s.logger.WithError(err).Warn("Ride request sweep failed")
			}
		}
	}
}

// Sweep runs one pass and reports how many requests were expired and how
// many were re-dispatched to a driver.
func (s *RequestSweeper) Sweep(ctx context.Context) (expired int, assigned int, err error) {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = utils.RideRequestTimeout
	}
	now := s.now()

	stale, err := s.rides.FindRequestedBefore(ctx, now.Add(-timeout), sweepBatchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, ride := range stale {
		_, applied, err := s.machine.Expire(ctx, ride.ID, utils.ReasonNoDriverFound)
		if err != nil {
			s.logger.WithError(err).WithRideID(ride.ID).Warn("Failed to expire ride request")
			continue
		}
		if applied {
			expired++
		}
	}

	if s.dispatch == nil || s.dispatch.Mode() != config.DispatchModePush {
		return expired, 0, nil
	}

	waiting, err := s.rides.FindRequestedBefore(ctx, now, sweepBatchSize)
	if err != nil {
		return expired, 0, err
	}
	for _, ride := range waiting {
		if ride.DriverID != nil {
			continue
		}
		result, err := s.dispatch.Dispatch(ctx, ride)
		if err != nil {
			s.logger.WithError(err).WithRideID(ride.ID).Warn("Re-dispatch failed")
			continue
		}
		if result.Status == models.RideStatusAccepted {
			assigned++
		}
	}

	if expired > 0 || assigned > 0 {
		s.logger.WithFields(map[string]interface{}{
			"expired":  expired,
			"assigned": assigned,
		}).Info("Ride request sweep finished")
	}
	return expired, assigned, nil
}
