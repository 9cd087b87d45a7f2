package services

import (
	"testing"
	"time"
	_ "time/tzdata"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFareCalculator(t *testing.T, at time.Time) *FareCalculator {
	t.Helper()
	calc, err := NewFareCalculator(config.DefaultPricingConfig())
	require.NoError(t, err)
	calc.SetClock(func() time.Time { return at })
	return calc
}

func TestFareCalculator_Estimate(t *testing.T) {
	calc := newTestFareCalculator(t, offPeakWednesday)

	fare, err := calc.Estimate(10.0, models.RideClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 17.50, fare)

	fare, err = calc.Estimate(1.0, models.RideClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 5.00, fare, "short trips are floored at the minimum fare")

	fare, err = calc.Estimate(0, models.RideClassXL)
	require.NoError(t, err)
	assert.Equal(t, 10.00, fare)
}

func TestFareCalculator_EstimateAppliesSurge(t *testing.T) {
	peak := time.Date(2025, time.January, 15, 8, 30, 0, 0, time.UTC)
	calc := newTestFareCalculator(t, peak)

	fare, err := calc.Estimate(10.0, models.RideClassEconomy)
	require.NoError(t, err)
	assert.InDelta(t, 21.00, fare, 1e-9)
}

func TestFareCalculator_SurgeMultiplier(t *testing.T) {
	calc := newTestFareCalculator(t, offPeakWednesday)

	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"weekday midday", time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC), 1.0},
		{"morning band start", time.Date(2025, 1, 15, 7, 0, 0, 0, time.UTC), 1.2},
		{"morning band end is inclusive", time.Date(2025, 1, 15, 9, 59, 0, 0, time.UTC), 1.2},
		{"after morning band", time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), 1.0},
		{"evening band", time.Date(2025, 1, 15, 19, 15, 0, 0, time.UTC), 1.2},
		{"saturday midday", time.Date(2025, 1, 18, 12, 0, 0, 0, time.UTC), 1.1},
		{"sunday evening peak", time.Date(2025, 1, 19, 18, 0, 0, 0, time.UTC), 1.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.SurgeMultiplier(tt.at), 1e-9)
		})
	}
}

func TestFareCalculator_SurgeUsesConfiguredTimezone(t *testing.T) {
	pricing := config.DefaultPricingConfig()
	pricing.Timezone = "America/New_York"
	calc, err := NewFareCalculator(pricing)
	require.NoError(t, err)

	// 13:00 UTC is 08:00 in New York in January
	assert.InDelta(t, 1.2, calc.SurgeMultiplier(time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC)), 1e-9)
}

func TestFareCalculator_InvalidTimezone(t *testing.T) {
	pricing := config.DefaultPricingConfig()
	pricing.Timezone = "Not/AZone"
	_, err := NewFareCalculator(pricing)
	assert.Error(t, err)
}

func TestFareCalculator_Finalize(t *testing.T) {
	calc := newTestFareCalculator(t, offPeakWednesday)
	started := offPeakWednesday
	completed := started.Add(12 * time.Minute)

	breakdown, err := calc.Finalize(8.0, 12, models.RideClassEconomy, started, completed)
	require.NoError(t, err)
	assert.Equal(t, 2.50, breakdown.BaseFare)
	assert.Equal(t, 12.00, breakdown.DistanceFare)
	assert.Equal(t, 1.80, breakdown.TimeFare)
	assert.Equal(t, 1.0, breakdown.SurgeMultiplier)
	assert.Equal(t, 5.00, breakdown.MinimumFare)
	assert.Equal(t, 16.30, breakdown.Total)
}

func TestFareCalculator_FinalizeUsesSurgeAtStart(t *testing.T) {
	calc := newTestFareCalculator(t, offPeakWednesday)
	started := time.Date(2025, 1, 15, 9, 50, 0, 0, time.UTC)

	breakdown, err := calc.Finalize(8.0, 12, models.RideClassEconomy, started, started.Add(12*time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 1.2, breakdown.SurgeMultiplier, 1e-9)
	assert.InDelta(t, 19.56, breakdown.Total, 1e-9)
}

func TestFareCalculator_BreakdownDiscountIsFloored(t *testing.T) {
	calc := newTestFareCalculator(t, offPeakWednesday)

	breakdown, err := calc.Breakdown(8.0, 12, models.RideClassEconomy, offPeakWednesday, 3)
	require.NoError(t, err)
	assert.InDelta(t, 13.30, breakdown.Total, 1e-9)

	breakdown, err = calc.Breakdown(8.0, 12, models.RideClassEconomy, offPeakWednesday, 50)
	require.NoError(t, err)
	assert.Equal(t, 5.00, breakdown.Total)
}

func TestFareCalculator_EstimateRideXLPassengers(t *testing.T) {
	calc := newTestFareCalculator(t, offPeakWednesday)

	single, err := calc.EstimateRide(10, models.RideClassXL, 1)
	require.NoError(t, err)
	assert.Equal(t, 33.00, single.EstimatedFare)

	group, err := calc.EstimateRide(10, models.RideClassXL, 3)
	require.NoError(t, err)
	assert.InDelta(t, 39.60, group.EstimatedFare, 1e-9)
	assert.Equal(t, 20, group.EstimatedDuration)
	assert.Equal(t, "USD", group.Currency)

	economy, err := calc.EstimateRide(10, models.RideClassEconomy, 3)
	require.NoError(t, err)
	assert.Equal(t, 17.50, economy.EstimatedFare, "only xl rides pay per extra passenger")
}

func TestFareCalculator_RejectsBadInput(t *testing.T) {
	calc := newTestFareCalculator(t, offPeakWednesday)

	_, err := calc.Estimate(5, models.RideClass("rickshaw"))
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = calc.Estimate(-1, models.RideClassEconomy)
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = calc.Finalize(5, -3, models.RideClassEconomy, offPeakWednesday, offPeakWednesday)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
