package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/utils"
)

// FareCalculator prices rides from the configured rate card. Intermediate
// amounts are never rounded; only values handed back to callers are.
type FareCalculator struct {
	pricing  *config.PricingConfig
	location *time.Location

	mu  sync.RWMutex
	now func() time.Time
}

func NewFareCalculator(pricing *config.PricingConfig) (*FareCalculator, error) {
	if pricing == nil {
		pricing = config.DefaultPricingConfig()
	}
	loc, err := time.LoadLocation(pricing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing timezone %q: %w", pricing.Timezone, err)
	}
	return &FareCalculator{
		pricing:  pricing,
		location: loc,
		now:      time.Now,
	}, nil
}

// SetClock replaces the time source used for surge pricing and ride
// timestamps.
func (f *FareCalculator) SetClock(now func() time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *FareCalculator) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now()
}

func (f *FareCalculator) Currency() string {
	return f.pricing.Currency
}

func (f *FareCalculator) rate(class models.RideClass) (models.FareRate, error) {
	rate, ok := f.pricing.Rates[class]
	if !ok {
		return models.FareRate{}, utils.NewValidationError("unsupported ride class", map[string]string{
			"ride_class": string(class),
		})
	}
	return rate, nil
}

// SurgeMultiplier is 1.0 plus the peak increment when the local hour falls
// in a peak band, plus the weekend increment on Saturday and Sunday.
func (f *FareCalculator) SurgeMultiplier(at time.Time) float64 {
	local := at.In(f.location)
	multiplier := 1.0

	hour := local.Hour()
	for _, band := range f.pricing.PeakBands {
		if band.Contains(hour) {
			multiplier += f.pricing.PeakIncrement
			break
		}
	}

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		multiplier += f.pricing.WeekendIncrement
	}
	return multiplier
}

func (f *FareCalculator) estimate(distanceKm float64, class models.RideClass, at time.Time) (float64, float64, error) {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		return 0, 0, utils.NewValidationError("distance must not be negative", nil)
	}
	rate, err := f.rate(class)
	if err != nil {
		return 0, 0, err
	}
	surge := f.SurgeMultiplier(at)
	amount := math.Max(rate.MinimumFare, rate.BaseFare+distanceKm*rate.PerKm) * surge
	return amount, surge, nil
}

// Estimate returns max(minimum, base + distance*perKm) * surge(now).
func (f *FareCalculator) Estimate(distanceKm float64, class models.RideClass) (float64, error) {
	amount, _, err := f.estimate(distanceKm, class, f.Now())
	if err != nil {
		return 0, err
	}
	return utils.RoundMoney(amount), nil
}

// EstimateRide prices a prospective ride, applying the extra passenger
// increment for xl rides.
func (f *FareCalculator) EstimateRide(distanceKm float64, class models.RideClass, passengers int) (*models.FareEstimate, error) {
	amount, surge, err := f.estimate(distanceKm, class, f.Now())
	if err != nil {
		return nil, err
	}
	if class == models.RideClassXL && passengers > 1 {
		amount *= 1 + float64(passengers-1)*f.pricing.ExtraPassengerRate
	}

	return &models.FareEstimate{
		RideClass:         class,
		DistanceKm:        math.Round(distanceKm*100) / 100,
		EstimatedFare:     utils.RoundMoney(amount),
		EstimatedDuration: utils.EstimateTripDurationMinutes(distanceKm),
		SurgeMultiplier:   surge,
		Currency:          f.pricing.Currency,
	}, nil
}

// Finalize prices a finished ride. Surge is taken at the moment the ride
// started.
func (f *FareCalculator) Finalize(distanceKm, durationMinutes float64, class models.RideClass, startedAt, completedAt time.Time) (*models.FareBreakdown, error) {
	return f.Breakdown(distanceKm, durationMinutes, class, startedAt, 0)
}

// Breakdown itemises a final fare. The discount is taken off after surge
// and the result is floored at the minimum fare again.
func (f *FareCalculator) Breakdown(distanceKm, durationMinutes float64, class models.RideClass, startedAt time.Time, discount float64) (*models.FareBreakdown, error) {
	if distanceKm < 0 || durationMinutes < 0 {
		return nil, utils.NewValidationError("distance and duration must not be negative", nil)
	}
	if discount < 0 {
		return nil, utils.NewValidationError("discount must not be negative", nil)
	}
	rate, err := f.rate(class)
	if err != nil {
		return nil, err
	}

	distanceFare := distanceKm * rate.PerKm
	timeFare := durationMinutes * rate.PerMinute
	surge := f.SurgeMultiplier(startedAt)

	subtotal := math.Max(rate.MinimumFare, rate.BaseFare+distanceFare+timeFare)
	total := math.Max(rate.MinimumFare, subtotal*surge-discount)

	return &models.FareBreakdown{
		BaseFare:        utils.RoundMoney(rate.BaseFare),
		DistanceFare:    utils.RoundMoney(distanceFare),
		TimeFare:        utils.RoundMoney(timeFare),
		SurgeMultiplier: surge,
		Discount:        utils.RoundMoney(discount),
		MinimumFare:     utils.RoundMoney(rate.MinimumFare),
		Total:           utils.RoundMoney(total),
	}, nil
}
