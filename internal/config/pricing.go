package config

import (
	"fmt"
	"strconv"
	"strings"

	"goride/internal/models"
)

// PeakBand is an inclusive range of local hours, e.g. 7-9.
type PeakBand struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

func (b PeakBand) Contains(hour int) bool {
	return hour >= b.StartHour && hour <= b.EndHour
}

type PricingConfig struct {
	Rates              map[models.RideClass]models.FareRate `yaml:"rates"`
	PeakBands          []PeakBand                           `yaml:"peak_bands"`
	PeakIncrement      float64                              `yaml:"peak_increment"`
	WeekendIncrement   float64                              `yaml:"weekend_increment"`
	ExtraPassengerRate float64                              `yaml:"extra_passenger_rate"`
	Timezone           string                               `yaml:"timezone"`
	Currency           string                               `yaml:"currency"`
}

// DefaultRates mirrors the published rate card.
func DefaultRates() map[models.RideClass]models.FareRate {
	return map[models.RideClass]models.FareRate{
		models.RideClassEconomy: {BaseFare: 2.50, PerKm: 1.50, PerMinute: 0.15, MinimumFare: 5.00},
		models.RideClassComfort: {BaseFare: 3.00, PerKm: 1.80, PerMinute: 0.20, MinimumFare: 6.00},
		models.RideClassPremium: {BaseFare: 4.50, PerKm: 2.50, PerMinute: 0.30, MinimumFare: 8.00},
		models.RideClassXL:      {BaseFare: 5.00, PerKm: 2.80, PerMinute: 0.35, MinimumFare: 10.00},
	}
}

func DefaultPricingConfig() *PricingConfig {
	return &PricingConfig{
		Rates:              DefaultRates(),
		PeakBands:          []PeakBand{{StartHour: 7, EndHour: 9}, {StartHour: 17, EndHour: 19}},
		PeakIncrement:      0.2,
		WeekendIncrement:   0.1,
		ExtraPassengerRate: 0.1,
		Timezone:           "UTC",
		Currency:           "USD",
	}
}

func loadPricingConfig() (*PricingConfig, error) {
	cfg := DefaultPricingConfig()

	for class, rate := range cfg.Rates {
		prefix := "PRICING_" + strings.ToUpper(string(class)) + "_"
		rate.BaseFare = getEnvAsFloat64(prefix+"BASE_FARE", rate.BaseFare)
		rate.PerKm = getEnvAsFloat64(prefix+"PER_KM", rate.PerKm)
		rate.PerMinute = getEnvAsFloat64(prefix+"PER_MINUTE", rate.PerMinute)
		rate.MinimumFare = getEnvAsFloat64(prefix+"MINIMUM_FARE", rate.MinimumFare)
		cfg.Rates[class] = rate
	}

	if raw := getEnv("PRICING_PEAK_BANDS", ""); raw != "" {
		bands, err := ParsePeakBands(raw)
		if err != nil {
			return nil, err
		}
		cfg.PeakBands = bands
	}

	cfg.PeakIncrement = getEnvAsFloat64("PRICING_PEAK_INCREMENT", cfg.PeakIncrement)
	cfg.WeekendIncrement = getEnvAsFloat64("PRICING_WEEKEND_INCREMENT", cfg.WeekendIncrement)
	cfg.ExtraPassengerRate = getEnvAsFloat64("PRICING_EXTRA_PASSENGER_RATE", cfg.ExtraPassengerRate)
	cfg.Timezone = getEnv("PRICING_TIMEZONE", getEnv("APP_TIMEZONE", cfg.Timezone))
	cfg.Currency = getEnv("APP_CURRENCY", cfg.Currency)

	return cfg, nil
}

// ParsePeakBands parses "7-9,17-19".
func ParsePeakBands(raw string) ([]PeakBand, error) {
	var bands []PeakBand
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid peak band %q", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid peak band %q: %w", part, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid peak band %q: %w", part, err)
		}
		if start < 0 || end > 23 || start > end {
			return nil, fmt.Errorf("invalid peak band %q", part)
		}
		bands = append(bands, PeakBand{StartHour: start, EndHour: end})
	}
	return bands, nil
}
