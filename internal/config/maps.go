package config

import "time"

type MapsConfig struct {
	Provider       string            `yaml:"provider"`
	GoogleMaps     *GoogleMapsConfig `yaml:"google_maps"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
}

type GoogleMapsConfig struct {
	APIKey string `yaml:"api_key"`
}

// Enabled reports whether pickup ETAs should come from the routing provider
// instead of straight-line estimates.
func (m *MapsConfig) Enabled() bool {
	return m.Provider == "google" && m.GoogleMaps != nil && m.GoogleMaps.APIKey != ""
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		Provider: getEnv("MAPS_PROVIDER", "haversine"),
		GoogleMaps: &GoogleMapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		RequestTimeout: getEnvAsDuration("MAPS_REQUEST_TIMEOUT", 2*time.Second),
	}
}
