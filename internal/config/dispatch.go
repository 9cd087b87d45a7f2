package config

import (
	"fmt"
	"time"
)

const (
	DispatchModePush = "push"
	DispatchModePull = "pull"
)

type DispatchConfig struct {
	Mode             string        `yaml:"mode"`
	SearchRadiusKm   float64       `yaml:"search_radius_km"`
	MaxAttempts      int           `yaml:"max_attempts"`
	CandidateLimit   int           `yaml:"candidate_limit"`
	AvailableRideCap int           `yaml:"available_ride_cap"`
	JitterPct        float64       `yaml:"jitter_pct"`
	JitterSeed       int64         `yaml:"jitter_seed"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	MaxPassengers    int           `yaml:"max_passengers"`
	EventQueueSize   int           `yaml:"event_queue_size"`
	EventWorkers     int           `yaml:"event_workers"`
}

func loadDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		Mode:             getEnv("DISPATCH_MODE", DispatchModePush),
		SearchRadiusKm:   getEnvAsFloat64("DISPATCH_SEARCH_RADIUS_KM", 10.0),
		MaxAttempts:      getEnvAsInt("DISPATCH_MAX_ATTEMPTS", 3),
		CandidateLimit:   getEnvAsInt("DISPATCH_CANDIDATE_LIMIT", 20),
		AvailableRideCap: getEnvAsInt("DISPATCH_AVAILABLE_RIDE_CAP", 10),
		JitterPct:        getEnvAsFloat64("DISPATCH_JITTER_PCT", 0.1),
		JitterSeed:       int64(getEnvAsInt("DISPATCH_JITTER_SEED", 0)),
		RequestTimeout:   getEnvAsDuration("DISPATCH_REQUEST_TIMEOUT", 5*time.Minute),
		SweepInterval:    getEnvAsDuration("DISPATCH_SWEEP_INTERVAL", 30*time.Second),
		MaxPassengers:    getEnvAsInt("DISPATCH_MAX_PASSENGERS", 6),
		EventQueueSize:   getEnvAsInt("EVENT_QUEUE_SIZE", 1024),
		EventWorkers:     getEnvAsInt("EVENT_WORKERS", 4),
	}
}

func (d *DispatchConfig) Validate() error {
	if d.Mode != DispatchModePush && d.Mode != DispatchModePull {
		return fmt.Errorf("unsupported DISPATCH_MODE %q", d.Mode)
	}
	if d.SearchRadiusKm <= 0 {
		return fmt.Errorf("DISPATCH_SEARCH_RADIUS_KM must be positive")
	}
	if d.MaxAttempts < 1 {
		return fmt.Errorf("DISPATCH_MAX_ATTEMPTS must be at least 1")
	}
	if d.AvailableRideCap < 5 || d.AvailableRideCap > 20 {
		return fmt.Errorf("DISPATCH_AVAILABLE_RIDE_CAP must be between 5 and 20")
	}
	if d.JitterPct < 0 || d.JitterPct >= 1 {
		return fmt.Errorf("DISPATCH_JITTER_PCT must be in [0, 1)")
	}
	return nil
}
