package config

import "fmt"

const (
	StoreMongoDB = "mongodb"
	StoreMemory  = "memory"

	GeoIndexRepository = "repository"
	GeoIndexRedis      = "redis"
	GeoIndexMemory     = "memory"
)

type StoreConfig struct {
	Driver   string `yaml:"driver"`
	GeoIndex string `yaml:"geo_index"`
}

func loadStoreConfig() *StoreConfig {
	return &StoreConfig{
		Driver:   getEnv("STORE_DRIVER", StoreMongoDB),
		GeoIndex: getEnv("GEO_INDEX", GeoIndexRepository),
	}
}

func (s *StoreConfig) Validate() error {
	switch s.Driver {
	case StoreMongoDB, StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", s.Driver)
	}
	switch s.GeoIndex {
	case GeoIndexRepository, GeoIndexRedis, GeoIndexMemory:
	default:
		return fmt.Errorf("unsupported GEO_INDEX %q", s.GeoIndex)
	}
	return nil
}
