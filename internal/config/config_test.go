package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeakBands(t *testing.T) {
	bands, err := ParsePeakBands("7-9, 17-19")
	require.NoError(t, err)
	assert.Equal(t, []PeakBand{{StartHour: 7, EndHour: 9}, {StartHour: 17, EndHour: 19}}, bands)

	assert.True(t, bands[0].Contains(7))
	assert.True(t, bands[0].Contains(9))
	assert.False(t, bands[0].Contains(10))

	for _, raw := range []string{"7", "9-7", "a-b", "22-24", "-1-3"} {
		_, err := ParsePeakBands(raw)
		assert.Error(t, err, raw)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DispatchModePush, cfg.Dispatch.Mode)
	assert.Equal(t, 10.0, cfg.Dispatch.SearchRadiusKm)
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, 10, cfg.Dispatch.AvailableRideCap)
	assert.Equal(t, StoreMongoDB, cfg.Store.Driver)
	assert.Len(t, cfg.Pricing.PeakBands, 2)
	assert.Equal(t, 0.2, cfg.Pricing.PeakIncrement)
	assert.Equal(t, -1, cfg.Database.MigrateDownTo)
}

func TestLoad_MigrateDown(t *testing.T) {
	t.Setenv("MONGODB_MIGRATE_DOWN_TO", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Database.MigrateDownTo)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DISPATCH_MODE", "pull")
	t.Setenv("DISPATCH_SEARCH_RADIUS_KM", "4.5")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("GEO_INDEX", "memory")
	t.Setenv("PRICING_PEAK_BANDS", "6-8")
	t.Setenv("PRICING_ECONOMY_PER_KM", "2.0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DispatchModePull, cfg.Dispatch.Mode)
	assert.Equal(t, 4.5, cfg.Dispatch.SearchRadiusKm)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, []PeakBand{{StartHour: 6, EndHour: 8}}, cfg.Pricing.PeakBands)
	assert.Equal(t, 2.0, cfg.Pricing.Rates["economy"].PerKm)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown mode", map[string]string{"DISPATCH_MODE": "auction"}},
		{"cap out of range", map[string]string{"DISPATCH_AVAILABLE_RIDE_CAP": "50"}},
		{"redis index without redis", map[string]string{"GEO_INDEX": "redis"}},
		{"auth without secret", map[string]string{"AUTH_ENABLED": "true"}},
		{"bad peak band", map[string]string{"PRICING_PEAK_BANDS": "20-10"}},
		{"rollback without mongo", map[string]string{"MONGODB_MIGRATE_DOWN_TO": "0", "STORE_DRIVER": "memory"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
