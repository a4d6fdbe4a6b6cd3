package config

import (
	"errors"
	"rtb-engine/internal/config/components"
	"rtb-engine/internal/config/shared"
	"rtb-engine/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.GetUrl())
	assert.Equal(t, "rtb", cfg.MQTT.BaseTopic)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, components.StoreMemory, cfg.Ranging.StoreBackend)
	assert.False(t, cfg.InfluxDB.Enabled)

	opts, err := cfg.Ranging.Options()
	require.NoError(t, err)
	assert.Equal(t, models.PeerAddress(1), opts.LocalAddress)
	assert.Equal(t, 5, opts.MinSamples)
	assert.Equal(t, "average", opts.DefaultStrategy.Name())
	assert.Empty(t, opts.Strategies)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MQTT_BASE_TOPIC", "site-a/")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RTB_LOCAL_ADDRESS", "0x00000000000000AB")
	t.Setenv("RTB_MEASUREMENT_WINDOW", "2s")
	t.Setenv("RTB_STRATEGY", "median")
	t.Setenv("RTB_STRATEGY_PMU_RFR2", "min-var")
	t.Setenv("RTB_ANTENNA_THRESHOLD", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "site-a", cfg.MQTT.BaseTopic)
	assert.Equal(t, "debug", cfg.GetLoggerConfig().Level)

	opts, err := cfg.GetRangingConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, models.PeerAddress(0xAB), opts.LocalAddress)
	assert.Equal(t, 2*time.Second, opts.MeasurementWindow)
	assert.Equal(t, "median", opts.DefaultStrategy.Name())
	require.Contains(t, opts.Strategies, models.MethodPMURFR2)
	assert.Equal(t, "minvar", opts.Strategies[models.MethodPMURFR2].Name())
	assert.InDelta(t, 0.25, opts.AntennaThreshold, 1e-12)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		component string
		field     string
	}{
		{"broadcast address", "RTB_LOCAL_ADDRESS", "ffff", "ranging", "local_address"},
		{"bad address", "RTB_LOCAL_ADDRESS", "zz", "ranging", "local_address"},
		{"unknown strategy", "RTB_STRATEGY", "kalman", "ranging", "strategy"},
		{"unknown backend", "RTB_STORE_BACKEND", "redis", "ranging", "store_backend"},
		{"wildcard topic", "MQTT_BASE_TOPIC", "rtb/#", "mqtt", "base_topic"},
		{"log format", "LOG_FORMAT", "xml", "logger", "format"},
		{"feed path", "FEED_PATH", "confirms", "service", "feed_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)

			var configErr *shared.ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.component, configErr.Component)
			assert.Equal(t, tt.field, configErr.Field)
		})
	}
}

func TestPostgresValidatedOnlyWhenUsed(t *testing.T) {
	t.Setenv("POSTGRES_SSL_MODE", "sometimes")

	_, err := Load()
	require.NoError(t, err)

	t.Setenv("RTB_STORE_BACKEND", "postgres")
	_, err = Load()

	var configErr *shared.ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "postgres", configErr.Component)
	assert.Equal(t, "ssl_mode", configErr.Field)
}

func TestInfluxValidatedOnlyWhenEnabled(t *testing.T) {
	t.Setenv("INFLUXDB_URL", "localhost:8086")

	_, err := Load()
	require.NoError(t, err)

	t.Setenv("INFLUXDB_ENABLED", "true")
	t.Setenv("INFLUXDB_TOKEN", "secret")
	_, err = Load()

	var configErr *shared.ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "url", configErr.Field)
}

func TestPostgresDsn(t *testing.T) {
	cfg := components.PostgresConfigImpl{User: "rtb", Password: "pw", Host: "db", Database: "ranging"}
	cfg.SetDefaults()

	assert.Equal(t, "postgres://rtb:pw@db:5432/ranging?sslmode=disable&TimeZone=UTC", cfg.GetDsn())
	assert.NoError(t, cfg.Validate())
}

func TestConfigErrorMessage(t *testing.T) {
	err := shared.NewConfigError("mqtt", "port", 0, "must be between 1 and 65535")
	assert.Equal(t, "mqtt.port: must be between 1 and 65535 (got: 0)", err.Error())

	err = shared.NewConfigError("mqtt", "host", nil, "is required")
	assert.Equal(t, "mqtt.host: is required", err.Error())
}
