package components

import (
	"github.com/joho/godotenv"
	"rtb-engine/internal/config/shared"
	"rtb-engine/internal/interfaces"
	"strings"
)

type InfluxConfig interface {
	interfaces.Config
	GetUrl() string
}

type InfluxConfigImpl struct {
	// Enabled turns on the result history; without it nothing connects to
	// InfluxDB.
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Token         string `json:"-"`
	Organization  string `json:"organization"`
	Bucket        string `json:"bucket"`
	Measurement   string `json:"measurement"`
	BatchSize     int    `json:"batch_size"`
	FlushInterval int    `json:"flush_interval_seconds"`
}

func NewInfluxConfig() InfluxConfigImpl {
	config := InfluxConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (I *InfluxConfigImpl) Load() {
	_ = godotenv.Load()

	I.Enabled = shared.GetEnvAsBool("INFLUXDB_ENABLED", false)
	I.URL = shared.GetEnv("INFLUXDB_URL")
	I.Token = shared.GetEnv("INFLUXDB_TOKEN")
	I.Organization = shared.GetEnv("INFLUXDB_ORG")
	I.Bucket = shared.GetEnv("INFLUXDB_BUCKET")
	I.Measurement = shared.GetEnv("INFLUXDB_MEASUREMENT")
	I.BatchSize = shared.GetEnvAsInt("INFLUXDB_BATCH_SIZE")
	I.FlushInterval = shared.GetEnvAsInt("INFLUXDB_FLUSH_INTERVAL")
}

func (I *InfluxConfigImpl) SetDefaults() {
	if I.URL == "" {
		I.URL = "http://localhost:8086"
	}
	if I.Organization == "" {
		I.Organization = "rtb"
	}
	if I.Bucket == "" {
		I.Bucket = "ranging"
	}
	if I.Measurement == "" {
		I.Measurement = "ranging_result"
	}
	if I.BatchSize <= 0 {
		I.BatchSize = 100
	}
	if I.FlushInterval <= 0 {
		I.FlushInterval = 10
	}
}

func (I *InfluxConfigImpl) Validate() error {
	if !I.Enabled {
		return nil
	}
	if I.URL == "" {
		return shared.NewConfigError("influx", "url", nil, "is required")
	}
	if !strings.HasPrefix(I.URL, "http://") && !strings.HasPrefix(I.URL, "https://") {
		return shared.NewConfigError("influx", "url", I.URL, "must start with http:// or https://")
	}
	if I.Token == "" {
		return shared.NewConfigError("influx", "token", nil, "is required")
	}
	if I.Organization == "" {
		return shared.NewConfigError("influx", "organization", nil, "is required")
	}
	if I.Bucket == "" {
		return shared.NewConfigError("influx", "bucket", nil, "is required")
	}
	if I.BatchSize <= 0 {
		return shared.NewConfigError("influx", "batch_size", I.BatchSize, "must be greater than 0")
	}
	if I.FlushInterval < 1 || I.FlushInterval > 60 {
		return shared.NewConfigError("influx", "flush_interval_seconds", I.FlushInterval, "must be between 1 and 60")
	}

	return nil
}

func (I *InfluxConfigImpl) GetUrl() string {
	return I.URL
}

var _ InfluxConfig = (*InfluxConfigImpl)(nil)
