package config

import (
	"rtb-engine/internal/config/components"
)

// Wrapper gives read access to each configuration component.
type Wrapper interface {
	GetMQTTConfig() components.MQTTConfigImpl
	GetPostgresConfig() components.PostgresConfigImpl
	GetInfluxConfig() components.InfluxConfigImpl
	GetLoggerConfig() components.LoggerConfigImpl
	GetServiceConfig() components.ServiceConfigImpl
	GetRangingConfig() components.RangingConfigImpl
}

func (c *Config) GetMQTTConfig() components.MQTTConfigImpl {
	return c.MQTT
}

func (c *Config) GetPostgresConfig() components.PostgresConfigImpl {
	return c.Postgres
}

func (c *Config) GetInfluxConfig() components.InfluxConfigImpl {
	return c.InfluxDB
}

func (c *Config) GetLoggerConfig() components.LoggerConfigImpl {
	return c.Logger
}

func (c *Config) GetServiceConfig() components.ServiceConfigImpl {
	return c.Service
}

func (c *Config) GetRangingConfig() components.RangingConfigImpl {
	return c.Ranging
}

var _ Wrapper = (*Config)(nil)
