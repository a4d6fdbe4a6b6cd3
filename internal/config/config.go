package config

import (
	"fmt"
	"github.com/joho/godotenv"
	"rtb-engine/internal/config/components"
	"rtb-engine/internal/interfaces"
)

type Config struct {
	MQTT     components.MQTTConfigImpl     `json:"mqtt"`
	Postgres components.PostgresConfigImpl `json:"postgres"`
	InfluxDB components.InfluxConfigImpl   `json:"influxdb"`
	Logger   components.LoggerConfigImpl   `json:"logger"`
	Service  components.ServiceConfigImpl  `json:"service"`
	Ranging  components.RangingConfigImpl  `json:"ranging"`
}

// Load reads every component from the environment (and a .env file when
// present), applies defaults and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		MQTT:     components.NewMQTTConfig(),
		Postgres: components.NewPostgresConfig(),
		InfluxDB: components.NewInfluxConfig(),
		Logger:   components.NewLoggerConfig(),
		Service:  components.NewServiceConfig(),
		Ranging:  components.NewRangingConfig(),
	}

	return config, config.validate()
}

func (c *Config) validate() error {
	for _, component := range []interfaces.Config{
		&c.MQTT,
		&c.InfluxDB,
		&c.Logger,
		&c.Service,
		&c.Ranging,
	} {
		if err := component.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	// postgres settings only matter when something uses the database
	if c.Ranging.StoreBackend == components.StorePostgres {
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	return nil
}
