package components

import (
	"fmt"
	"github.com/joho/godotenv"
	"rtb-engine/internal/config/shared"
	"rtb-engine/internal/interfaces"
	"time"
)

type PostgresConfig interface {
	interfaces.Config
	GetDsn() string
}

type PostgresConfigImpl struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"-"`
	Database        string        `json:"database"`
	SSLMode         string        `json:"ssl_mode"`
	TimeZone        string        `json:"timezone"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	// Notify enables the NOTIFY listener that republishes result changes.
	Notify bool `json:"notify"`
}

func NewPostgresConfig() PostgresConfigImpl {
	config := PostgresConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (P *PostgresConfigImpl) Load() {
	_ = godotenv.Load()

	P.Host = shared.GetEnv("POSTGRES_HOST")
	P.Port = shared.GetEnvAsInt("POSTGRES_PORT")
	P.User = shared.GetEnv("POSTGRES_USER")
	P.Password = shared.GetEnv("POSTGRES_PASSWORD")
	P.Database = shared.GetEnv("POSTGRES_DB")
	P.SSLMode = shared.GetEnv("POSTGRES_SSL_MODE")
	P.TimeZone = shared.GetEnv("TZ")
	P.MaxOpenConns = shared.GetEnvAsInt("POSTGRES_MAX_OPEN_CONNS")
	P.MaxIdleConns = shared.GetEnvAsInt("POSTGRES_MAX_IDLE_CONNS")
	P.ConnMaxLifetime = shared.GetEnvAsDuration("POSTGRES_CONN_MAX_LIFETIME")
	P.Notify = shared.GetEnvAsBool("POSTGRES_NOTIFY", true)
}

func (P *PostgresConfigImpl) SetDefaults() {
	if P.Host == "" {
		P.Host = "localhost"
	}
	if P.Port == 0 {
		P.Port = 5432
	}
	if P.User == "" {
		P.User = "postgres"
	}
	if P.Database == "" {
		P.Database = "rtb"
	}
	if P.SSLMode == "" || P.SSLMode == "false" {
		P.SSLMode = "disable"
	}
	if P.SSLMode == "true" {
		P.SSLMode = "require"
	}
	if P.TimeZone == "" {
		P.TimeZone = "UTC"
	}
	if P.MaxOpenConns <= 0 {
		P.MaxOpenConns = 25
	}
	if P.MaxIdleConns <= 0 {
		P.MaxIdleConns = 5
	}
	if P.ConnMaxLifetime <= 0 {
		P.ConnMaxLifetime = 5 * time.Minute
	}
}

func (P *PostgresConfigImpl) Validate() error {
	if P.Host == "" {
		return shared.NewConfigError("postgres", "host", nil, "is required")
	}
	if P.Port <= 0 || P.Port > 65535 {
		return shared.NewConfigError("postgres", "port", P.Port, "must be between 1 and 65535")
	}
	if P.User == "" {
		return shared.NewConfigError("postgres", "user", nil, "is required")
	}
	if P.Database == "" {
		return shared.NewConfigError("postgres", "database", nil, "is required")
	}
	switch P.SSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return shared.NewConfigError("postgres", "ssl_mode", P.SSLMode, "must be one of: disable, require, verify-ca, verify-full")
	}
	if P.MaxIdleConns > P.MaxOpenConns {
		return shared.NewConfigError("postgres", "max_idle_conns", P.MaxIdleConns, "cannot exceed max_open_conns")
	}
	return nil
}

func (P *PostgresConfigImpl) GetDsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&TimeZone=%s", P.User, P.Password, P.Host, P.Port, P.Database, P.SSLMode, P.TimeZone)
}

var _ PostgresConfig = (*PostgresConfigImpl)(nil)
