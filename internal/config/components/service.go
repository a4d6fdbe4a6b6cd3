package components

import (
	"rtb-engine/internal/config/shared"
	"rtb-engine/internal/interfaces"
	"time"
)

type ServiceConfig interface {
	interfaces.Config
}

type ServiceConfigImpl struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// HTTPAddress serves /metrics and the confirmation feed; empty disables
	// the HTTP server.
	HTTPAddress     string        `json:"http_address"`
	FeedPath        string        `json:"feed_path"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

func NewServiceConfig() ServiceConfigImpl {
	config := ServiceConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (S *ServiceConfigImpl) Load() {
	S.Name = shared.GetEnv("SERVICE_NAME")
	S.Version = shared.GetEnv("SERVICE_VERSION")
	S.HTTPAddress = shared.GetEnv("HTTP_ADDRESS")
	S.FeedPath = shared.GetEnv("FEED_PATH")
	S.ShutdownTimeout = shared.GetEnvAsDuration("SHUTDOWN_TIMEOUT")
}

func (S *ServiceConfigImpl) SetDefaults() {
	if S.Name == "" {
		S.Name = "rtb-engine"
	}
	if S.Version == "" {
		S.Version = "1.0.0"
	}
	if S.HTTPAddress == "" {
		S.HTTPAddress = ":9102"
	}
	if S.FeedPath == "" {
		S.FeedPath = "/v1/confirms"
	}
	if S.ShutdownTimeout <= 0 {
		S.ShutdownTimeout = 10 * time.Second
	}
}

func (S *ServiceConfigImpl) Validate() error {
	if S.Name == "" {
		return shared.NewConfigError("service", "name", nil, "is required")
	}
	if S.Version == "" {
		return shared.NewConfigError("service", "version", nil, "is required")
	}
	if S.FeedPath == "" || S.FeedPath[0] != '/' {
		return shared.NewConfigError("service", "feed_path", S.FeedPath, "must start with /")
	}
	if S.FeedPath == "/metrics" {
		return shared.NewConfigError("service", "feed_path", S.FeedPath, "collides with the metrics endpoint")
	}
	if S.ShutdownTimeout <= 0 {
		return shared.NewConfigError("service", "shutdown_timeout", S.ShutdownTimeout, "must be greater than 0")
	}

	return nil
}

var _ ServiceConfig = (*ServiceConfigImpl)(nil)
