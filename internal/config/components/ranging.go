package components

import (
	"github.com/joho/godotenv"
	"rtb-engine/internal/config/shared"
	"rtb-engine/internal/interfaces"
	"rtb-engine/internal/models"
	"rtb-engine/internal/ranging"
	"time"
)

type RangingConfig interface {
	interfaces.Config
	Options() (ranging.Options, error)
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type RangingConfigImpl struct {
	LocalAddress      string        `json:"local_address"`
	ResponseTimeout   time.Duration `json:"response_timeout"`
	MeasurementWindow time.Duration `json:"measurement_window"`
	MeasurementGuard  time.Duration `json:"measurement_guard"`
	MinSamples        int           `json:"min_samples"`
	Strategy          string        `json:"strategy"`
	// StrategyPMU233R and StrategyPMURFR2 override Strategy per method.
	StrategyPMU233R  string        `json:"strategy_pmu_233r"`
	StrategyPMURFR2  string        `json:"strategy_pmu_rfr2"`
	AntennaThreshold float64       `json:"antenna_threshold"`
	DQFThreshold     int           `json:"dqf_threshold"`
	QualityScale     float64       `json:"quality_scale"`
	StoreBackend     string        `json:"store_backend"`
	StoreTimeout     time.Duration `json:"store_timeout"`
}

func NewRangingConfig() RangingConfigImpl {
	config := RangingConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (R *RangingConfigImpl) Load() {
	_ = godotenv.Load()

	R.LocalAddress = shared.GetEnv("RTB_LOCAL_ADDRESS")
	R.ResponseTimeout = shared.GetEnvAsDuration("RTB_RESPONSE_TIMEOUT")
	R.MeasurementWindow = shared.GetEnvAsDuration("RTB_MEASUREMENT_WINDOW")
	R.MeasurementGuard = shared.GetEnvAsDuration("RTB_MEASUREMENT_GUARD")
	R.MinSamples = shared.GetEnvAsInt("RTB_MIN_SAMPLES")
	R.Strategy = shared.GetEnv("RTB_STRATEGY")
	R.StrategyPMU233R = shared.GetEnv("RTB_STRATEGY_PMU_233R")
	R.StrategyPMURFR2 = shared.GetEnv("RTB_STRATEGY_PMU_RFR2")
	R.AntennaThreshold = shared.GetEnvAsFloat("RTB_ANTENNA_THRESHOLD")
	R.DQFThreshold = shared.GetEnvAsInt("RTB_DQF_THRESHOLD")
	R.QualityScale = shared.GetEnvAsFloat("RTB_QUALITY_SCALE")
	R.StoreBackend = shared.GetEnv("RTB_STORE_BACKEND")
	R.StoreTimeout = shared.GetEnvAsDuration("RTB_STORE_TIMEOUT")
}

func (R *RangingConfigImpl) SetDefaults() {
	defaults := ranging.DefaultOptions()

	if R.LocalAddress == "" {
		R.LocalAddress = "0001"
	}
	if R.ResponseTimeout <= 0 {
		R.ResponseTimeout = defaults.ResponseTimeout
	}
	if R.MeasurementWindow <= 0 {
		R.MeasurementWindow = defaults.MeasurementWindow
	}
	if R.MeasurementGuard <= 0 {
		R.MeasurementGuard = defaults.MeasurementGuard
	}
	if R.MinSamples <= 0 {
		R.MinSamples = defaults.MinSamples
	}
	if R.Strategy == "" {
		R.Strategy = defaults.DefaultStrategy.Name()
	}
	if R.AntennaThreshold <= 0 {
		R.AntennaThreshold = defaults.AntennaThreshold
	}
	if R.DQFThreshold <= 0 {
		R.DQFThreshold = int(defaults.DQFThreshold)
	}
	if R.QualityScale <= 0 {
		R.QualityScale = defaults.QualityScale
	}
	if R.StoreBackend == "" {
		R.StoreBackend = StoreMemory
	}
	if R.StoreTimeout <= 0 {
		R.StoreTimeout = defaults.StoreTimeout
	}
}

func (R *RangingConfigImpl) Validate() error {
	address, err := models.ParsePeerAddress(R.LocalAddress)
	if err != nil {
		return shared.NewConfigError("ranging", "local_address", R.LocalAddress, err.Error())
	}
	if address == 0 || address == models.BroadcastAddress {
		return shared.NewConfigError("ranging", "local_address", R.LocalAddress, "must be a unicast address")
	}
	if R.ResponseTimeout <= 0 {
		return shared.NewConfigError("ranging", "response_timeout", R.ResponseTimeout, "must be greater than 0")
	}
	if R.MeasurementWindow <= 0 {
		return shared.NewConfigError("ranging", "measurement_window", R.MeasurementWindow, "must be greater than 0")
	}
	if R.MeasurementGuard < 0 {
		return shared.NewConfigError("ranging", "measurement_guard", R.MeasurementGuard, "cannot be negative")
	}
	if R.MinSamples < 2 {
		return shared.NewConfigError("ranging", "min_samples", R.MinSamples, "must be at least 2")
	}
	for field, name := range map[string]string{
		"strategy":          R.Strategy,
		"strategy_pmu_233r": R.StrategyPMU233R,
		"strategy_pmu_rfr2": R.StrategyPMURFR2,
	} {
		if name == "" && field != "strategy" {
			continue
		}
		if _, err := ranging.StrategyByName(name); err != nil {
			return shared.NewConfigError("ranging", field, name, err.Error())
		}
	}
	if R.DQFThreshold > 100 {
		return shared.NewConfigError("ranging", "dqf_threshold", R.DQFThreshold, "must be between 0 and 100")
	}
	if R.StoreBackend != StoreMemory && R.StoreBackend != StorePostgres {
		return shared.NewConfigError("ranging", "store_backend", R.StoreBackend, "must be memory or postgres")
	}
	if R.StoreTimeout <= 0 {
		return shared.NewConfigError("ranging", "store_timeout", R.StoreTimeout, "must be greater than 0")
	}

	return nil
}

// Options converts the component into dispatcher options. Validate must have
// passed.
func (R *RangingConfigImpl) Options() (ranging.Options, error) {
	address, err := models.ParsePeerAddress(R.LocalAddress)
	if err != nil {
		return ranging.Options{}, err
	}

	strategy, err := ranging.StrategyByName(R.Strategy)
	if err != nil {
		return ranging.Options{}, err
	}

	strategies := make(map[models.Method]ranging.Strategy)
	for method, name := range map[models.Method]string{
		models.MethodPMU233R: R.StrategyPMU233R,
		models.MethodPMURFR2: R.StrategyPMURFR2,
	} {
		if name == "" {
			continue
		}
		if strategies[method], err = ranging.StrategyByName(name); err != nil {
			return ranging.Options{}, err
		}
	}

	return ranging.Options{
		LocalAddress:      address,
		ResponseTimeout:   R.ResponseTimeout,
		MeasurementWindow: R.MeasurementWindow,
		MeasurementGuard:  R.MeasurementGuard,
		MinSamples:        R.MinSamples,
		DefaultStrategy:   strategy,
		Strategies:        strategies,
		AntennaThreshold:  R.AntennaThreshold,
		DQFThreshold:      uint8(R.DQFThreshold),
		QualityScale:      R.QualityScale,
		StoreTimeout:      R.StoreTimeout,
	}, nil
}

var _ RangingConfig = (*RangingConfigImpl)(nil)
