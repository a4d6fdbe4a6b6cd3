package pib

import (
	"fmt"
	"rtb-engine/internal/models"
)

const (
	MinFrequency uint16 = 2324
	MaxFrequency uint16 = 2527

	// minimum distance between start and stop frequency in MHz
	minFrequencySpan = 4

	MaxVerboseLevel  = 3
	MaxAntenna       = 1
	MaxTransmitPower = 15
)

var stepMHz = [...]float64{0.5, 1, 2, 4}

// Values is one complete, immutable-by-copy set of ranging parameters.
type Values struct {
	RangingEnabled              bool          `json:"ranging_enabled"`
	RangingMethod               models.Method `json:"ranging_method"`
	FreqStart                   uint16        `json:"pmu_freq_start"`
	FreqStep                    uint8         `json:"pmu_freq_step"`
	FreqStop                    uint16        `json:"pmu_freq_stop"`
	VerboseLevel                uint8         `json:"pmu_verbose_level"`
	DefaultAntenna              uint8         `json:"default_antenna"`
	EnableAntennaDiv            bool          `json:"enable_antenna_div"`
	ProvideAntennaDivResults    bool          `json:"provide_antenna_div_results"`
	TransmitPower               uint8         `json:"ranging_transmit_power"`
	ProvideRangingTransmitPower bool          `json:"provide_ranging_transmit_power"`
	ApplyMinDistThreshold       bool          `json:"apply_min_dist_threshold"`
}

func Defaults() Values {
	return Values{
		RangingEnabled:              true,
		RangingMethod:               models.MethodPMU233R,
		FreqStart:                   2403,
		FreqStep:                    2,
		FreqStop:                    2443,
		VerboseLevel:                0,
		DefaultAntenna:              0,
		EnableAntennaDiv:            false,
		ProvideAntennaDivResults:    false,
		TransmitPower:               3,
		ProvideRangingTransmitPower: true,
		ApplyMinDistThreshold:       true,
	}
}

func (v Values) StepMHz() float64 {
	if int(v.FreqStep) >= len(stepMHz) {
		return 0
	}
	return stepMHz[v.FreqStep]
}

// AntennaCount returns 1, 2 or 4 depending on which side uses antenna
// diversity.
func (v Values) AntennaCount(peerDiversity bool) int {
	count := 1
	if v.EnableAntennaDiv {
		count *= 2
	}
	if peerDiversity {
		count *= 2
	}
	return count
}

// Validate checks the PMU configuration as a whole, e.g. one received in a
// range request frame.
func (v Values) Validate() error {
	if err := checkFrequency(v.FreqStart); err != nil {
		return fmt.Errorf("pmu start frequency: %w", err)
	}
	if err := checkFrequency(v.FreqStop); err != nil {
		return fmt.Errorf("pmu stop frequency: %w", err)
	}
	if v.FreqStop <= v.FreqStart+minFrequencySpan {
		return fmt.Errorf("%w: stop frequency %d must exceed start frequency %d by more than %d MHz",
			ErrOutOfRange, v.FreqStop, v.FreqStart, minFrequencySpan)
	}
	if int(v.FreqStep) >= len(stepMHz) {
		return fmt.Errorf("%w: frequency step code %d", ErrOutOfRange, v.FreqStep)
	}
	return nil
}

func (v Values) Get(attr Attribute) (uint32, error) {
	switch attr {
	case RangingEnabled:
		return boolValue(v.RangingEnabled), nil
	case RangingMethod:
		return uint32(v.RangingMethod), nil
	case PMUFreqStart:
		return uint32(v.FreqStart), nil
	case PMUFreqStep:
		return uint32(v.FreqStep), nil
	case PMUFreqStop:
		return uint32(v.FreqStop), nil
	case PMUVerboseLevel:
		return uint32(v.VerboseLevel), nil
	case DefaultAntenna:
		return uint32(v.DefaultAntenna), nil
	case EnableAntennaDiv:
		return boolValue(v.EnableAntennaDiv), nil
	case ProvideAntennaDivResults:
		return boolValue(v.ProvideAntennaDivResults), nil
	case RangingTransmitPower:
		return uint32(v.TransmitPower), nil
	case ProvideRangingTransmitPower:
		return boolValue(v.ProvideRangingTransmitPower), nil
	case ApplyMinDistThreshold:
		return boolValue(v.ApplyMinDistThreshold), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedAttribute, uint8(attr))
}

// Set validates value against the attribute's range and, for the frequency
// bounds, against the current value of the opposite bound.
func (v *Values) Set(attr Attribute, value uint32) error {
	switch attr {
	case RangingMethod:
		return fmt.Errorf("%w: %s", ErrReadOnly, attr)

	case PMUFreqStart:
		if value > uint32(MaxFrequency) {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, attr, value)
		}
		start := uint16(value)
		if err := checkFrequency(start); err != nil {
			return fmt.Errorf("%s: %w", attr, err)
		}
		if start+minFrequencySpan >= v.FreqStop {
			return fmt.Errorf("%w: %s=%d must be below %d", ErrOutOfRange, attr, value, v.FreqStop-minFrequencySpan)
		}
		v.FreqStart = start

	case PMUFreqStop:
		if value > uint32(MaxFrequency) {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, attr, value)
		}
		stop := uint16(value)
		if err := checkFrequency(stop); err != nil {
			return fmt.Errorf("%s: %w", attr, err)
		}
		if stop <= v.FreqStart+minFrequencySpan {
			return fmt.Errorf("%w: %s=%d must be above %d", ErrOutOfRange, attr, value, v.FreqStart+minFrequencySpan)
		}
		v.FreqStop = stop

	case PMUFreqStep:
		if value >= uint32(len(stepMHz)) {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, attr, value)
		}
		v.FreqStep = uint8(value)

	case PMUVerboseLevel:
		if value > MaxVerboseLevel {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, attr, value)
		}
		v.VerboseLevel = uint8(value)

	case DefaultAntenna:
		if value > MaxAntenna {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, attr, value)
		}
		v.DefaultAntenna = uint8(value)

	case RangingTransmitPower:
		if value > MaxTransmitPower {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, attr, value)
		}
		v.TransmitPower = uint8(value)

	case RangingEnabled, EnableAntennaDiv, ProvideAntennaDivResults, ProvideRangingTransmitPower, ApplyMinDistThreshold:
		if value > 1 {
			return fmt.Errorf("%w: %s expects 0 or 1, got %d", ErrOutOfRange, attr, value)
		}
		flag := value == 1
		switch attr {
		case RangingEnabled:
			v.RangingEnabled = flag
		case EnableAntennaDiv:
			v.EnableAntennaDiv = flag
		case ProvideAntennaDivResults:
			v.ProvideAntennaDivResults = flag
		case ProvideRangingTransmitPower:
			v.ProvideRangingTransmitPower = flag
		case ApplyMinDistThreshold:
			v.ApplyMinDistThreshold = flag
		}

	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedAttribute, uint8(attr))
	}

	return nil
}

func checkFrequency(f uint16) error {
	if f < MinFrequency || f > MaxFrequency {
		return fmt.Errorf("%w: %d MHz outside %d..%d", ErrOutOfRange, f, MinFrequency, MaxFrequency)
	}
	return nil
}

func boolValue(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
