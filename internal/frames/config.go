package frames

import "rtb-engine/internal/pib"

func ConfigFromValues(v pib.Values) PmuConfig {
	return PmuConfig{
		FreqStart: v.FreqStart,
		FreqStep:  v.FreqStep,
		FreqStop:  v.FreqStop,
	}
}

// Apply returns v with the PMU sweep replaced by c.
func (c PmuConfig) Apply(v pib.Values) pib.Values {
	v.FreqStart = c.FreqStart
	v.FreqStep = c.FreqStep
	v.FreqStop = c.FreqStop
	return v
}
