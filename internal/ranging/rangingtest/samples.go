package rangingtest

import (
	"math"
	"rtb-engine/internal/models"
	"time"
)

const speedOfLight = 299792458.0

// PhaseSamples synthesises the phase response of a reflector at distance
// metres over count frequency steps.
func PhaseSamples(distance float64, antenna uint8, firstSequence uint16, startMHz, stepMHz float64, count int, at time.Time) []models.PmuSample {
	samples := make([]models.PmuSample, 0, count)
	for i := 0; i < count; i++ {
		frequency := startMHz + float64(i)*stepMHz
		phase := math.Mod(4*math.Pi*frequency*1e6*distance/speedOfLight, 2*math.Pi)
		samples = append(samples, models.PmuSample{
			Sequence:  firstSequence + uint16(i),
			Antenna:   antenna,
			Frequency: frequency,
			Phase:     phase,
			Amplitude: 1,
			Timestamp: at,
		})
	}
	return samples
}
