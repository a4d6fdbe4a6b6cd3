package ranging

import (
	"math"
	"rtb-engine/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var windowStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// phaseSamples mirrors rangingtest.PhaseSamples; the internal tests cannot
// import that package.
func phaseSamples(distance float64, antenna uint8, firstSequence uint16, count int) []models.PmuSample {
	samples := make([]models.PmuSample, 0, count)
	for i := 0; i < count; i++ {
		frequency := 2403 + float64(i)*2
		samples = append(samples, models.PmuSample{
			Sequence:  firstSequence + uint16(i),
			Antenna:   antenna,
			Frequency: frequency,
			Phase:     math.Mod(4*math.Pi*frequency*1e6*distance/speedOfLight, 2*math.Pi),
			Amplitude: 1,
			Timestamp: windowStart.Add(100 * time.Millisecond),
		})
	}
	return samples
}

func testReducer() Reducer {
	return Reducer{
		Method:           models.MethodPMU233R,
		Strategy:         averageStrategy{},
		MinSamples:       5,
		AntennaThreshold: 0.5,
		DQFThreshold:     10,
		QualityScale:     1.0,
	}
}

func TestAggregatorVerdicts(t *testing.T) {
	a := NewAggregator(windowStart, time.Second)
	sample := phaseSamples(10, 0, 1, 1)[0]

	arrival := windowStart.Add(100 * time.Millisecond)

	assert.Equal(t, Accepted, a.Add(sample, arrival))
	assert.Equal(t, Duplicate, a.Add(sample, arrival))

	early := sample
	early.Sequence = 2
	assert.Equal(t, OutOfWindow, a.Add(early, windowStart.Add(-time.Millisecond)))

	late := sample
	late.Sequence = 3
	assert.Equal(t, OutOfWindow, a.Add(late, windowStart.Add(time.Second+time.Millisecond)))

	assert.Equal(t, 1, a.Accepted())
	duplicates, outOfWindow := a.Dropped()
	assert.Equal(t, 1, duplicates)
	assert.Equal(t, 2, outOfWindow)
}

func TestReduceRecoversDistance(t *testing.T) {
	a := NewAggregator(windowStart, time.Second)
	for _, sample := range phaseSamples(10, 0, 1, 5) {
		require.Equal(t, Accepted, a.Add(sample, sample.Timestamp))
	}

	result, err := a.Reduce(testReducer())
	require.NoError(t, err)

	assert.InDelta(t, 10.0, result.Distance, 1e-6)
	assert.Equal(t, uint8(100), result.Quality)
	assert.Equal(t, 5, result.SampleCount)
	assert.Equal(t, StrategyAverage, result.Strategy)
	assert.Equal(t, models.MethodPMU233R, result.Method)
	assert.Nil(t, result.Antennas)
}

func TestWindowUsesArrivalTime(t *testing.T) {
	a := NewAggregator(windowStart, time.Second)
	arrival := windowStart.Add(200 * time.Millisecond)

	unstamped := phaseSamples(10, 0, 1, 5)
	for i := range unstamped {
		unstamped[i].Timestamp = time.Time{}
	}
	skewed := phaseSamples(10, 1, 20, 5)
	for i := range skewed {
		skewed[i].Timestamp = windowStart.Add(-time.Hour)
	}

	for _, sample := range append(unstamped, skewed...) {
		require.Equal(t, Accepted, a.Add(sample, arrival))
	}

	result, err := a.Reduce(testReducer())
	require.NoError(t, err)
	assert.Equal(t, 10, result.SampleCount)
	assert.Equal(t, arrival, result.MeasuredAt)
}

func TestReduceIsDeterministic(t *testing.T) {
	samples := append(phaseSamples(7.5, 0, 1, 6), phaseSamples(7.6, 1, 20, 6)...)

	reducer := testReducer()
	reducer.ProvideAntennaResults = true

	first, err := reducer.Reduce(samples)
	require.NoError(t, err)

	reversed := make([]models.PmuSample, len(samples))
	for i, sample := range samples {
		reversed[len(samples)-1-i] = sample
	}

	for i := 0; i < 10; i++ {
		again, err := reducer.Reduce(samples)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	shuffled, err := reducer.Reduce(reversed)
	require.NoError(t, err)
	assert.Equal(t, first, shuffled)
}

func TestReplayedSamplesDoNotChangeResult(t *testing.T) {
	samples := phaseSamples(3.2, 0, 1, 8)

	baseline := NewAggregator(windowStart, time.Second)
	for _, sample := range samples {
		baseline.Add(sample, sample.Timestamp)
	}
	expected, err := baseline.Reduce(testReducer())
	require.NoError(t, err)

	replayed := NewAggregator(windowStart, time.Second)
	for _, sample := range samples {
		replayed.Add(sample, sample.Timestamp)
		replayed.Add(sample, sample.Timestamp)

		late := sample
		late.Phase = 0
		replayed.Add(late, windowStart.Add(2*time.Second))
	}
	got, err := replayed.Reduce(testReducer())
	require.NoError(t, err)

	assert.Equal(t, expected, got)
}

func TestReduceInsufficientSamples(t *testing.T) {
	_, err := testReducer().Reduce(phaseSamples(10, 0, 1, 4))
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	_, err = testReducer().Reduce(nil)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestReduceSingleSamplePerAntenna(t *testing.T) {
	var samples []models.PmuSample
	for antenna := uint8(0); antenna < 5; antenna++ {
		samples = append(samples, phaseSamples(10, antenna, uint16(antenna)*10, 1)...)
	}

	_, err := testReducer().Reduce(samples)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestReduceInconsistentAntennas(t *testing.T) {
	samples := append(phaseSamples(10, 0, 1, 5), phaseSamples(12, 1, 10, 5)...)

	_, err := testReducer().Reduce(samples)
	assert.ErrorIs(t, err, ErrInconsistentAntennaData)
}

func TestReduceConsistentAntennas(t *testing.T) {
	samples := append(phaseSamples(10, 0, 1, 5), phaseSamples(10.2, 1, 10, 5)...)

	reducer := testReducer()
	reducer.ProvideAntennaResults = true
	result, err := reducer.Reduce(samples)
	require.NoError(t, err)

	assert.InDelta(t, 10.1, result.Distance, 1e-6)
	require.Len(t, result.Antennas, 2)
	assert.Equal(t, uint8(0), result.Antennas[0].Antenna)
	assert.InDelta(t, 10.0, result.Antennas[0].Distance, 1e-6)
	assert.InDelta(t, 10.2, result.Antennas[1].Distance, 1e-6)
}

func TestReduceDiscardsLowQualityAntenna(t *testing.T) {
	samples := phaseSamples(10, 0, 1, 5)
	for i, phase := range []float64{0, 3, 0.1, 3, 0.2} {
		samples = append(samples, models.PmuSample{
			Sequence:  uint16(50 + i),
			Antenna:   1,
			Frequency: 2403 + float64(i)*2,
			Phase:     phase,
			Timestamp: windowStart,
		})
	}

	reducer := testReducer()
	reducer.ProvideAntennaResults = true
	result, err := reducer.Reduce(samples)
	require.NoError(t, err)

	require.Len(t, result.Antennas, 1)
	assert.Equal(t, uint8(0), result.Antennas[0].Antenna)
	assert.InDelta(t, 10.0, result.Distance, 1e-6)
}

func TestWrapPhase(t *testing.T) {
	assert.InDelta(t, 0.5, wrapPhase(0.5), 1e-12)
	assert.InDelta(t, 2*math.Pi-0.5, wrapPhase(-0.5), 1e-12)
	assert.InDelta(t, 0.25, wrapPhase(4*math.Pi+0.25), 1e-9)
}
