package ranging

import (
	"fmt"
	"math"
	"rtb-engine/internal/models"
	"sort"
	"time"
)

const speedOfLight = 299792458.0

type Verdict uint8

const (
	Accepted Verdict = iota
	Duplicate
	OutOfWindow
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case OutOfWindow:
		return "out_of_window"
	}
	return fmt.Sprintf("verdict-%d", uint8(v))
}

// Aggregator collects the PMU samples of one session inside its measurement
// window. The window is judged on the engine's arrival time; the node's own
// sample timestamp is carried as metadata only.
type Aggregator struct {
	windowStart time.Time
	windowEnd   time.Time
	seen        map[uint16]struct{}
	samples     []models.PmuSample
	lastArrival time.Time
	duplicates  int
	outOfWindow int
}

func NewAggregator(start time.Time, window time.Duration) *Aggregator {
	return &Aggregator{
		windowStart: start,
		windowEnd:   start.Add(window),
		seen:        make(map[uint16]struct{}),
	}
}

func (a *Aggregator) Add(sample models.PmuSample, receivedAt time.Time) Verdict {
	if receivedAt.Before(a.windowStart) || receivedAt.After(a.windowEnd) {
		a.outOfWindow++
		return OutOfWindow
	}
	if _, ok := a.seen[sample.Sequence]; ok {
		a.duplicates++
		return Duplicate
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = receivedAt
	}
	if receivedAt.After(a.lastArrival) {
		a.lastArrival = receivedAt
	}
	a.seen[sample.Sequence] = struct{}{}
	a.samples = append(a.samples, sample)
	return Accepted
}

func (a *Aggregator) Accepted() int {
	return len(a.samples)
}

func (a *Aggregator) Dropped() (duplicates, outOfWindow int) {
	return a.duplicates, a.outOfWindow
}

// Reduce stamps the result with the arrival of the last accepted sample.
func (a *Aggregator) Reduce(r Reducer) (models.RangingResult, error) {
	result, err := r.Reduce(a.samples)
	if err != nil {
		return result, err
	}
	if !a.lastArrival.IsZero() {
		result.MeasuredAt = a.lastArrival
	}
	return result, nil
}

// Reducer turns an accepted sample set into a RangingResult.
type Reducer struct {
	Method   models.Method
	Strategy Strategy
	// MinSamples is the lowest accepted sample count that may be reduced.
	MinSamples int
	// AntennaThreshold is the largest allowed spread between per-antenna
	// distances, in metres.
	AntennaThreshold float64
	// DQFThreshold discards antennas whose quality falls below it.
	DQFThreshold uint8
	// QualityScale is the estimate spread, in metres, that maps to zero
	// quality.
	QualityScale          float64
	ProvideAntennaResults bool
	ApplyMinDistThreshold bool
}

func (r Reducer) Reduce(samples []models.PmuSample) (models.RangingResult, error) {
	if len(samples) == 0 || len(samples) < r.MinSamples {
		return models.RangingResult{}, fmt.Errorf("%w: %d accepted, need %d", ErrInsufficientSamples, len(samples), r.MinSamples)
	}

	strategy := r.Strategy
	if strategy == nil {
		strategy = averageStrategy{}
	}

	ordered := append([]models.PmuSample(nil), samples...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Antenna != b.Antenna {
			return a.Antenna < b.Antenna
		}
		if a.Frequency != b.Frequency {
			return a.Frequency < b.Frequency
		}
		return a.Sequence < b.Sequence
	})

	var measuredAt time.Time
	for _, sample := range ordered {
		if sample.Timestamp.After(measuredAt) {
			measuredAt = sample.Timestamp
		}
	}

	var antennas []models.AntennaEstimate
	for start := 0; start < len(ordered); {
		end := start
		for end < len(ordered) && ordered[end].Antenna == ordered[start].Antenna {
			end++
		}

		estimate, ok := r.reduceAntenna(ordered[start:end], strategy)
		if ok && estimate.Quality >= r.DQFThreshold {
			antennas = append(antennas, estimate)
		}
		start = end
	}

	if len(antennas) == 0 {
		return models.RangingResult{}, fmt.Errorf("%w: no antenna produced a usable estimate", ErrInsufficientSamples)
	}

	lowest, highest := antennas[0].Distance, antennas[0].Distance
	weighted, weights, qualities := 0.0, 0.0, 0.0
	for _, antenna := range antennas {
		lowest = math.Min(lowest, antenna.Distance)
		highest = math.Max(highest, antenna.Distance)
		weighted += antenna.Distance * float64(antenna.Quality)
		weights += float64(antenna.Quality)
		qualities += float64(antenna.Quality)
	}

	if len(antennas) > 1 && highest-lowest > r.AntennaThreshold {
		return models.RangingResult{}, fmt.Errorf("%w: antenna estimates spread %.3f m exceeds %.3f m",
			ErrInconsistentAntennaData, highest-lowest, r.AntennaThreshold)
	}

	var distance float64
	if weights > 0 {
		distance = weighted / weights
	} else {
		sum := 0.0
		for _, antenna := range antennas {
			sum += antenna.Distance
		}
		distance = sum / float64(len(antennas))
	}
	if r.ApplyMinDistThreshold && distance < 0 {
		distance = 0
	}

	result := models.RangingResult{
		Distance:    distance,
		Quality:     uint8(math.Round(qualities / float64(len(antennas)))),
		Method:      r.Method,
		Strategy:    strategy.Name(),
		SampleCount: len(samples),
		MeasuredAt:  measuredAt,
	}
	if r.ProvideAntennaResults {
		result.Antennas = antennas
	}

	return result, nil
}

// reduceAntenna derives one distance per consecutive frequency pair from the
// phase slope and combines them with the strategy.
func (r Reducer) reduceAntenna(samples []models.PmuSample, strategy Strategy) (models.AntennaEstimate, bool) {
	var estimates []float64
	for i := 0; i+1 < len(samples); i++ {
		df := (samples[i+1].Frequency - samples[i].Frequency) * 1e6
		if df <= 0 {
			continue
		}
		dphi := wrapPhase(samples[i+1].Phase - samples[i].Phase)
		estimates = append(estimates, speedOfLight*dphi/(4*math.Pi*df))
	}
	if len(estimates) == 0 {
		return models.AntennaEstimate{}, false
	}

	quality := 100.0
	if r.QualityScale > 0 {
		quality = 100 * math.Max(0, 1-stddev(estimates)/r.QualityScale)
	}

	return models.AntennaEstimate{
		Antenna:  samples[0].Antenna,
		Distance: strategy.Reduce(estimates),
		Quality:  uint8(math.Round(quality)),
	}, true
}

func wrapPhase(phase float64) float64 {
	wrapped := math.Mod(phase, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped
}
