package ranging

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Strategy combines a set of distance estimates into one value. Inputs are
// never empty and implementations must not depend on input order beyond what
// the caller already fixed.
type Strategy interface {
	Name() string
	Reduce(values []float64) float64
}

const (
	StrategyAverage = "average"
	StrategyMedian  = "median"
	StrategyMin     = "min"
	StrategyMax     = "max"
	StrategyMinVar  = "minvar"
)

// minVarThreshold weights mean against minimum, in cm².
const minVarThreshold = 100.0

func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyAverage, "avg", "mean":
		return averageStrategy{}, nil
	case StrategyMedian:
		return medianStrategy{}, nil
	case StrategyMin:
		return minStrategy{}, nil
	case StrategyMax:
		return maxStrategy{}, nil
	case StrategyMinVar, "min-var":
		return minVarStrategy{threshold: minVarThreshold}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

type averageStrategy struct{}

func (averageStrategy) Name() string { return StrategyAverage }

func (averageStrategy) Reduce(values []float64) float64 {
	return mean(values)
}

type medianStrategy struct{}

func (medianStrategy) Name() string { return StrategyMedian }

func (medianStrategy) Reduce(values []float64) float64 {
	sorted := sortedCopy(values)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

type minStrategy struct{}

func (minStrategy) Name() string { return StrategyMin }

func (minStrategy) Reduce(values []float64) float64 {
	return sortedCopy(values)[0]
}

type maxStrategy struct{}

func (maxStrategy) Name() string { return StrategyMax }

func (maxStrategy) Reduce(values []float64) float64 {
	sorted := sortedCopy(values)
	return sorted[len(sorted)-1]
}

// minVarStrategy leans towards the minimum as the spread grows:
// b = T/(T+var), result = b*mean + (1-b)*min.
type minVarStrategy struct {
	threshold float64
}

func (minVarStrategy) Name() string { return StrategyMinVar }

func (s minVarStrategy) Reduce(values []float64) float64 {
	m := mean(values)
	// variance in cm²
	v := variance(values, m) * 1e4
	b := s.threshold / (s.threshold + v)
	return b*m + (1-b)*sortedCopy(values)[0]
}

func sortedCopy(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	return math.Sqrt(variance(values, mean(values)))
}
