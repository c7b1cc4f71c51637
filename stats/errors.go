package stats

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptySample is returned when a computation is given no values.
	ErrEmptySample = errors.New("stats: empty sample")

	// ErrInsufficientData is returned when a sample is too short, or a pair of
	// samples is mismatched, for the requested computation.
	ErrInsufficientData = errors.New("stats: insufficient data")

	// ErrInvalidParameter is returned when a caller-supplied parameter, or a
	// sample value, is outside the domain of the computation.
	ErrInvalidParameter = errors.New("stats: invalid parameter")

	// ErrUndefinedStatistic is returned when asking for the value of a
	// Statistic that is mathematically undefined for its sample, and by tests
	// whose statistic is undefined for a sample without spread.
	ErrUndefinedStatistic = errors.New("stats: statistic undefined for sample")
)

// Validate checks that sample is non-empty and holds only finite values that
// are small enough for the sum of the sample and of its fourth powers of
// deviation to stay finite.
func Validate(sample []float64) error {
	if len(sample) == 0 {
		return ErrEmptySample
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value %v at index %d", ErrInvalidParameter, v, i)
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	n := float64(len(sample))
	mag := math.Max(math.Abs(lo), math.Abs(hi)) * (1 + degenerateSpread)
	span := hi - lo
	if math.IsInf(n*mag, 0) || math.IsInf(n*span*span*span*span, 0) {
		return fmt.Errorf("%w: values in [%v, %v] are too large to summarize", ErrInvalidParameter, lo, hi)
	}

	return nil
}
