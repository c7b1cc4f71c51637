// Package stats computes descriptive statistics of a single sample of sensor
// readings. All functions are pure and safe for concurrent use.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Result is a distributional summary of one sample. The standard deviation
// and skewness use population (divide by N) definitions.
type Result struct {
	Count    int       `json:"count"`
	Mean     float64   `json:"mean"`
	Median   float64   `json:"median"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Range    float64   `json:"range"`
	StdDev   float64   `json:"std_dev"`
	Mode     Mode      `json:"mode"`
	Skewness Statistic `json:"skewness"`
}

// moments holds what Describe and DescribeAdvanced share so that the sample
// is sorted and its mean computed only once.
type moments struct {
	sorted []float64
	mean   float64
	std    float64
}

func newMoments(sample []float64) moments {
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return moments{sorted: sorted, mean: lo, std: 0}
	}

	mean, std := stat.PopMeanStdDev(sample, nil)

	// Rounding can push the mean just outside the observed range.
	mean = math.Max(lo, math.Min(hi, mean))

	return moments{sorted: sorted, mean: mean, std: std}
}

// standardized returns E[(x-μ)^k] / σ^k, or Unavailable when σ is zero.
func (m moments) standardized(k float64) Statistic {
	if m.std == 0 {
		return Unavailable
	}
	return NewStatistic(stat.Moment(k, m.sorted, nil) / math.Pow(m.std, k))
}

func (m moments) result() Result {
	n := len(m.sorted)
	lo, hi := m.sorted[0], m.sorted[n-1]

	return Result{
		Count:    n,
		Mean:     m.mean,
		Median:   Quantile(m.sorted, 0.5),
		Min:      lo,
		Max:      hi,
		Range:    hi - lo,
		StdDev:   m.std,
		Mode:     modeOf(m.sorted),
		Skewness: m.standardized(3),
	}
}

// Describe summarizes sample. It returns ErrEmptySample if sample is empty.
func Describe(sample []float64) (Result, error) {
	if err := Validate(sample); err != nil {
		return Result{}, err
	}
	return newMoments(sample).result(), nil
}

// Quantile returns the p-quantile of sorted by linear interpolation between
// order statistics: with h = (n-1)p, the result is
// sorted[⌊h⌋] + (h-⌊h⌋)·(sorted[⌊h⌋+1] - sorted[⌊h⌋]).
// sorted must be non-empty and ascending; p is clamped to [0, 1].
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	p = math.Max(0, math.Min(1, p))
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}

	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
