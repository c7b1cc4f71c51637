package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// HistogramBins is the number of bins in the relative-frequency histogram of
// DescribeAdvanced.
const HistogramBins = 10

// degenerateSpread is the relative expansion applied to a zero-width range so
// that a constant sample still yields strictly increasing edges.
const degenerateSpread = 0.001

// BinEdges holds k+1 strictly increasing edges of k equal-width bins. Bin i is
// [edges[i], edges[i+1]) except the last, which also includes its upper edge.
type BinEdges []float64

// NewBinEdges returns k equal-width bins covering [min(sample), max(sample)].
// When every value is equal, the range is widened symmetrically around it.
func NewBinEdges(sample []float64, k int) (BinEdges, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: bin count must be >= 1, got %d", ErrInvalidParameter, k)
	}
	if err := Validate(sample); err != nil {
		return nil, err
	}

	lo, hi := floats.Min(sample), floats.Max(sample)
	if lo == hi {
		d := degenerateSpread
		if lo != 0 {
			d = degenerateSpread * math.Abs(lo)
		}
		lo, hi = lo-d, hi+d
	}

	return BinEdges(floats.Span(make([]float64, k+1), lo, hi)), nil
}

// Bins returns the number of bins.
func (e BinEdges) Bins() int {
	if len(e) < 2 {
		return 0
	}
	return len(e) - 1
}

// Index returns the bin containing v. Values below the first edge map to bin
// 0 and values at or above the last edge map to the last bin.
func (e BinEdges) Index(v float64) int {
	n := e.Bins()
	if n == 0 {
		return 0
	}

	// The last edge <= v is the lower bound of v's bin.
	i := sort.Search(len(e), func(j int) bool { return e[j] > v }) - 1
	switch {
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}

// Histogram is a relative-frequency histogram. Frequencies[i] is the fraction
// of the sample falling in bin i of Edges.
type Histogram struct {
	Edges       BinEdges  `json:"bins"`
	Frequencies []float64 `json:"counts"`
}

// RelativeFrequency bins sample into k equal-width bins and normalizes each
// count by the sample size.
func RelativeFrequency(sample []float64, k int) (Histogram, error) {
	edges, err := NewBinEdges(sample, k)
	if err != nil {
		return Histogram{}, err
	}

	freq := make([]float64, edges.Bins())
	for _, v := range sample {
		freq[edges.Index(v)]++
	}
	floats.Scale(1/float64(len(sample)), freq)

	return Histogram{Edges: edges, Frequencies: freq}, nil
}
