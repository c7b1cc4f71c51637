package stats

// Percentiles are the quartiles of a sample, computed with Quantile.
type Percentiles struct {
	P25 float64 `json:"25"`
	P50 float64 `json:"50"`
	P75 float64 `json:"75"`
}

// AdvancedResult extends Result with shape statistics, quartiles and a
// relative-frequency histogram.
type AdvancedResult struct {
	Result

	// Kurtosis is the population excess kurtosis, E[(x-μ)^4]/σ^4 - 3.
	Kurtosis    Statistic   `json:"kurtosis"`
	Percentiles Percentiles `json:"percentiles"`
	Histogram   Histogram   `json:"relative_frequency"`
}

// DescribeAdvanced summarizes sample like Describe and adds kurtosis,
// quartiles and a HistogramBins-bin relative-frequency histogram.
func DescribeAdvanced(sample []float64) (AdvancedResult, error) {
	if err := Validate(sample); err != nil {
		return AdvancedResult{}, err
	}

	m := newMoments(sample)

	hist, err := RelativeFrequency(m.sorted, HistogramBins)
	if err != nil {
		return AdvancedResult{}, err
	}

	kurt := Unavailable
	if k, err := m.standardized(4).Float64(); err == nil {
		kurt = NewStatistic(k - 3)
	}

	return AdvancedResult{
		Result:   m.result(),
		Kurtosis: kurt,
		Percentiles: Percentiles{
			P25: Quantile(m.sorted, 0.25),
			P50: Quantile(m.sorted, 0.5),
			P75: Quantile(m.sorted, 0.75),
		},
		Histogram: hist,
	}, nil
}
