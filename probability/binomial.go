package probability

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mtraver/sensorstats/stats"
)

// BinomialFit is a binomial model estimated from a sample. PMF[k] is the
// probability of exactly k successes in Trials trials.
type BinomialFit struct {
	Trials    int       `json:"n_trials"`
	Successes int       `json:"successes"`
	P         float64   `json:"p"`
	Mean      float64   `json:"mean"`
	Variance  float64   `json:"variance"`
	StdDev    float64   `json:"std_dev"`
	PMF       []float64 `json:"pmf"`
}

type binomialConfig struct {
	trials int
}

type BinomialOption func(*binomialConfig)

// WithTrials models the sample against n trials instead of one trial per
// sample element.
func WithTrials(n int) BinomialOption {
	return func(c *binomialConfig) {
		c.trials = n
	}
}

// FitBinomial treats each element of sample as a Bernoulli trial that
// succeeds when success returns true, and estimates p as successes/trials.
func FitBinomial[T any](sample []T, success func(T) bool, opts ...BinomialOption) (BinomialFit, error) {
	if len(sample) == 0 {
		return BinomialFit{}, stats.ErrEmptySample
	}

	cfg := binomialConfig{trials: len(sample)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.trials <= 0 {
		return BinomialFit{}, fmt.Errorf("%w: trials must be >= 1, got %d", stats.ErrInvalidParameter, cfg.trials)
	}

	successes := 0
	for _, v := range sample {
		if success(v) {
			successes++
		}
	}
	if successes > cfg.trials {
		return BinomialFit{}, fmt.Errorf("%w: %d successes exceed %d trials", stats.ErrInvalidParameter, successes, cfg.trials)
	}

	n := cfg.trials
	p := float64(successes) / float64(n)
	variance := float64(n) * p * (1 - p)

	pmf, err := BinomialPMF(n, p)
	if err != nil {
		return BinomialFit{}, err
	}

	return BinomialFit{
		Trials:    n,
		Successes: successes,
		P:         p,
		Mean:      float64(n) * p,
		Variance:  variance,
		StdDev:    math.Sqrt(variance),
		PMF:       pmf,
	}, nil
}

// BinomialPMF returns the n+1 probabilities P(K = k), k = 0..n, of a
// binomial distribution with n trials and success probability p.
func BinomialPMF(n int, p float64) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: trials must be >= 0, got %d", stats.ErrInvalidParameter, n)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: probability must be in [0, 1], got %v", stats.ErrInvalidParameter, p)
	}

	pmf := make([]float64, n+1)

	// Degenerate distributions: the log-space evaluation below would compute
	// 0·log(0).
	switch p {
	case 0:
		pmf[0] = 1
		return pmf, nil
	case 1:
		pmf[n] = 1
		return pmf, nil
	}

	dist := distuv.Binomial{N: float64(n), P: p}
	for k := range pmf {
		pmf[k] = dist.Prob(float64(k))
	}
	return pmf, nil
}
