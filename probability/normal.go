package probability

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mtraver/sensorstats/stats"
)

const (
	// NormalityAlpha is the significance level of the normality test. A
	// sample is considered normal when the p-value exceeds it.
	NormalityAlpha = 0.05

	// DensityPoints is the number of points in a fitted density curve.
	DensityPoints = 100
)

type NormalityTest struct {
	Statistic stats.Statistic `json:"statistic"`
	PValue    stats.Statistic `json:"p_value"`
	IsNormal  bool            `json:"is_normal"`
}

// Curve is a sampled function, Y[i] = f(X[i]).
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// NormalFit is a normal model of a sample with a Shapiro-Wilk goodness-of-fit
// test and the fitted density evaluated over the observed range.
type NormalFit struct {
	Mean    float64       `json:"mean"`
	StdDev  float64       `json:"std_dev"`
	Test    NormalityTest `json:"shapiro_test"`
	Density Curve         `json:"pdf"`
}

// FitNormal fits a normal distribution to sample using its mean and
// population standard deviation. The sample needs at least
// MinNormalitySample values.
//
// When the test statistic is undefined (a constant sample, or one with
// vanishing spread) it and the p-value are unavailable, IsNormal is false and
// the density curve is empty.
func FitNormal(sample []float64) (NormalFit, error) {
	w, p, err := ShapiroWilk(sample)
	if err != nil && !errors.Is(err, stats.ErrUndefinedStatistic) {
		return NormalFit{}, err
	}

	if err != nil {
		fit := NormalFit{
			Mean:    sample[0],
			Test:    NormalityTest{Statistic: stats.Unavailable, PValue: stats.Unavailable},
			Density: Curve{X: []float64{}, Y: []float64{}},
		}
		if floats.Min(sample) != floats.Max(sample) {
			fit.Mean, fit.StdDev = stat.PopMeanStdDev(sample, nil)
		}
		return fit, nil
	}

	mean, std := stat.PopMeanStdDev(sample, nil)
	pValue := stats.NewStatistic(p)

	return NormalFit{
		Mean:   mean,
		StdDev: std,
		Test: NormalityTest{
			Statistic: stats.NewStatistic(w),
			PValue:    pValue,
			IsNormal:  pValue.Available && pValue.Value > NormalityAlpha,
		},
		Density: density(distuv.Normal{Mu: mean, Sigma: std}, floats.Min(sample), floats.Max(sample)),
	}, nil
}

func density(d distuv.Normal, lo, hi float64) Curve {
	xs := floats.Span(make([]float64, DensityPoints), lo, hi)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = d.Prob(x)
		if math.IsInf(ys[i], 0) || math.IsNaN(ys[i]) {
			return Curve{X: []float64{}, Y: []float64{}}
		}
	}
	return Curve{X: xs, Y: ys}
}
