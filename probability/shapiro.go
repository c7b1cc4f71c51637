package probability

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mtraver/sensorstats/stats"
)

// MinNormalitySample is the smallest sample ShapiroWilk accepts.
const MinNormalitySample = 3

// Polynomial coefficients from Royston (1995), algorithm AS R94.
var (
	swC1    = []float64{0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056}
	swC2    = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3    = []float64{0.5440, -0.39978, 0.025054, -6.714e-4}
	swC4    = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5    = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6    = []float64{-0.4803, -0.082676, 0.0030302}
	swGamma = []float64{-2.273, 0.459}
)

// ShapiroWilk tests the null hypothesis that sample was drawn from a normal
// distribution. It returns the W statistic and its p-value.
//
// A sample with zero range, or a spread so small that its sum of squares
// underflows, has no defined statistic and yields stats.ErrUndefinedStatistic.
func ShapiroWilk(sample []float64) (w, p float64, err error) {
	if len(sample) == 0 {
		return 0, 0, fmt.Errorf("%w: %w", stats.ErrInsufficientData, stats.ErrEmptySample)
	}
	if err := stats.Validate(sample); err != nil {
		return 0, 0, err
	}
	n := len(sample)
	if n < MinNormalitySample {
		return 0, 0, fmt.Errorf("%w: normality test needs at least %d values, got %d", stats.ErrInsufficientData, MinNormalitySample, n)
	}

	x := make([]float64, n)
	copy(x, sample)
	sort.Float64s(x)
	if x[n-1] == x[0] {
		return 0, 0, fmt.Errorf("%w: sample has zero range", stats.ErrUndefinedStatistic)
	}

	a := swCoefficients(n)

	mean := stat.Mean(x, nil)
	var ssx float64
	for _, v := range x {
		ssx += (v - mean) * (v - mean)
	}
	if ssx == 0 {
		return 0, 0, fmt.Errorf("%w: sample spread underflows", stats.ErrUndefinedStatistic)
	}

	var num float64
	for i, ai := range a {
		num += ai * (x[n-1-i] - x[i])
	}
	w = math.Min(1, num*num/ssx)

	return w, swPValue(w, n), nil
}

// swCoefficients returns the first n/2 weights of the W statistic. The rest
// are their negatives in reverse order.
func swCoefficients(n int) []float64 {
	half := n / 2
	a := make([]float64, half)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	an := float64(n)
	m := make([]float64, half)
	var summ2 float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (an + 0.25))
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(an)

	a[0] = poly(swC1, rsn) - m[0]/ssumm2

	first := 1
	var fac float64
	if n > 5 {
		first = 2
		a[1] = poly(swC2, rsn) - m[1]/ssumm2
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a[0]*a[0] - 2*a[1]*a[1]))
	} else {
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a[0]*a[0]))
	}

	for i := first; i < half; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

func swPValue(w float64, n int) float64 {
	if n == 3 {
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Pi/3)
		return math.Max(0, math.Min(1, p))
	}

	an := float64(n)
	y := math.Log(1 - w)

	var mu, sigma float64
	if n <= 11 {
		gamma := poly(swGamma, an)
		if y >= gamma {
			return 1e-99
		}
		y = -math.Log(gamma - y)
		mu = poly(swC3, an)
		sigma = math.Exp(poly(swC4, an))
	} else {
		xx := math.Log(an)
		mu = poly(swC5, xx)
		sigma = math.Exp(poly(swC6, xx))
	}

	return distuv.Normal{Mu: mu, Sigma: sigma}.Survival(y)
}

// poly evaluates c[0] + c[1]x + c[2]x² + ...
func poly(c []float64, x float64) float64 {
	var r float64
	for i := len(c) - 1; i >= 0; i-- {
		r = r*x + c[i]
	}
	return r
}
