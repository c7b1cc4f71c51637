package measurement

import (
	"fmt"
	"sort"
	"time"

	"github.com/mtraver/sensorstats/probability"
	"github.com/mtraver/sensorstats/stats"
)

// Point is a single timestamped value of one metric.
type Point struct {
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Series returns the points of m in readings, skipping readings that don't
// carry it. Order is preserved.
func Series(readings []Reading, m Metric) []Point {
	points := make([]Point, 0, len(readings))
	for _, r := range readings {
		if v, ok := r.Value(m); ok {
			points = append(points, Point{Value: v, RecordedAt: r.RecordedAt})
		}
	}
	return points
}

// Values returns the sample of m in readings, skipping readings that don't
// carry it. Order is preserved.
func Values(readings []Reading, m Metric) []float64 {
	vals := make([]float64, 0, len(readings))
	for _, r := range readings {
		if v, ok := r.Value(m); ok {
			vals = append(vals, v)
		}
	}
	return vals
}

// Align pairs the values of mx in xs with the values of my in ys. Each x
// point is matched with the y point nearest in time, provided they are at
// most tolerance apart; each y point is used at most once. Both series must
// be ordered by RecordedAt.
func Align(xs, ys []Reading, mx, my Metric, tolerance time.Duration) (probability.PairedSample, error) {
	if tolerance < 0 {
		return probability.PairedSample{}, fmt.Errorf("%w: negative alignment tolerance %v", stats.ErrInvalidParameter, tolerance)
	}

	px, py := Series(xs, mx), Series(ys, my)
	pair := probability.PairedSample{X: []float64{}, Y: []float64{}}

	j := 0
	for _, x := range px {
		// Skip y points that are too old to match this or any later x.
		for j < len(py) && py[j].RecordedAt.Before(x.RecordedAt.Add(-tolerance)) {
			j++
		}
		if j == len(py) {
			break
		}

		best := j
		for k := j + 1; k < len(py) && distance(py[k], x) < distance(py[best], x); k++ {
			best = k
		}
		if distance(py[best], x) > tolerance {
			continue
		}

		pair.X = append(pair.X, x.Value)
		pair.Y = append(pair.Y, py[best].Value)
		j = best + 1
	}

	return pair, nil
}

func distance(a, b Point) time.Duration {
	d := a.RecordedAt.Sub(b.RecordedAt)
	if d < 0 {
		return -d
	}
	return d
}

// Summarize describes every metric present in readings. Metrics no reading
// carries are omitted.
func Summarize(readings []Reading) (map[string]stats.Result, error) {
	samples := make(map[string][]float64)
	for _, r := range readings {
		for k, v := range r.ValueMap() {
			samples[k] = append(samples[k], v)
		}
	}

	names := make([]string, 0, len(samples))
	for k := range samples {
		names = append(names, k)
	}
	sort.Strings(names)

	summary := make(map[string]stats.Result, len(samples))
	for _, k := range names {
		res, err := stats.Describe(samples[k])
		if err != nil {
			return nil, fmt.Errorf("measurement: summarizing %s: %w", k, err)
		}
		summary[k] = res
	}

	return summary, nil
}
