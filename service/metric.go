package service

import (
	"context"
	"fmt"

	"github.com/mtraver/sensorstats/measurement"
	"github.com/mtraver/sensorstats/probability"
	"github.com/mtraver/sensorstats/stats"
)

// A success condition for the binomial model of a metric: a reading
// succeeds when its value exceeds Threshold.
type condition struct {
	Threshold float64
	Desc      string
}

func (c condition) success(v float64) bool {
	return v > c.Threshold
}

// conditionFor returns the binomial success condition for m. Humidity
// succeeds above the configured threshold and every other metric above its
// sample mean.
func (s *Sensors) conditionFor(m measurement.Metric, sample []float64) condition {
	if m.Name == measurement.Humidity.Name {
		return condition{
			Threshold: s.cfg.HumidityThreshold,
			Desc:      fmt.Sprintf("%s > %g%s", m.Name, s.cfg.HumidityThreshold, m.Unit),
		}
	}

	res, err := stats.Describe(sample)
	if err != nil {
		// Only reached with an empty sample, which FitBinomial rejects anyway.
		return condition{Desc: m.Name + " > mean"}
	}
	return condition{
		Threshold: res.Mean,
		Desc:      fmt.Sprintf("%s > mean (%g%s)", m.Name, res.Mean, m.Unit),
	}
}

func (s *Sensors) binomial(m measurement.Metric, sample []float64) (probability.BinomialFit, condition, error) {
	cond := s.conditionFor(m, sample)
	fit, err := probability.FitBinomial(sample, cond.success)
	return fit, cond, err
}

type BinomialAnalysis struct {
	Binomial probability.BinomialFit `json:"binomial"`
}

type Probability struct {
	Analysis BinomialAnalysis `json:"probability_analysis"`
}

// MetricReport describes one metric of one sensor over a window, with the
// binomial model of its success condition and the points it was computed
// from.
type MetricReport struct {
	Metric      string              `json:"metric"`
	SensorID    string              `json:"sensor_id"`
	Stats       stats.Result        `json:"stats"`
	Probability Probability         `json:"probability"`
	Data        []measurement.Point `json:"data"`
}

func (s *Sensors) MetricStats(ctx context.Context, m measurement.Metric, q Query) (MetricReport, error) {
	id, readings, err := s.history(ctx, m, q)
	if err != nil {
		return MetricReport{}, err
	}
	return s.report(m, id, readings)
}

func (s *Sensors) report(m measurement.Metric, id string, readings []measurement.Reading) (MetricReport, error) {
	points := measurement.Series(readings, m)
	sample := make([]float64, len(points))
	for i, p := range points {
		sample[i] = p.Value
	}

	res, err := stats.Describe(sample)
	if err != nil {
		return MetricReport{}, fmt.Errorf("service: describing %s: %w", m.Name, err)
	}

	fit, _, err := s.binomial(m, sample)
	if err != nil {
		return MetricReport{}, fmt.Errorf("service: fitting binomial to %s: %w", m.Name, err)
	}

	return MetricReport{
		Metric:      m.Name,
		SensorID:    id,
		Stats:       res,
		Probability: Probability{Analysis: BinomialAnalysis{Binomial: fit}},
		Data:        points,
	}, nil
}

type AdvancedReport struct {
	Metric   string               `json:"metric"`
	SensorID string               `json:"sensor_id"`
	Stats    stats.AdvancedResult `json:"stats"`
}

func (s *Sensors) Advanced(ctx context.Context, m measurement.Metric, q Query) (AdvancedReport, error) {
	id, readings, err := s.history(ctx, m, q)
	if err != nil {
		return AdvancedReport{}, err
	}

	res, err := stats.DescribeAdvanced(measurement.Values(readings, m))
	if err != nil {
		return AdvancedReport{}, fmt.Errorf("service: describing %s: %w", m.Name, err)
	}

	return AdvancedReport{Metric: m.Name, SensorID: id, Stats: res}, nil
}

type NormalReport struct {
	Metric   string                `json:"metric"`
	SensorID string                `json:"sensor_id"`
	Fit      probability.NormalFit `json:"normal"`
}

func (s *Sensors) Normal(ctx context.Context, m measurement.Metric, q Query) (NormalReport, error) {
	id, readings, err := s.history(ctx, m, q)
	if err != nil {
		return NormalReport{}, err
	}

	fit, err := probability.FitNormal(measurement.Values(readings, m))
	if err != nil {
		return NormalReport{}, fmt.Errorf("service: fitting normal to %s: %w", m.Name, err)
	}

	return NormalReport{Metric: m.Name, SensorID: id, Fit: fit}, nil
}

// BinomialReport is a binomial fit labeled with what it models.
type BinomialReport struct {
	probability.BinomialFit
	Metric           string `json:"metric"`
	SensorID         string `json:"sensor_id"`
	AnalysisType     string `json:"analysis_type"`
	SuccessCondition string `json:"success_condition"`
}

func (s *Sensors) Binomial(ctx context.Context, m measurement.Metric, q Query) (BinomialReport, error) {
	id, readings, err := s.history(ctx, m, q)
	if err != nil {
		return BinomialReport{}, err
	}

	fit, cond, err := s.binomial(m, measurement.Values(readings, m))
	if err != nil {
		return BinomialReport{}, fmt.Errorf("service: fitting binomial to %s: %w", m.Name, err)
	}

	return BinomialReport{
		BinomialFit:      fit,
		Metric:           m.Name,
		SensorID:         id,
		AnalysisType:     "binomial distribution of " + cond.Desc,
		SuccessCondition: cond.Desc,
	}, nil
}

// Update is the message pushed to live humidity subscribers.
type Update struct {
	Type string       `json:"type"`
	Data MetricReport `json:"data"`
}

// HumidityUpdate reports on the most recent readings of the humidity sensor.
func (s *Sensors) HumidityUpdate(ctx context.Context) (Update, error) {
	m := measurement.Humidity
	id, err := s.sensorFor(m, "")
	if err != nil {
		return Update{}, err
	}

	readings, err := s.db.LastN(ctx, id, m, s.cfg.HistoryLimit)
	if err != nil {
		return Update{}, err
	}
	if len(readings) == 0 {
		return Update{}, fmt.Errorf("%w: no %s readings from sensor %s", ErrNoData, m.Name, id)
	}

	report, err := s.report(m, id, readings)
	if err != nil {
		return Update{}, err
	}
	return Update{Type: UpdateType, Data: report}, nil
}
