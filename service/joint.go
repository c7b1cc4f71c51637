package service

import (
	"context"
	"fmt"

	"github.com/mtraver/sensorstats/measurement"
	"github.com/mtraver/sensorstats/probability"
	"github.com/mtraver/sensorstats/stats"
)

// JointQuery selects the window and resolution of a joint analysis. Zero
// values use the configured defaults.
type JointQuery struct {
	Days int
	Bins int
}

type JointProbability struct {
	Table            [][]float64        `json:"table"`
	Cells            []probability.Cell `json:"cells"`
	HumidityBins     stats.BinEdges     `json:"humidity_bins"`
	PressureBins     stats.BinEdges     `json:"pressure_bins"`
	HumidityMarginal []float64          `json:"humidity_marginal"`
	PressureMarginal []float64          `json:"pressure_marginal"`
}

type JointBinomials struct {
	Humidity probability.BinomialFit `json:"humidity"`
	Pressure probability.BinomialFit `json:"pressure"`
}

// JointReport is the joint distribution of humidity and pressure readings
// taken at about the same time, with the binomial model of each.
type JointReport struct {
	Joint      JointProbability `json:"joint_probability"`
	Binomial   JointBinomials   `json:"binomial_analysis"`
	DataPoints int              `json:"data_points"`
}

func (s *Sensors) Joint(ctx context.Context, q JointQuery) (JointReport, error) {
	bins := q.Bins
	if bins == 0 {
		bins = s.cfg.JointBins
	}

	_, hum, err := s.history(ctx, measurement.Humidity, Query{Days: q.Days})
	if err != nil {
		return JointReport{}, err
	}
	_, pres, err := s.history(ctx, measurement.Pressure, Query{Days: q.Days})
	if err != nil {
		return JointReport{}, err
	}

	pair, err := measurement.Align(hum, pres, measurement.Humidity, measurement.Pressure, s.cfg.AlignTolerance)
	if err != nil {
		return JointReport{}, err
	}
	if len(pair.X) == 0 {
		return JointReport{}, fmt.Errorf("%w: no humidity and pressure readings within %v of each other", ErrNoData, s.cfg.AlignTolerance)
	}

	table, err := probability.JointProbability(pair, bins)
	if err != nil {
		return JointReport{}, fmt.Errorf("service: joint probability: %w", err)
	}

	humFit, _, err := s.binomial(measurement.Humidity, measurement.Values(hum, measurement.Humidity))
	if err != nil {
		return JointReport{}, fmt.Errorf("service: fitting binomial to humidity: %w", err)
	}
	presFit, _, err := s.binomial(measurement.Pressure, measurement.Values(pres, measurement.Pressure))
	if err != nil {
		return JointReport{}, fmt.Errorf("service: fitting binomial to pressure: %w", err)
	}

	return JointReport{
		Joint: JointProbability{
			Table:            table.Table,
			Cells:            table.Populated(),
			HumidityBins:     table.XEdges,
			PressureBins:     table.YEdges,
			HumidityMarginal: table.MarginalX(),
			PressureMarginal: table.MarginalY(),
		},
		Binomial:   JointBinomials{Humidity: humFit, Pressure: presFit},
		DataPoints: table.Count,
	}, nil
}
