// Package probability fits probability models to samples of sensor readings:
// empirical joint distributions of two variables, binomial models of
// threshold events, and normal models with a goodness-of-fit test.
package probability

import (
	"fmt"

	"github.com/mtraver/sensorstats/stats"
)

// DefaultJointBins is the number of bins per axis used when callers don't
// choose one.
const DefaultJointBins = 10

// PairedSample is two samples of equal length whose values at the same index
// were observed together.
type PairedSample struct {
	X []float64
	Y []float64
}

// Cell is one populated entry of a JointTable.
type Cell struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Probability float64 `json:"probability"`
}

// JointTable is an empirical joint probability mass function over binned X
// and Y values. Table[i][j] estimates P(X in bin i, Y in bin j).
type JointTable struct {
	XEdges stats.BinEdges `json:"x_bins"`
	YEdges stats.BinEdges `json:"y_bins"`
	Table  [][]float64    `json:"table"`
	Count  int            `json:"count"`
}

// Populated returns the non-zero cells in row-major order.
func (t JointTable) Populated() []Cell {
	var cells []Cell
	for i, row := range t.Table {
		for j, p := range row {
			if p > 0 {
				cells = append(cells, Cell{X: i, Y: j, Probability: p})
			}
		}
	}
	return cells
}

// MarginalX returns P(X in bin i) for every bin of X.
func (t JointTable) MarginalX() []float64 {
	m := make([]float64, len(t.Table))
	for i, row := range t.Table {
		for _, p := range row {
			m[i] += p
		}
	}
	return m
}

// MarginalY returns P(Y in bin j) for every bin of Y.
func (t JointTable) MarginalY() []float64 {
	m := make([]float64, t.YEdges.Bins())
	for _, row := range t.Table {
		for j, p := range row {
			m[j] += p
		}
	}
	return m
}

// JointProbability bins each axis of pair into bins equal-width bins over its
// own observed range and returns the normalized 2-D frequency table.
func JointProbability(pair PairedSample, bins int) (JointTable, error) {
	if bins < 1 {
		return JointTable{}, fmt.Errorf("%w: bin count must be >= 1, got %d", stats.ErrInvalidParameter, bins)
	}
	if len(pair.X) == 0 || len(pair.Y) == 0 {
		return JointTable{}, fmt.Errorf("%w: %w", stats.ErrInsufficientData, stats.ErrEmptySample)
	}
	if len(pair.X) != len(pair.Y) {
		return JointTable{}, fmt.Errorf("%w: paired samples differ in length (%d and %d)", stats.ErrInsufficientData, len(pair.X), len(pair.Y))
	}

	xEdges, err := stats.NewBinEdges(pair.X, bins)
	if err != nil {
		return JointTable{}, err
	}
	yEdges, err := stats.NewBinEdges(pair.Y, bins)
	if err != nil {
		return JointTable{}, err
	}

	table := make([][]float64, bins)
	for i := range table {
		table[i] = make([]float64, bins)
	}

	for i := range pair.X {
		table[xEdges.Index(pair.X[i])][yEdges.Index(pair.Y[i])]++
	}

	n := float64(len(pair.X))
	for _, row := range table {
		for j := range row {
			row[j] /= n
		}
	}

	return JointTable{
		XEdges: xEdges,
		YEdges: yEdges,
		Table:  table,
		Count:  len(pair.X),
	}, nil
}
