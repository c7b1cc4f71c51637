// Package db stores and retrieves sensor readings.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/mtraver/sensorstats/measurement"
)

// ErrUnavailable is returned when the backing store can't be reached or has
// been failing recently enough that it isn't being tried.
var ErrUnavailable = errors.New("db: unavailable")

// Database is a store of readings. Readings returned by Since and LastN
// carry the requested metric and are ordered oldest first.
type Database interface {
	// Save stores r. Saving a reading that is already stored is not an error
	// and makes no change.
	Save(ctx context.Context, r *measurement.Reading) error

	// Latest gets the most recent reading of each of the given sensors, or of
	// every sensor if sensorIDs is empty. A sensor with no readings is absent
	// from the map.
	Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error)

	// Since gets every reading of the sensor carrying m recorded at or after start.
	Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error)

	// LastN gets the n most recent readings of the sensor carrying m.
	LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error)

	Ping(ctx context.Context) error
	Close() error
}

func reverse(readings []measurement.Reading) {
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
}

// withMetric drops readings that don't carry m.
func withMetric(readings []measurement.Reading, m measurement.Metric) []measurement.Reading {
	kept := readings[:0]
	for _, r := range readings {
		if _, ok := r.Value(m); ok {
			kept = append(kept, r)
		}
	}
	return kept
}
