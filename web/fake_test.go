package web

import (
	"context"
	"time"

	"github.com/mtraver/sensorstats/measurement"
)

// fakeDB holds readings per sensor, oldest first.
type fakeDB struct {
	readings map[string][]measurement.Reading
	err      error
}

func (f *fakeDB) Save(ctx context.Context, r *measurement.Reading) error {
	if f.err != nil {
		return f.err
	}
	f.readings[r.SensorID] = append(f.readings[r.SensorID], *r)
	return nil
}

func (f *fakeDB) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	latest := make(map[string]measurement.Reading)
	for id, rs := range f.readings {
		if len(rs) > 0 {
			latest[id] = rs[len(rs)-1]
		}
	}
	return latest, nil
}

func (f *fakeDB) Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []measurement.Reading
	for _, r := range f.readings[sensorID] {
		if _, ok := r.Value(m); ok && !r.RecordedAt.Before(start) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDB) LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []measurement.Reading
	for _, r := range f.readings[sensorID] {
		if _, ok := r.Value(m); ok {
			out = append(out, r)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (f *fakeDB) Ping(ctx context.Context) error {
	return f.err
}

func (f *fakeDB) Close() error {
	return nil
}
