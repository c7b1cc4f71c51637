package db

import (
	"context"
	"sync"
	"time"

	"github.com/mtraver/sensorstats/measurement"
)

// fakeDB records calls and returns canned results.
type fakeDB struct {
	mu          sync.Mutex
	err         error
	latest      map[string]measurement.Reading
	saved       []measurement.Reading
	latestCalls [][]string
}

func (f *fakeDB) Save(ctx context.Context, r *measurement.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *r)
	return nil
}

func (f *fakeDB) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latestCalls = append(f.latestCalls, sensorIDs)
	if f.err != nil {
		return nil, f.err
	}

	out := make(map[string]measurement.Reading)
	for id, r := range f.latest {
		if len(sensorIDs) == 0 {
			out[id] = r
			continue
		}
		for _, want := range sensorIDs {
			if want == id {
				out[id] = r
			}
		}
	}
	return out, nil
}

func (f *fakeDB) Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error) {
	return nil, f.err
}

func (f *fakeDB) LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error) {
	return nil, f.err
}

func (f *fakeDB) Ping(ctx context.Context) error {
	return f.err
}

func (f *fakeDB) Close() error {
	return nil
}
