package cache

import (
	"context"
	"sync"

	"github.com/mtraver/sensorstats/measurement"
)

// Local is an in-process Cache. The zero value is not usable; use NewLocal.
type Local struct {
	mu    sync.Mutex
	cache map[string]measurement.Reading
	total int
	hits  int
}

func NewLocal() *Local {
	return &Local{
		cache: make(map[string]measurement.Reading),
	}
}

func (l *Local) Get(ctx context.Context, key string, r *measurement.Reading) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	got, ok := l.cache[key]
	if !ok {
		return ErrCacheMiss
	}

	l.hits++
	*r = got
	return nil
}

func (l *Local) Add(ctx context.Context, key string, r *measurement.Reading) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[key]; ok {
		return ErrNotStored
	}

	l.cache[key] = *r
	return nil
}

func (l *Local) Set(ctx context.Context, key string, r *measurement.Reading) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache[key] = *r
	return nil
}

func (l *Local) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Total: l.total,
		Hits:  l.hits,
	}
}
