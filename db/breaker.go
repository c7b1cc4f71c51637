package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/mtraver/sensorstats/measurement"
)

// BreakerConfig controls when WithBreaker stops calling the database.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	// OpenTimeout is how long the breaker stays open before letting a trial
	// call through.
	OpenTimeout time.Duration `yaml:"open_timeout"`
	// Interval clears the failure counts while closed. Zero never clears them.
	Interval time.Duration `yaml:"interval"`
}

// BreakerSettings converts cfg into gobreaker settings for a breaker called name.
func BreakerSettings(name string, cfg BreakerConfig) gobreaker.Settings {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.Settings{
		Name:     name,
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("Circuit breaker changed state")
		},
		// A caller giving up isn't the database failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

type breakerDB struct {
	db Database
	cb *gobreaker.CircuitBreaker
}

// WithBreaker guards db with a circuit breaker. While the breaker is open
// every call fails fast with ErrUnavailable.
func WithBreaker(db Database, st gobreaker.Settings) Database {
	return &breakerDB{db: db, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *breakerDB) execute(fn func() (interface{}, error)) (interface{}, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, err
}

func (b *breakerDB) Save(ctx context.Context, r *measurement.Reading) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.db.Save(ctx, r)
	})
	return err
}

func (b *breakerDB) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.db.Latest(ctx, sensorIDs)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]measurement.Reading), nil
}

func (b *breakerDB) Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.db.Since(ctx, sensorID, m, start)
	})
	if err != nil {
		return nil, err
	}
	return v.([]measurement.Reading), nil
}

func (b *breakerDB) LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.db.LastN(ctx, sensorID, m, n)
	})
	if err != nil {
		return nil, err
	}
	return v.([]measurement.Reading), nil
}

func (b *breakerDB) Ping(ctx context.Context) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.db.Ping(ctx)
	})
	return err
}

func (b *breakerDB) Close() error {
	return b.db.Close()
}
