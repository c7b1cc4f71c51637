package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mtraver/sensorstats/measurement"
)

func TestWithBreaker(t *testing.T) {
	ctx := context.Background()
	errDown := errors.New("connection refused")
	fake := &fakeDB{err: errDown}

	db := WithBreaker(fake, BreakerSettings("test", BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour}))

	for i := 0; i < 2; i++ {
		if _, err := db.Latest(ctx, nil); !errors.Is(err, errDown) {
			t.Fatalf("call %d: want underlying error, got %v", i, err)
		}
	}

	// Tripped: the database is no longer called.
	fake.err = nil
	_, err := db.Since(ctx, "5", measurement.Humidity, testTimestamp)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("want ErrUnavailable wrapping ErrOpenState, got %v", err)
	}
	if n := len(fake.latestCalls); n != 2 {
		t.Errorf("want 2 database calls, got %d", n)
	}
}

func TestWithBreakerIgnoresCanceled(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDB{err: context.Canceled}

	db := WithBreaker(fake, BreakerSettings("test", BreakerConfig{ConsecutiveFailures: 1, OpenTimeout: time.Hour}))

	for i := 0; i < 3; i++ {
		if err := db.Ping(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: want context.Canceled, got %v", i, err)
		}
	}
}

func TestWithBreakerPassesResults(t *testing.T) {
	fake := &fakeDB{latest: map[string]measurement.Reading{"5": {SensorID: "5"}}}
	db := WithBreaker(fake, BreakerSettings("test", BreakerConfig{}))

	got, err := db.Latest(context.Background(), []string{"5"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := got["5"]; !ok {
		t.Errorf("want sensor 5 in result, got %v", got)
	}
}
