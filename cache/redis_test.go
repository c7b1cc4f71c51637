package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mtraver/sensorstats/measurement"
)

// newTestRedis connects to the server named by REDIS_ADDR, skipping the test
// when it isn't set. Keys are namespaced so runs don't interfere.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	c := NewRedis(redis.NewClient(&redis.Options{Addr: addr}), fmt.Sprintf("test-%s:", uuid.NewString()), time.Minute)
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func TestRedis(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	var got measurement.Reading
	if err := c.Get(ctx, "foo", &got); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("want ErrCacheMiss, got %v", err)
	}

	r := testReading
	if err := c.Add(ctx, "foo", &r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Add(ctx, "foo", &r); !errors.Is(err, ErrNotStored) {
		t.Errorf("want ErrNotStored, got %v", err)
	}

	r.Humidity = measurement.Float(12)
	if err := c.Set(ctx, "foo", &r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Get(ctx, "foo", &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, r); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}

	if diff := cmp.Diff(c.Stats(), Stats{Total: 2, Hits: 1}); diff != "" {
		t.Errorf("Unexpected stats (-got +want):\n%s", diff)
	}
}
