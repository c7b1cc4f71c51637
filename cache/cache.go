// Package cache holds the latest reading of each sensor so that hot paths
// don't hit the database.
package cache

import (
	"context"
	"errors"

	"github.com/mtraver/sensorstats/measurement"
)

var (
	ErrCacheMiss = errors.New("cache: cache miss")
	ErrNotStored = errors.New("cache: item not stored")
)

type Stats struct {
	Total int `json:"total"`
	Hits  int `json:"hits"`
}

// Cache stores readings by key. Add stores only if the key is absent and
// returns ErrNotStored otherwise; Set always stores.
type Cache interface {
	Get(ctx context.Context, key string, r *measurement.Reading) error
	Add(ctx context.Context, key string, r *measurement.Reading) error
	Set(ctx context.Context, key string, r *measurement.Reading) error
	Stats() Stats
}
