package db

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mtraver/sensorstats/cache"
	"github.com/mtraver/sensorstats/measurement"
)

type cachedDB struct {
	Database
	cache cache.Cache
}

// WithCache serves Latest from c where possible. Each sensor has a cache
// entry for its latest reading; Save updates it and Latest fills it on a
// miss.
func WithCache(db Database, c cache.Cache) Database {
	return &cachedDB{Database: db, cache: c}
}

func (db *cachedDB) Save(ctx context.Context, r *measurement.Reading) error {
	if err := db.Database.Save(ctx, r); err != nil {
		return err
	}

	key := measurement.CacheKeyLatest(r.SensorID)

	// Don't let a late-arriving old reading replace a newer cached one.
	var cur measurement.Reading
	if err := db.cache.Get(ctx, key, &cur); err == nil && cur.RecordedAt.After(r.RecordedAt) {
		return nil
	}

	if err := db.cache.Set(ctx, key, r); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("sensor_id", r.SensorID).Msg("Failed to update latest-reading cache")
	}
	return nil
}

func (db *cachedDB) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	// Without IDs there is no way to know which sensors exist, so go to the
	// database and remember what it says.
	if len(sensorIDs) == 0 {
		latest, err := db.Database.Latest(ctx, nil)
		if err != nil {
			return nil, err
		}
		for id, r := range latest {
			r := r
			if err := db.cache.Set(ctx, measurement.CacheKeyLatest(id), &r); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("sensor_id", id).Msg("Failed to update latest-reading cache")
			}
		}
		return latest, nil
	}

	latest := make(map[string]measurement.Reading)
	var missed []string
	for _, id := range sensorIDs {
		var r measurement.Reading
		err := db.cache.Get(ctx, measurement.CacheKeyLatest(id), &r)
		switch {
		case err == nil:
			latest[id] = r
		case errors.Is(err, cache.ErrCacheMiss):
			missed = append(missed, id)
		default:
			return latest, err
		}
	}

	if len(missed) == 0 {
		return latest, nil
	}

	fetched, err := db.Database.Latest(ctx, missed)
	if err != nil {
		return latest, err
	}
	for id, r := range fetched {
		r := r
		latest[id] = r
		// ErrNotStored means a concurrent Save got there first.
		if err := db.cache.Add(ctx, measurement.CacheKeyLatest(id), &r); err != nil && !errors.Is(err, cache.ErrNotStored) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("sensor_id", id).Msg("Failed to fill latest-reading cache")
		}
	}

	return latest, nil
}
