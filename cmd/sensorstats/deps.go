package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mtraver/sensorstats/cache"
	"github.com/mtraver/sensorstats/config"
	"github.com/mtraver/sensorstats/db"
	"github.com/mtraver/sensorstats/ingest"
	"github.com/mtraver/sensorstats/service"
	"github.com/mtraver/sensorstats/web"
)

const redisPrefix = "sensorstats:"

// store is the database and cache the commands run against.
type store struct {
	Database db.Database
	Mirror   db.Database
	Cache    cache.Cache

	closers []func() error
}

func (s *store) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, c config.Database, createSchema bool) (db.Database, error) {
	switch c.Backend {
	case config.BackendPostgres:
		sql, err := db.OpenSQL(ctx, c.Postgres)
		if err != nil {
			return nil, err
		}
		if createSchema {
			if err := sql.CreateSchema(ctx); err != nil {
				sql.Close()
				return nil, err
			}
		}
		return sql, nil
	case config.BackendInfluxDB:
		return db.NewInfluxDB(c.InfluxDB), nil
	case config.BackendDatastore:
		return db.NewDatastore(ctx, c.Datastore.ProjectID)
	}
	return nil, fmt.Errorf("unknown database backend %q", c.Backend)
}

func openCache(ctx context.Context, c config.Cache) (cache.Cache, func() error, error) {
	switch c.Backend {
	case config.CacheNone:
		return nil, nil, nil
	case config.CacheLocal:
		return cache.NewLocal(), nil, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		rc := cache.NewRedis(client, redisPrefix, c.TTL)
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, nil, fmt.Errorf("redis at %s: %w", c.RedisAddr, err)
		}
		return rc, rc.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", c.Backend)
}

// openStore opens the configured backend behind a circuit breaker and the
// latest-reading cache, plus the InfluxDB mirror if one is configured.
func openStore(ctx context.Context, cfg config.Config, createSchema bool) (*store, error) {
	s := &store{}

	backend, err := openBackend(ctx, cfg.Database, createSchema)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, backend.Close)
	s.Database = db.WithBreaker(backend, db.BreakerSettings(cfg.Database.Backend, cfg.Database.Breaker))

	c, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		s.Close()
		return nil, err
	}
	if c != nil {
		s.Cache = c
		s.Database = db.WithCache(s.Database, c)
		if closeCache != nil {
			s.closers = append(s.closers, closeCache)
		}
	}

	if cfg.Database.MirrorInfluxDB && cfg.Database.Backend != config.BackendInfluxDB {
		mirror := db.NewInfluxDB(cfg.Database.InfluxDB)
		s.closers = append(s.closers, mirror.Close)
		s.Mirror = db.WithBreaker(mirror, db.BreakerSettings("influxdb-mirror", cfg.Database.Breaker))
	}

	log.Info().
		Str("backend", cfg.Database.Backend).
		Str("cache", cfg.Cache.Backend).
		Bool("mirror", s.Mirror != nil).
		Msg("Opened store")

	return s, nil
}

func (s *store) processor(cfg config.Config) ingest.Processor {
	return ingest.Processor{
		Database:       s.Database,
		Mirror:         s.Mirror,
		IgnoredSensors: cfg.Sensors.Ignored,
	}
}

func serviceConfig(cfg config.Config) service.Config {
	return service.Config{
		HumiditySensor:    cfg.Sensors.Humidity,
		PressureSensor:    cfg.Sensors.Pressure,
		Window:            cfg.Analysis.Window,
		HistoryLimit:      cfg.Analysis.HistoryLimit,
		JointBins:         cfg.Analysis.JointBins,
		AlignTolerance:    cfg.Analysis.AlignTolerance,
		HumidityThreshold: cfg.Analysis.HumidityThreshold,
	}
}

func webConfig(cfg config.HTTP) web.Config {
	return web.Config{
		Addr:           cfg.Addr,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}
}
