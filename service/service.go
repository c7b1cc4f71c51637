// Package service runs the statistical analyses over readings fetched from a
// db.Database. It is the layer between the HTTP and push handlers and the
// stats and probability packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtraver/sensorstats/db"
	"github.com/mtraver/sensorstats/measurement"
	"github.com/mtraver/sensorstats/probability"
	"github.com/mtraver/sensorstats/stats"
)

// ErrNoData is returned when the database has no readings to analyze.
var ErrNoData = errors.New("service: no data")

// MaxDays is the widest history window a query may ask for.
const MaxDays = 36500

// UpdateType tags the messages pushed to live humidity subscribers.
const UpdateType = "humidity_update"

type Config struct {
	HumiditySensor    string
	PressureSensor    string
	Window            time.Duration
	HistoryLimit      int
	JointBins         int
	AlignTolerance    time.Duration
	HumidityThreshold float64
}

// Sensors answers analysis queries about the readings in a database.
type Sensors struct {
	db  db.Database
	cfg Config
	now func() time.Time
}

func New(database db.Database, cfg Config) *Sensors {
	if cfg.JointBins <= 0 {
		cfg.JointBins = probability.DefaultJointBins
	}
	return &Sensors{
		db:  database,
		cfg: cfg,
		now: time.Now,
	}
}

// Query selects the readings an analysis runs over. A zero SensorID uses the
// sensor configured for the metric and zero Days uses the configured window.
type Query struct {
	SensorID string
	Days     int
}

// Ping reports whether the database is reachable.
func (s *Sensors) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// SensorData is the latest reading of every sensor.
type SensorData struct {
	Sensors []measurement.Reading `json:"sensors"`
}

func (s *Sensors) SensorData(ctx context.Context) (SensorData, error) {
	latest, err := s.db.Latest(ctx, nil)
	if err != nil {
		return SensorData{}, err
	}
	if len(latest) == 0 {
		return SensorData{}, fmt.Errorf("%w: no sensor readings", ErrNoData)
	}

	readings := make([]measurement.Reading, 0, len(latest))
	for _, r := range latest {
		readings = append(readings, r)
	}
	sort.Slice(readings, func(i, j int) bool {
		return lessID(readings[i].SensorID, readings[j].SensorID)
	})

	return SensorData{Sensors: readings}, nil
}

// lessID orders numeric sensor IDs numerically and puts them before any
// others, which are ordered lexically.
func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

func (s *Sensors) sensorFor(m measurement.Metric, id string) (string, error) {
	if id != "" {
		return id, nil
	}

	switch m.Name {
	case measurement.Humidity.Name:
		id = s.cfg.HumiditySensor
	case measurement.Pressure.Name:
		id = s.cfg.PressureSensor
	}
	if id == "" {
		return "", fmt.Errorf("%w: no default sensor for %s", stats.ErrInvalidParameter, m.Name)
	}
	return id, nil
}

func (s *Sensors) window(days int) (time.Duration, error) {
	switch {
	case days < 0:
		return 0, fmt.Errorf("%w: days must be >= 1, got %d", stats.ErrInvalidParameter, days)
	case days == 0:
		return s.cfg.Window, nil
	case days > MaxDays:
		return 0, fmt.Errorf("%w: days must be <= %d, got %d", stats.ErrInvalidParameter, MaxDays, days)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// history gets the readings of m from the queried sensor within the queried
// window. It returns ErrNoData rather than an empty slice.
func (s *Sensors) history(ctx context.Context, m measurement.Metric, q Query) (string, []measurement.Reading, error) {
	id, err := s.sensorFor(m, q.SensorID)
	if err != nil {
		return "", nil, err
	}
	window, err := s.window(q.Days)
	if err != nil {
		return "", nil, err
	}

	start := s.now().UTC().Add(-window)
	readings, err := s.db.Since(ctx, id, m, start)
	if err != nil {
		return "", nil, err
	}
	if len(readings) == 0 {
		return "", nil, fmt.Errorf("%w: no %s readings from sensor %s since %s", ErrNoData, m.Name, id, start.Format(time.RFC3339))
	}

	zerolog.Ctx(ctx).Debug().
		Str("metric", m.Name).
		Str("sensor", id).
		Int("readings", len(readings)).
		Msg("fetched history")

	return id, readings, nil
}
