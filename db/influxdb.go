package db

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mtraver/sensorstats/measurement"
)

const (
	influxMeasurement = "reading"
	influxSensorTag   = "sensor"
)

func newInfluxDBPoints(r *measurement.Reading) []*write.Point {
	vm := r.ValueMap()
	points := make([]*write.Point, 0, len(vm))
	for name, v := range vm {
		p := influxdb2.NewPointWithMeasurement(influxMeasurement)
		if metric, ok := measurement.GetMetric(name); ok {
			p = p.AddField(metric.Abbrv, v)
		} else {
			p = p.AddField(name, v)
		}

		points = append(points, p.AddTag(influxSensorTag, r.SensorID).SetTime(r.RecordedAt))
	}

	return points
}

// InfluxDBConfig holds InfluxDB 2 connection settings.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// InfluxDB stores each metric of a reading as a field of a point tagged
// with the sensor ID.
type InfluxDB struct {
	client influxdb2.Client
	org    string
	bucket string
}

func NewInfluxDB(cfg InfluxDBConfig) *InfluxDB {
	return &InfluxDB{
		client: influxdb2.NewClient(cfg.URL, cfg.Token),
		org:    cfg.Org,
		bucket: cfg.Bucket,
	}
}

func (db *InfluxDB) Save(ctx context.Context, r *measurement.Reading) error {
	points := newInfluxDBPoints(r)
	if err := db.client.WriteAPIBlocking(db.org, db.bucket).WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("db: failed to write points: %w", err)
	}
	return nil
}

// fluxQuery builds a query over readings recorded at or after start,
// narrowed by the given filter predicates and followed by tail.
func (db *InfluxDB) fluxQuery(start time.Time, filters []string, tail string) string {
	preds := append([]string{fmt.Sprintf("r._measurement == %s", strconv.Quote(influxMeasurement))}, filters...)

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", strconv.Quote(db.bucket))
	fmt.Fprintf(&b, "  |> range(start: %s)\n", start.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", strings.Join(preds, " and "))
	if tail != "" {
		fmt.Fprintf(&b, "  |> %s\n", tail)
	}
	return b.String()
}

func sensorFilter(sensorID string) string {
	return fmt.Sprintf("r.%s == %s", influxSensorTag, strconv.Quote(sensorID))
}

func fieldFilter(m measurement.Metric) string {
	return fmt.Sprintf("r._field == %s", strconv.Quote(m.Abbrv))
}

func (db *InfluxDB) run(ctx context.Context, flux string, each func(*query.FluxRecord) error) error {
	result, err := db.client.QueryAPI(db.org).Query(ctx, flux)
	if err != nil {
		return fmt.Errorf("db: flux query failed: %w", err)
	}
	defer result.Close()

	for result.Next() {
		if err := each(result.Record()); err != nil {
			return err
		}
	}
	return result.Err()
}

// setField stores the value of the record's field in r.
func setField(r *measurement.Reading, rec *query.FluxRecord) error {
	v, ok := rec.Value().(float64)
	if !ok {
		return fmt.Errorf("db: field %q has non-float value %v", rec.Field(), rec.Value())
	}

	m, ok := measurement.GetMetric(rec.Field())
	if !ok {
		return nil
	}
	r.SetValue(m, v)
	return nil
}

func recordSensor(rec *query.FluxRecord) string {
	s, _ := rec.ValueByKey(influxSensorTag).(string)
	return s
}

func (db *InfluxDB) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	var filters []string
	if len(sensorIDs) > 0 {
		ors := make([]string, len(sensorIDs))
		for i, id := range sensorIDs {
			ors[i] = sensorFilter(id)
		}
		filters = append(filters, "("+strings.Join(ors, " or ")+")")
	}

	latest := make(map[string]measurement.Reading)
	err := db.run(ctx, db.fluxQuery(time.Unix(0, 0), filters, "last()"), func(rec *query.FluxRecord) error {
		id := recordSensor(rec)
		r := latest[id]
		r.SensorID = id
		if rec.Time().After(r.RecordedAt) {
			r.RecordedAt = rec.Time()
		}
		if err := setField(&r, rec); err != nil {
			return err
		}
		latest[id] = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return latest, nil
}

func (db *InfluxDB) collect(ctx context.Context, flux string) ([]measurement.Reading, error) {
	var readings []measurement.Reading
	err := db.run(ctx, flux, func(rec *query.FluxRecord) error {
		r := measurement.Reading{SensorID: recordSensor(rec), RecordedAt: rec.Time()}
		if err := setField(&r, rec); err != nil {
			return err
		}
		readings = append(readings, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(readings, func(i, j int) bool { return readings[i].RecordedAt.Before(readings[j].RecordedAt) })
	return readings, nil
}

func (db *InfluxDB) Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error) {
	flux := db.fluxQuery(start, []string{sensorFilter(sensorID), fieldFilter(m)}, `sort(columns: ["_time"])`)
	return db.collect(ctx, flux)
}

func (db *InfluxDB) LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error) {
	flux := db.fluxQuery(time.Unix(0, 0), []string{sensorFilter(sensorID), fieldFilter(m)}, fmt.Sprintf("tail(n: %d)", n))
	return db.collect(ctx, flux)
}

func (db *InfluxDB) Ping(ctx context.Context) error {
	ok, err := db.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !ok {
		return ErrUnavailable
	}
	return nil
}

func (db *InfluxDB) Close() error {
	db.client.Close()
	return nil
}
