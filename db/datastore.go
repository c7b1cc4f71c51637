package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/mtraver/sensorstats/measurement"
)

const (
	datastoreKind = "reading"

	// Datastore queries are limited to this many entities, and multiple queries
	// are made to fetch all results.
	queryLimit = 1000
)

// entity is the Datastore form of a reading. Metrics the sensor didn't
// report are left out instead of stored as null.
type entity measurement.Reading

func (e *entity) Save() ([]datastore.Property, error) {
	props := []datastore.Property{
		{Name: "sensor_id", Value: e.SensorID},
		{Name: "recorded_at", Value: e.RecordedAt},
		{Name: "sensor_name", Value: e.SensorName, NoIndex: true},
		{Name: "sensor_type", Value: e.SensorType, NoIndex: true},
	}
	for name, v := range measurement.Reading(*e).ValueMap() {
		props = append(props, datastore.Property{Name: name, Value: v, NoIndex: true})
	}
	return props, nil
}

func (e *entity) Load(props []datastore.Property) error {
	r := measurement.Reading{}
	for _, p := range props {
		switch p.Name {
		case "sensor_id":
			r.SensorID, _ = p.Value.(string)
		case "recorded_at":
			r.RecordedAt, _ = p.Value.(time.Time)
		case "sensor_name":
			r.SensorName, _ = p.Value.(string)
		case "sensor_type":
			r.SensorType, _ = p.Value.(string)
		default:
			m, ok := measurement.GetMetric(p.Name)
			if !ok {
				continue
			}
			v, ok := p.Value.(float64)
			if !ok {
				return fmt.Errorf("db: property %q has non-float value %v", p.Name, p.Value)
			}
			r.SetValue(m, v)
		}
	}

	*e = entity(r)
	return nil
}

type Datastore struct {
	projectID string
	client    *datastore.Client
}

func NewDatastore(ctx context.Context, projectID string) (*Datastore, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &Datastore{
		projectID: projectID,
		client:    client,
	}, nil
}

// Save saves the given Reading to the database. If the Reading already
// exists in the database it makes no change to the database and returns nil
// as the error.
func (db *Datastore) Save(ctx context.Context, r *measurement.Reading) error {
	key := datastore.NameKey(datastoreKind, r.DBKey(), nil)

	// Only store the reading if it doesn't exist
	_, err := db.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var x entity
		if err := tx.Get(key, &x); err != datastore.ErrNoSuchEntity {
			return err
		}

		_, err := tx.Put(key, (*entity)(r))
		return err
	})

	return err
}

func (db *Datastore) executeQuery(ctx context.Context, q *datastore.Query) ([]measurement.Reading, error) {
	var results []measurement.Reading

	// Don't modify the original query. We'll continue to derive queries from it
	// using a cursor to break apart the whole query into multiple smaller ones.
	derivedQuery := q.Limit(queryLimit)

	for {
		processed := 0

		it := db.client.Run(ctx, derivedQuery)
		for {
			var e entity
			_, err := it.Next(&e)
			if err == iterator.Done {
				cursor, err := it.Cursor()
				if err != nil {
					return nil, err
				}

				// The current query finished, so make a new one that starts
				// where it left off.
				derivedQuery = q.Start(cursor).Limit(queryLimit)
				break
			} else if err != nil {
				return nil, err
			}

			results = append(results, measurement.Reading(e))
			processed++
		}

		if processed < queryLimit {
			// The last query returned fewer results than the limit, meaning that a
			// subsequent query would return nothing, so we're done.
			break
		}
	}

	return results, nil
}

// sensorIDs lists every sensor with at least one reading.
func (db *Datastore) sensorIDs(ctx context.Context) ([]string, error) {
	q := datastore.NewQuery(datastoreKind).Project("sensor_id").DistinctOn("sensor_id")

	var rows []entity
	if _, err := db.client.GetAll(ctx, q, &rows); err != nil {
		return nil, err
	}

	ids := make([]string, len(rows))
	for i, e := range rows {
		ids[i] = e.SensorID
	}
	return ids, nil
}

func (db *Datastore) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	if len(sensorIDs) == 0 {
		var err error
		if sensorIDs, err = db.sensorIDs(ctx); err != nil {
			return nil, fmt.Errorf("db: failed to list sensors: %w", err)
		}
	}

	latest := make(map[string]measurement.Reading)
	for _, id := range sensorIDs {
		if _, ok := latest[id]; ok {
			continue
		}

		var e entity
		q := datastore.NewQuery(datastoreKind).Filter("sensor_id =", id).Order("-recorded_at").Limit(1)
		it := db.client.Run(ctx, q)
		_, err := it.Next(&e)
		if err == iterator.Done {
			// Nothing found in the Datastore
			continue
		} else if err != nil {
			return latest, err
		}

		latest[id] = measurement.Reading(e)
	}

	return latest, nil
}

// Since gets readings with a timestamp greater than or equal to start.
// Datastore can't filter on a missing property, so readings without m are
// dropped after the query.
func (db *Datastore) Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error) {
	q := datastore.NewQuery(datastoreKind).Filter("sensor_id =", sensorID).Filter("recorded_at >=", start).Order("recorded_at")
	readings, err := db.executeQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	return withMetric(readings, m), nil
}

// LastN pages backwards through the sensor's readings until it has n that
// carry m or runs out of readings.
func (db *Datastore) LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error) {
	q := datastore.NewQuery(datastoreKind).Filter("sensor_id =", sensorID).Order("-recorded_at")

	var results []measurement.Reading
	it := db.client.Run(ctx, q)
	for len(results) < n {
		var e entity
		_, err := it.Next(&e)
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, err
		}

		r := measurement.Reading(e)
		if _, ok := r.Value(m); ok {
			results = append(results, r)
		}
	}

	reverse(results)
	return results, nil
}

func (db *Datastore) Ping(ctx context.Context) error {
	q := datastore.NewQuery(datastoreKind).KeysOnly().Limit(1)
	if _, err := db.client.GetAll(ctx, q, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (db *Datastore) Close() error {
	return db.client.Close()
}
