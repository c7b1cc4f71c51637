package measurement

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Used for separating substrings in database and cache keys. The octothorpe is
// fine for this because sensor IDs and timestamps, the two things most likely
// to be used in keys, can't contain it.
const keySep = "#"

var sensorIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9+.%~_-]{0,254}$`)

// Reading is one row of sensor output. Metrics the sensor doesn't measure are
// nil.
type Reading struct {
	ID          int64     `json:"id" db:"id"`
	SensorID    string    `json:"sensor_id" db:"sensor_id"`
	SensorName  string    `json:"sensor_name,omitempty" db:"name"`
	SensorType  string    `json:"sensor_type,omitempty" db:"type"`
	Temperature *float64  `json:"temperature" db:"temperature"`
	Humidity    *float64  `json:"humidity" db:"humidity"`
	Pressure    *float64  `json:"pressure" db:"pressure"`
	Voltage     *float64  `json:"voltage,omitempty" db:"voltage"`
	Current     *float64  `json:"current,omitempty" db:"current"`
	RecordedAt  time.Time `json:"recorded_at" db:"recorded_at"`
}

// Value returns the reading's value of m, or false if the sensor didn't
// report it.
func (r Reading) Value(m Metric) (float64, bool) {
	var p *float64
	switch m.Name {
	case Temperature.Name:
		p = r.Temperature
	case Humidity.Name:
		p = r.Humidity
	case Pressure.Name:
		p = r.Pressure
	case Voltage.Name:
		p = r.Voltage
	case Current.Name:
		p = r.Current
	}

	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetValue sets the reading's value of m. Unknown metrics are ignored.
func (r *Reading) SetValue(m Metric, v float64) {
	p := Float(v)
	switch m.Name {
	case Temperature.Name:
		r.Temperature = p
	case Humidity.Name:
		r.Humidity = p
	case Pressure.Name:
		r.Pressure = p
	case Voltage.Name:
		r.Voltage = p
	case Current.Name:
		r.Current = p
	}
}

// ValueMap returns a map of metric name to value for every metric present in
// the reading.
func (r Reading) ValueMap() map[string]float64 {
	vals := make(map[string]float64)
	for _, m := range metrics {
		if v, ok := r.Value(m); ok {
			vals[m.Name] = v
		}
	}
	return vals
}

// Validate checks that the reading identifies its sensor, carries a
// timestamp and at least one finite metric value.
func (r Reading) Validate() error {
	if !sensorIDRegex.MatchString(r.SensorID) {
		return fmt.Errorf("measurement: invalid sensor ID %q", r.SensorID)
	}
	if r.RecordedAt.IsZero() {
		return errors.New("measurement: missing recorded_at")
	}

	vals := r.ValueMap()
	if len(vals) == 0 {
		return errors.New("measurement: reading has no values")
	}
	for name, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("measurement: non-finite %s value %v", name, v)
		}
	}

	return nil
}

// DBKey returns a string key suitable for Datastore. It promotes sensor ID and timestamp into the key.
func (r Reading) DBKey() string {
	return strings.Join([]string{r.SensorID, r.RecordedAt.UTC().Format(time.RFC3339Nano)}, keySep)
}

func (r Reading) String() string {
	var parts []string
	for _, m := range Metrics() {
		if v, ok := r.Value(m); ok {
			parts = append(parts, fmt.Sprintf("%.3f%s", v, m.Unit))
		}
	}

	id := r.SensorID
	if id == "" {
		id = "[unknown]"
	}

	fields := append([]string{id}, parts...)
	return strings.Join(append(fields, r.RecordedAt.Format(time.RFC3339)), " ")
}

// CacheKeyLatest returns the cache key of the latest reading for the given sensor ID.
func CacheKeyLatest(sensorID string) string {
	return strings.Join([]string{sensorID, "latest"}, keySep)
}

// Float returns a pointer to v, for building readings in code.
func Float(v float64) *float64 {
	return &v
}
