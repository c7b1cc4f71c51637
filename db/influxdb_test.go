package db

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mtraver/sensorstats/measurement"
)

func TestNewInfluxDBPoints(t *testing.T) {
	cases := []struct {
		name string
		r    measurement.Reading
		want []*write.Point
	}{
		{
			name: "many",
			r: measurement.Reading{
				SensorID:    "foo",
				RecordedAt:  testTimestamp,
				Temperature: measurement.Float(18.5),
				Humidity:    measurement.Float(55.0),
				Pressure:    measurement.Float(1013.0),
			},
			want: []*write.Point{
				influxdb2.NewPointWithMeasurement("reading").AddTag("sensor", "foo").AddField("temp", 18.5).SetTime(testTimestamp),
				influxdb2.NewPointWithMeasurement("reading").AddTag("sensor", "foo").AddField("rh", 55.0).SetTime(testTimestamp),
				influxdb2.NewPointWithMeasurement("reading").AddTag("sensor", "foo").AddField("pres", 1013.0).SetTime(testTimestamp),
			},
		},
		{
			name: "none",
			r:    measurement.Reading{SensorID: "foo", RecordedAt: testTimestamp},
			want: []*write.Point{},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := newInfluxDBPoints(&c.r)

			// Sort slices before comparing them. Sort by the key of the first field, which is
			// brittle, but since in this case we only have one field per Point it works.
			sort.Slice(got, func(i, j int) bool {
				return got[i].FieldList()[0].Key < got[j].FieldList()[0].Key
			})
			sort.Slice(c.want, func(i, j int) bool {
				return c.want[i].FieldList()[0].Key < c.want[j].FieldList()[0].Key
			})

			if diff := cmp.Diff(got, c.want, cmp.AllowUnexported(write.Point{})); diff != "" {
				t.Errorf("Unexpected result (-got +want):\n%s", diff)
			}
		})
	}
}

func TestFluxQuery(t *testing.T) {
	db := &InfluxDB{bucket: "sensors"}

	got := db.fluxQuery(
		time.Date(2018, time.March, 25, 0, 0, 0, 0, time.UTC),
		[]string{sensorFilter("5"), fieldFilter(measurement.Humidity)},
		"tail(n: 50)")

	for _, want := range []string{
		`from(bucket: "sensors")`,
		`range(start: 2018-03-25T00:00:00Z)`,
		`filter(fn: (r) => r._measurement == "reading" and r.sensor == "5" and r._field == "rh")`,
		`|> tail(n: 50)`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("query %q does not contain %q", got, want)
		}
	}
}
