package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mtraver/sensorstats/measurement"
)

type fakeDB struct {
	saved []measurement.Reading
	err   error
}

func (f *fakeDB) Save(ctx context.Context, r *measurement.Reading) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *r)
	return nil
}

func (f *fakeDB) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	return nil, nil
}

func (f *fakeDB) Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error) {
	return nil, nil
}

func (f *fakeDB) LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error) {
	return nil, nil
}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }

func TestShouldIgnore(t *testing.T) {
	cases := []struct {
		name     string
		ignored  []string
		sensorID string
		want     bool
	}{
		{
			name:     "empty",
			ignored:  []string{},
			sensorID: "orange",
			want:     false,
		},
		{
			name:     "empty_str",
			ignored:  []string{""},
			sensorID: "orange",
			want:     false,
		},
		{
			name:     "allow",
			ignored:  []string{"kiwi"},
			sensorID: "orange",
			want:     false,
		},
		{
			name:     "allow_multiple",
			ignored:  []string{"strawberry", "blueberry"},
			sensorID: "orange",
			want:     false,
		},
		{
			name:     "ignore",
			ignored:  []string{"orange"},
			sensorID: "orange",
			want:     true,
		},
		{
			name:     "ignore_substr",
			ignored:  []string{"ran"},
			sensorID: "orange",
			want:     true,
		},
		{
			name:     "ignore_multiple",
			ignored:  []string{"kiwi", "strawberry", "ran"},
			sensorID: "orange",
			want:     true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := Processor{IgnoredSensors: c.ignored}
			got := p.shouldIgnore(c.sensorID)
			if got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestProcess(t *testing.T) {
	const payload = `{"sensor_id":"5","humidity":81.5,"recorded_at":"2024-03-01T12:00:00Z"}`

	want := []measurement.Reading{{
		SensorID:   "5",
		Humidity:   measurement.Float(81.5),
		RecordedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}}

	primary, mirror := &fakeDB{}, &fakeDB{}
	p := Processor{Database: primary, Mirror: mirror, IgnoredSensors: []string{"test"}}

	got, err := p.Process(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != Saved {
		t.Errorf("want %v, got %v", Saved, got)
	}

	if diff := cmp.Diff(primary.saved, want); diff != "" {
		t.Errorf("Unexpected primary (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(mirror.saved, want); diff != "" {
		t.Errorf("Unexpected mirror (-got +want):\n%s", diff)
	}
}

func TestProcessIgnored(t *testing.T) {
	primary := &fakeDB{}
	p := Processor{Database: primary, IgnoredSensors: []string{"test"}}

	got, err := p.Process(context.Background(), []byte(`{"sensor_id":"test-5","humidity":50,"recorded_at":"2024-03-01T12:00:00Z"}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != Ignored || len(primary.saved) != 0 {
		t.Errorf("want reading ignored, got %v with %d saved", got, len(primary.saved))
	}
}

func TestProcessErrors(t *testing.T) {
	saveErr := errors.New("disk full")

	cases := []struct {
		name    string
		db      *fakeDB
		payload string
		want    error
	}{
		{"bad_json", &fakeDB{}, `{"sensor_id":`, ErrInvalidReading},
		{"no_sensor", &fakeDB{}, `{"humidity":50,"recorded_at":"2024-03-01T12:00:00Z"}`, ErrInvalidReading},
		{"save_failed", &fakeDB{err: saveErr}, `{"sensor_id":"5","humidity":50,"recorded_at":"2024-03-01T12:00:00Z"}`, saveErr},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := Processor{Database: c.db}
			if _, err := p.Process(context.Background(), []byte(c.payload)); !errors.Is(err, c.want) {
				t.Errorf("want %v, got %v", c.want, err)
			}
		})
	}
}

func TestMirrorFailureNotReturned(t *testing.T) {
	primary := &fakeDB{}
	p := Processor{Database: primary, Mirror: &fakeDB{err: errors.New("influx down")}}

	r := &measurement.Reading{SensorID: "6", Pressure: measurement.Float(1013), RecordedAt: time.Now().UTC()}
	if _, err := p.Store(context.Background(), r); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if len(primary.saved) != 1 {
		t.Errorf("want 1 saved reading, got %d", len(primary.saved))
	}
}
