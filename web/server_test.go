package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mtraver/sensorstats/cache"
	"github.com/mtraver/sensorstats/db"
	"github.com/mtraver/sensorstats/ingest"
	"github.com/mtraver/sensorstats/measurement"
	"github.com/mtraver/sensorstats/service"
)

func testDB() *fakeDB {
	base := time.Now().UTC().Add(-time.Hour)
	rs := map[string][]measurement.Reading{}
	for i, v := range []float64{70, 85, 90, 60} {
		at := base.Add(time.Duration(i) * time.Minute)
		rs["5"] = append(rs["5"], measurement.Reading{SensorID: "5", Humidity: measurement.Float(v), RecordedAt: at})
	}
	for i, v := range []float64{1000, 1010, 1020, 1030} {
		at := base.Add(time.Duration(i)*time.Minute + 5*time.Second)
		rs["6"] = append(rs["6"], measurement.Reading{SensorID: "6", Pressure: measurement.Float(v), RecordedAt: at})
	}
	return &fakeDB{readings: rs}
}

func testSensors(d db.Database) *service.Sensors {
	return service.New(d, service.Config{
		HumiditySensor:    "5",
		PressureSensor:    "6",
		Window:            7 * 24 * time.Hour,
		HistoryLimit:      50,
		JointBins:         10,
		AlignTolerance:    time.Minute,
		HumidityThreshold: 80,
	})
}

func testConfig() Config {
	return Config{CORSOrigins: []string{"*"}, RequestTimeout: 5 * time.Second}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var v map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Could not decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		db     *fakeDB
		target string
		want   int
	}{
		{"root", testDB(), "/", http.StatusOK},
		{"sensors", testDB(), "/api/sensors-data", http.StatusOK},
		{"humidity", testDB(), "/api/humidity-stats", http.StatusOK},
		{"pressure", testDB(), "/api/pressure-stats", http.StatusOK},
		{"advanced", testDB(), "/api/metrics/pressure/advanced", http.StatusOK},
		{"normal", testDB(), "/api/metrics/rh/normal?days=2", http.StatusOK},
		{"binomial", testDB(), "/api/probability/binomial", http.StatusOK},
		{"joint", testDB(), "/api/probability/joint?days=7&bins=2", http.StatusOK},
		{"unknown_metric", testDB(), "/api/metrics/wind/stats", http.StatusNotFound},
		{"unknown_kind", testDB(), "/api/metrics/humidity/median", http.StatusNotFound},
		{"unknown_route", testDB(), "/api/nope", http.StatusNotFound},
		{"bad_days", testDB(), "/api/metrics/humidity/stats?days=week", http.StatusBadRequest},
		{"negative_days", testDB(), "/api/humidity-stats?days=-3", http.StatusBadRequest},
		{"too_many_days", testDB(), "/api/probability/joint?days=200000", http.StatusBadRequest},
		{"zero_bins", testDB(), "/api/probability/joint?bins=0", http.StatusBadRequest},
		{"no_default_sensor", testDB(), "/api/metrics/temperature/stats", http.StatusBadRequest},
		{"no_data", &fakeDB{readings: map[string][]measurement.Reading{}}, "/api/humidity-stats", http.StatusNotFound},
		{"unavailable", &fakeDB{err: db.ErrUnavailable}, "/api/pressure-stats", http.StatusServiceUnavailable},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := New(testConfig(), testSensors(c.db))

			rec := do(t, s.Handler(), http.MethodGet, c.target, "")
			if rec.Code != c.want {
				t.Errorf("want %d, got %d: %s", c.want, rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("want JSON content type, got %q", ct)
			}
		})
	}
}

func TestHumidityStats(t *testing.T) {
	s := New(testConfig(), testSensors(testDB()))

	rec := do(t, s.Handler(), http.MethodGet, "/api/humidity-stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Stats struct {
			Count int     `json:"count"`
			Mean  float64 `json:"mean"`
		} `json:"stats"`
		Probability struct {
			Analysis struct {
				Binomial struct {
					Successes int       `json:"successes"`
					PMF       []float64 `json:"pmf"`
				} `json:"binomial"`
			} `json:"probability_analysis"`
		} `json:"probability"`
		Data []measurement.Point `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.Stats.Count != 4 || got.Stats.Mean != 76.25 || len(got.Data) != 4 {
		t.Errorf("unexpected stats: %s", rec.Body.String())
	}
	if b := got.Probability.Analysis.Binomial; b.Successes != 2 || len(b.PMF) != 5 {
		t.Errorf("unexpected binomial: %s", rec.Body.String())
	}
}

func TestJointResponse(t *testing.T) {
	s := New(testConfig(), testSensors(testDB()))

	rec := do(t, s.Handler(), http.MethodGet, "/api/probability/joint?bins=2", "")
	got := decode(t, rec)

	if n, ok := got["data_points"].(float64); !ok || n != 4 {
		t.Errorf("want 4 data points, got %v", got["data_points"])
	}
	joint, ok := got["joint_probability"].(map[string]any)
	if !ok {
		t.Fatalf("missing joint_probability in %s", rec.Body.String())
	}
	for _, k := range []string{"table", "humidity_bins", "pressure_bins"} {
		if _, ok := joint[k]; !ok {
			t.Errorf("missing %s in %s", k, rec.Body.String())
		}
	}
	if _, ok := got["binomial_analysis"].(map[string]any)["pressure"]; !ok {
		t.Errorf("missing pressure binomial in %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name       string
		db         *fakeDB
		wantStatus int
		want       map[string]any
	}{
		{"healthy", testDB(), http.StatusOK, map[string]any{"status": "healthy", "database": "connected"}},
		{"unhealthy", &fakeDB{err: db.ErrUnavailable}, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "error": db.ErrUnavailable.Error()}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := New(testConfig(), testSensors(c.db))

			rec := do(t, s.Handler(), http.MethodGet, "/health", "")
			if rec.Code != c.wantStatus {
				t.Errorf("want %d, got %d", c.wantStatus, rec.Code)
			}
			if diff := cmp.Diff(decode(t, rec), c.want); diff != "" {
				t.Errorf("Unexpected result (-got +want):\n%s", diff)
			}
		})
	}
}

func TestPush(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantCode  int
		wantSaved int
	}{
		{"saved", `{"sensor_id":"5","humidity":88,"recorded_at":"2024-03-01T12:00:00Z"}`, http.StatusCreated, 1},
		{"ignored", `{"sensor_id":"test-5","humidity":88,"recorded_at":"2024-03-01T12:00:00Z"}`, http.StatusAccepted, 0},
		{"invalid", `{"sensor_id":"5"}`, http.StatusBadRequest, 0},
		{"garbage", `{{{`, http.StatusBadRequest, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := &fakeDB{readings: map[string][]measurement.Reading{}}
			p := ingest.Processor{Database: d, IgnoredSensors: []string{"test"}}
			s := New(testConfig(), testSensors(d), WithProcessor(p))

			rec := do(t, s.Handler(), http.MethodPost, "/api/readings", c.body)
			if rec.Code != c.wantCode {
				t.Errorf("want %d, got %d: %s", c.wantCode, rec.Code, rec.Body.String())
			}
			if n := len(d.readings["5"]); n != c.wantSaved {
				t.Errorf("want %d saved, got %d", c.wantSaved, n)
			}
		})
	}
}

func TestPushTooLarge(t *testing.T) {
	d := &fakeDB{readings: map[string][]measurement.Reading{}}
	s := New(testConfig(), testSensors(d), WithProcessor(ingest.Processor{Database: d}))

	rec := do(t, s.Handler(), http.MethodPost, "/api/readings", strings.Repeat(" ", maxReadingBytes+1))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("want 413, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	cases := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://dash.example", "*"},
		{"listed", []string{"https://dash.example"}, "https://dash.example", "https://dash.example"},
		{"unlisted", []string{"https://dash.example"}, "https://evil.example", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.CORSOrigins = c.origins
			s := New(cfg, testSensors(testDB()))

			req := httptest.NewRequest(http.MethodOptions, "/api/humidity-stats", nil)
			req.Header.Set("Origin", c.origin)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Errorf("want 204 for preflight, got %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != c.want {
				t.Errorf("want allowed origin %q, got %q", c.want, got)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	s := New(testConfig(), testSensors(testDB()))

	rec := do(t, s.Handler(), http.MethodGet, "/", "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Errorf("want a generated request ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc123" {
		t.Errorf("want request ID abc123 kept, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	s := New(cfg, testSensors(testDB()))

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, s.Handler(), http.MethodGet, "/", "").Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	if diff := cmp.Diff(codes, want); diff != "" {
		t.Errorf("Unexpected codes (-got +want):\n%s", diff)
	}

	// Limits are per client.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("want 200 for another client, got %d", rec.Code)
	}
}

func TestMetricsAndCachez(t *testing.T) {
	c := cache.NewLocal()
	s := New(testConfig(), testSensors(testDB()), WithCache(c), WithHub(NewHub(nil, []string{"*"})))

	do(t, s.Handler(), http.MethodGet, "/api/humidity-stats", "")

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	body := rec.Body.String()
	for _, want := range []string{
		`sensorstats_http_requests_total{code="200",method="GET",route="/api/humidity-stats"} 1`,
		"sensorstats_cache_hits_total 0",
		"sensorstats_ws_clients 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	rec = do(t, s.Handler(), http.MethodGet, "/cachez", "")
	if diff := cmp.Diff(decode(t, rec), map[string]any{"total": 0.0, "hits": 0.0}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}
