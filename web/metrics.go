package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtraver/sensorstats/cache"
)

// Metrics holds the Prometheus collectors of one server. Each Metrics has
// its own registry so servers don't collide.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	broadcasts *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstats_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sensorstats_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"route"},
		),

		broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstats_broadcasts_total",
				Help: "Humidity broadcasts by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.broadcasts,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(route, method string, code int, d time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) observeBroadcast(result string) {
	m.broadcasts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeCache(c cache.Cache) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "sensorstats_cache_lookups_total",
				Help: "Latest-reading cache lookups",
			},
			func() float64 { return float64(c.Stats().Total) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "sensorstats_cache_hits_total",
				Help: "Latest-reading cache hits",
			},
			func() float64 { return float64(c.Stats().Hits) },
		),
	)
}

func (m *Metrics) observeHub(h *Hub) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sensorstats_ws_clients",
			Help: "Connected WebSocket subscribers",
		},
		func() float64 { return float64(h.Len()) },
	))
}
