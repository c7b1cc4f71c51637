// Package web serves the sensor analyses over HTTP and pushes live humidity
// updates to WebSocket subscribers.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mtraver/sensorstats/cache"
	"github.com/mtraver/sensorstats/ingest"
	"github.com/mtraver/sensorstats/service"
)

// limiterTTL is how long an idle client's rate limiter is kept.
const limiterTTL = 10 * time.Minute

type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
	RateLimit      float64
	RateBurst      int
}

type Server struct {
	cfg       Config
	router    *mux.Router
	server    *http.Server
	sensors   *service.Sensors
	cache     cache.Cache
	processor *ingest.Processor
	hub       *Hub
	metrics   *Metrics
	limiters  *cache.TTL[*rate.Limiter]
}

type Option func(*Server)

// WithCache exposes the stats of c on /cachez and /metrics.
func WithCache(c cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// WithProcessor accepts readings on POST /api/readings.
func WithProcessor(p ingest.Processor) Option {
	return func(s *Server) {
		s.processor = &p
	}
}

// WithHub serves live humidity updates on /ws/humidity.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func New(cfg Config, sensors *service.Sensors, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		sensors:  sensors,
		limiters: cache.NewTTL[*rate.Limiter](),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.cache != nil {
		s.metrics.observeCache(s.cache)
	}
	if s.hub != nil {
		s.metrics.observeHub(s.hub)
	}

	s.routes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, s.logRequests, s.instrument, s.cors)

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	if s.hub != nil {
		r.Handle("/ws/humidity", s.hub).Methods(http.MethodGet)
	}

	api := r.NewRoute().Subrouter()
	api.Use(s.rateLimit, s.timeout, jsonContentType)

	get := []string{http.MethodGet, http.MethodOptions}

	api.Handle("/", rootHandler{}).Methods(get...)
	api.Handle("/health", healthHandler{Sensors: s.sensors}).Methods(get...)
	if s.cache != nil {
		api.Handle("/cachez", cachezHandler{Cache: s.cache}).Methods(get...)
	}

	api.Handle("/api/sensors-data", sensorsHandler{Sensors: s.sensors}).Methods(get...)
	api.Handle("/api/humidity-stats", metricHandler{Sensors: s.sensors, Metric: "humidity", Kind: kindStats}).Methods(get...)
	api.Handle("/api/pressure-stats", metricHandler{Sensors: s.sensors, Metric: "pressure", Kind: kindStats}).Methods(get...)
	api.Handle("/api/metrics/{metric}/{kind:stats|advanced|normal|binomial}", metricHandler{Sensors: s.sensors}).Methods(get...)
	api.Handle("/api/probability/joint", jointHandler{Sensors: s.sensors}).Methods(get...)
	api.Handle("/api/probability/binomial", metricHandler{Sensors: s.sensors, Metric: "humidity", Kind: kindBinomial}).Methods(get...)

	if s.processor != nil {
		api.Handle("/api/readings", pushHandler{Processor: *s.processor}).Methods(http.MethodPost, http.MethodOptions)
	}

	r.NotFoundHandler = jsonContentType(http.HandlerFunc(notFound))
}

// Handler returns the root handler, with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ScheduleCleanup drops idle clients' rate limiters on the given cron
// schedule.
func (s *Server) ScheduleCleanup(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, s.limiters.Clean)
	return err
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	if s.hub != nil {
		s.hub.Close()
	}
	return s.server.Shutdown(ctx)
}
