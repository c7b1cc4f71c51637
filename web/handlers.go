package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mtraver/sensorstats/measurement"
	"github.com/mtraver/sensorstats/service"
	"github.com/mtraver/sensorstats/stats"
)

const (
	kindStats    = "stats"
	kindAdvanced = "advanced"
	kindNormal   = "normal"
	kindBinomial = "binomial"
)

type rootHandler struct{}

func (h rootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Sensor API is running"})
}

type healthHandler struct {
	Sensors *service.Sensors
}

func (h healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Sensors.Ping(r.Context()); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}

type sensorsHandler struct {
	Sensors *service.Sensors
}

func (h sensorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := h.Sensors.SensorData(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data)
}

// metricHandler runs one analysis of one metric. Metric and Kind are taken
// from the route when empty.
type metricHandler struct {
	Sensors *service.Sensors
	Metric  string
	Kind    string
}

func (h metricHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	name, kind := h.Metric, h.Kind
	if name == "" {
		name = vars["metric"]
	}
	if kind == "" {
		kind = vars["kind"]
	}

	m, ok := measurement.GetMetric(name)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown metric %q", name)})
		return
	}

	days, err := intParam(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := service.Query{SensorID: r.URL.Query().Get("sensor"), Days: days}

	var res any
	ctx := r.Context()
	switch kind {
	case kindStats:
		res, err = h.Sensors.MetricStats(ctx, m, q)
	case kindAdvanced:
		res, err = h.Sensors.Advanced(ctx, m, q)
	case kindNormal:
		res, err = h.Sensors.Normal(ctx, m, q)
	case kindBinomial:
		res, err = h.Sensors.Binomial(ctx, m, q)
	default:
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown analysis %q", kind)})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, res)
}

type jointHandler struct {
	Sensors *service.Sensors
}

func (h jointHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	bins, err := intParam(r, "bins")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Has("bins") && bins < 1 {
		writeError(w, r, fmt.Errorf("%w: bins must be >= 1, got %d", stats.ErrInvalidParameter, bins))
		return
	}

	report, err := h.Sensors.Joint(r.Context(), service.JointQuery{Days: days, Bins: bins})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}
