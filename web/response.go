package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mtraver/sensorstats/db"
	"github.com/mtraver/sensorstats/ingest"
	"github.com/mtraver/sensorstats/service"
	"github.com/mtraver/sensorstats/stats"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, db.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, stats.ErrInvalidParameter), errors.Is(err, ingest.ErrInvalidReading):
		return http.StatusBadRequest
	case errors.Is(err, stats.ErrInsufficientData), errors.Is(err, stats.ErrEmptySample):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError responds with the status err maps to. Internal errors are
// logged and not described to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		msg = http.StatusText(status)
	} else {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("Request failed")
	}

	writeJSON(w, r, status, errorResponse{Error: msg})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)})
}

// intParam parses the named query parameter, which is 0 when absent.
func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", stats.ErrInvalidParameter, name, v)
	}
	return n, nil
}
