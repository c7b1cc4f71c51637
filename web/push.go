package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mtraver/sensorstats/ingest"
)

const maxReadingBytes = 1 << 16

// pushHandler accepts readings POSTed by sensors.
type pushHandler struct {
	Processor ingest.Processor
}

func (h pushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReadingBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("Could not read body: %v", err)})
		return
	}

	outcome, err := h.Processor.Process(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if outcome == ingest.Ignored {
		// Accepted but not stored, so senders don't retry.
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, map[string]string{"status": outcome.String()})
}
