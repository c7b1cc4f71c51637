// Package ingest receives readings from sensors and stores them.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mtraver/sensorstats/db"
	"github.com/mtraver/sensorstats/measurement"
)

// ErrInvalidReading is returned for payloads that don't decode to a valid
// reading. Retrying them can't succeed.
var ErrInvalidReading = errors.New("ingest: invalid reading")

type Outcome int

const (
	Saved Outcome = iota
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Saved:
		return "saved"
	case Ignored:
		return "ignored"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Processor stores readings in Database and, if set, Mirror. Readings from
// sensors whose ID contains any of IgnoredSensors are dropped.
type Processor struct {
	Database       db.Database
	Mirror         db.Database
	IgnoredSensors []string
}

func (p Processor) shouldIgnore(sensorID string) bool {
	for _, s := range p.IgnoredSensors {
		if s != "" && strings.Contains(sensorID, s) {
			return true
		}
	}
	return false
}

// Decode parses a JSON-encoded reading and validates it.
func Decode(data []byte) (*measurement.Reading, error) {
	r := &measurement.Reading{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	return r, nil
}

// Process decodes data and stores the reading it holds.
func (p Processor) Process(ctx context.Context, data []byte) (Outcome, error) {
	r, err := Decode(data)
	if err != nil {
		return Ignored, err
	}
	return p.Store(ctx, r)
}

// Store saves r to the database and the mirror. Only a failure to save to
// the database is returned; mirror failures are logged.
func (p Processor) Store(ctx context.Context, r *measurement.Reading) (Outcome, error) {
	lg := zerolog.Ctx(ctx)

	if p.shouldIgnore(r.SensorID) {
		lg.Info().Str("sensor", r.SensorID).Msgf("Got reading from ignored sensor, so it will not be saved: %v", r)
		return Ignored, nil
	}

	if err := p.Database.Save(ctx, r); err != nil {
		return Ignored, fmt.Errorf("ingest: failed to save reading: %w", err)
	}

	if p.Mirror != nil {
		if err := p.Mirror.Save(ctx, r); err != nil {
			lg.Error().Err(err).Str("sensor", r.SensorID).Msg("Failed to save reading to mirror")
		}
	}

	return Saved, nil
}
