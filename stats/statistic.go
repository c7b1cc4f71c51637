package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Statistic is a scalar that may be undefined for the sample it was computed
// from, e.g. skewness of a constant sample. The zero value is unavailable.
type Statistic struct {
	Value     float64
	Available bool
}

// Unavailable is the marker for an undefined statistic.
var Unavailable = Statistic{}

// NewStatistic wraps v. Non-finite values become Unavailable so that NaN and
// Inf never leave the engine.
func NewStatistic(v float64) Statistic {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}
	return Statistic{Value: v, Available: true}
}

// Float64 returns the value, or ErrUndefinedStatistic if it is unavailable.
func (s Statistic) Float64() (float64, error) {
	if !s.Available {
		return 0, ErrUndefinedStatistic
	}
	return s.Value, nil
}

func (s Statistic) String() string {
	if !s.Available {
		return "unavailable"
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

// MarshalJSON encodes an available statistic as a number and an unavailable
// one as null.
func (s Statistic) MarshalJSON() ([]byte, error) {
	if !s.Available {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func (s *Statistic) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = Unavailable
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = NewStatistic(v)
	return nil
}
