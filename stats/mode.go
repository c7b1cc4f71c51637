package stats

import (
	"encoding/json"
	"fmt"
	"sort"
)

type ModeKind int

const (
	Unimodal ModeKind = iota + 1
	Multimodal
)

func (k ModeKind) String() string {
	switch k {
	case Unimodal:
		return "unimodal"
	case Multimodal:
		return "multimodal"
	default:
		return fmt.Sprintf("ModeKind(%d)", int(k))
	}
}

// Mode is the most frequent value of a sample, or the set of values that tie
// for most frequent. Values is sorted ascending and has exactly one element
// when Kind is Unimodal.
type Mode struct {
	Kind   ModeKind
	Values []float64
}

// Value returns the single mode. ok is false for a multimodal sample.
func (m Mode) Value() (v float64, ok bool) {
	if m.Kind != Unimodal || len(m.Values) != 1 {
		return 0, false
	}
	return m.Values[0], true
}

func (m Mode) String() string {
	if v, ok := m.Value(); ok {
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("multiple modes: %v", m.Values)
}

func (m Mode) MarshalJSON() ([]byte, error) {
	if v, ok := m.Value(); ok {
		return json.Marshal(struct {
			Kind  string  `json:"kind"`
			Value float64 `json:"value"`
		}{m.Kind.String(), v})
	}

	return json.Marshal(struct {
		Kind   string    `json:"kind"`
		Values []float64 `json:"values"`
	}{m.Kind.String(), m.Values})
}

// modeOf computes the mode of a non-empty sample.
func modeOf(sample []float64) Mode {
	counts := make(map[float64]int, len(sample))
	maxCount := 0
	for _, v := range sample {
		counts[v]++
		if counts[v] > maxCount {
			maxCount = counts[v]
		}
	}

	var modes []float64
	for v, c := range counts {
		if c == maxCount {
			modes = append(modes, v)
		}
	}
	sort.Float64s(modes)

	if len(modes) == 1 {
		return Mode{Kind: Unimodal, Values: modes}
	}
	return Mode{Kind: Multimodal, Values: modes}
}
