package measurement

import (
	"sort"
	"strings"
)

// Metric describes one physical quantity a sensor reports.
type Metric struct {
	// Name is the canonical name, used in URLs and as the key of ValueMap.
	Name string
	// Column is the column of sensor_readings holding the metric.
	Column string
	// Abbrv is the short field name used in time-series points.
	Abbrv string
	Unit  string
}

var (
	Temperature = Metric{Name: "temperature", Column: "temperature", Abbrv: "temp", Unit: "°C"}
	Humidity    = Metric{Name: "humidity", Column: "humidity", Abbrv: "rh", Unit: "%"}
	Pressure    = Metric{Name: "pressure", Column: "pressure", Abbrv: "pres", Unit: "hPa"}
	Voltage     = Metric{Name: "voltage", Column: "voltage", Abbrv: "volt", Unit: "V"}
	Current     = Metric{Name: "current", Column: "current", Abbrv: "curr", Unit: "mA"}
)

var metrics = map[string]Metric{
	Temperature.Name: Temperature,
	Humidity.Name:    Humidity,
	Pressure.Name:    Pressure,
	Voltage.Name:     Voltage,
	Current.Name:     Current,
}

// GetMetric looks a metric up by its name or its abbreviation. Matching is
// case-insensitive.
func GetMetric(name string) (Metric, bool) {
	name = strings.ToLower(name)
	if m, ok := metrics[name]; ok {
		return m, true
	}

	for _, m := range metrics {
		if m.Abbrv == name {
			return m, true
		}
	}

	return Metric{}, false
}

// Metrics returns every known metric sorted by name.
func Metrics() []Metric {
	all := make([]Metric, 0, len(metrics))
	for _, m := range metrics {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}
