package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mtraver/sensorstats/ingest"
	"github.com/mtraver/sensorstats/measurement"
)

// Layouts accepted for recorded_at. The second is how MySQL exports
// DATETIME columns.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05.999999"}

var importSensor string

var importCmd = &cobra.Command{
	Use:   "import FILE.csv",
	Short: "Store readings from a CSV file",
	Long: `Store readings from a CSV file with a header row. The recorded_at column
is required. Metric columns are named by metric name or abbreviation
(temperature or temp, humidity or rh, ...); empty cells are missing values.
Rows without a sensor_id column are attributed to --sensor.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importSensor, "sensor", "", "sensor ID for rows that don't name one")
	importCmd.Flags().BoolVar(&createSchema, "create-schema", false, "create the Postgres tables if they don't exist")
}

func strsToFloats(strs []string) ([]float64, error) {
	floats := make([]float64, len(strs))
	for i, s := range strs {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		floats[i] = f
	}
	return floats, nil
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// lineToReading converts one CSV record to a reading using the column names
// in header.
func lineToReading(header, line []string, sensorID string) (measurement.Reading, error) {
	if len(line) != len(header) {
		return measurement.Reading{}, fmt.Errorf("want %d fields, got %d", len(header), len(line))
	}

	r := measurement.Reading{SensorID: sensorID}
	for i, col := range header {
		v := strings.TrimSpace(line[i])
		col = strings.ToLower(strings.TrimSpace(col))

		switch col {
		case "sensor_id":
			r.SensorID = v
			continue
		case "recorded_at":
			t, err := parseTime(v)
			if err != nil {
				return measurement.Reading{}, fmt.Errorf("bad recorded_at %q: %w", v, err)
			}
			r.RecordedAt = t
			continue
		}

		m, ok := measurement.GetMetric(col)
		if !ok || v == "" {
			continue
		}
		f, err := strsToFloats([]string{v})
		if err != nil {
			return measurement.Reading{}, fmt.Errorf("bad %s value %q: %w", m.Name, v, err)
		}
		r.SetValue(m, f[0])
	}

	return r, r.Validate()
}

func readCSV(in io.Reader, sensorID string, each func(line int, r measurement.Reading) error) error {
	cr := csv.NewReader(in)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		r, err := lineToReading(header, rec, sensorID)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := each(line, r); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := log.Logger.WithContext(cmd.Context())

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := openStore(ctx, cfg, createSchema)
	if err != nil {
		return err
	}
	defer st.Close()

	p := st.processor(cfg)
	counts := map[ingest.Outcome]int{}
	var saved []measurement.Reading
	err = readCSV(f, importSensor, func(_ int, r measurement.Reading) error {
		outcome, err := p.Store(ctx, &r)
		counts[outcome]++
		if err == nil && outcome == ingest.Saved {
			saved = append(saved, r)
		}
		return err
	})

	log.Info().Int("saved", counts[ingest.Saved]).Int("ignored", counts[ingest.Ignored]).Msg("Import finished")

	summary, serr := measurement.Summarize(saved)
	if serr != nil {
		log.Warn().Err(serr).Msg("Failed to summarize import")
	}
	for name, res := range summary {
		log.Info().
			Str("metric", name).
			Int("count", res.Count).
			Float64("mean", res.Mean).
			Float64("min", res.Min).
			Float64("max", res.Max).
			Msg("Imported")
	}

	return err
}
