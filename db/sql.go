package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mtraver/sensorstats/measurement"
)

//go:embed schema.sql
var schema string

// SQLConfig holds Postgres connection settings.
type SQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DSN returns the connection string for c.
func (c SQLConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password='%s' dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslmode)
}

const readingColumns = `sr.id, sr.sensor_id, sr.temperature, sr.humidity, sr.pressure, sr.voltage, sr.current, sr.recorded_at`

// SQL is a Database backed by Postgres tables sensors and sensor_readings.
type SQL struct {
	db      *sqlx.DB
	timeout time.Duration
}

// OpenSQL connects to Postgres and checks the connection.
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQL, error) {
	conn, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db: failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := NewSQL(conn, cfg.QueryTimeout)
	if err := s.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// NewSQL wraps an open connection. Each query is limited to timeout, or 30s
// if timeout is zero.
func NewSQL(conn *sqlx.DB, timeout time.Duration) *SQL {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SQL{db: conn, timeout: timeout}
}

// CreateSchema creates the tables if they don't exist.
func (s *SQL) CreateSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("db: failed to create schema: %w", err)
	}
	return nil
}

func (s *SQL) Save(ctx context.Context, r *measurement.Reading) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO sensor_readings
		(sensor_id, temperature, humidity, pressure, voltage, current, recorded_at)
		VALUES (:sensor_id, :temperature, :humidity, :pressure, :voltage, :current, :recorded_at)
		ON CONFLICT (sensor_id, recorded_at) DO NOTHING`

	if _, err := s.db.NamedExecContext(ctx, query, r); err != nil {
		return fmt.Errorf("db: failed to save reading: %w", err)
	}
	return nil
}

func (s *SQL) Latest(ctx context.Context, sensorIDs []string) (map[string]measurement.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT ` + readingColumns + `, s.name, s.type
		FROM sensor_readings sr
		JOIN sensors s ON sr.sensor_id = s.id
		WHERE sr.id IN (
			SELECT MAX(id)
			FROM sensor_readings
			GROUP BY sensor_id
		)`
	args := []interface{}{}
	if len(sensorIDs) > 0 {
		query += ` AND sr.sensor_id::text = ANY($1)`
		args = append(args, pq.Array(sensorIDs))
	}
	query += ` ORDER BY s.id`

	var rows []measurement.Reading
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("db: failed to get latest readings: %w", err)
	}

	latest := make(map[string]measurement.Reading, len(rows))
	for _, r := range rows {
		latest[r.SensorID] = r
	}
	return latest, nil
}

func (s *SQL) Since(ctx context.Context, sensorID string, m measurement.Metric, start time.Time) ([]measurement.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The column comes from the metric registry, never from user input.
	query := fmt.Sprintf(`
		SELECT %s
		FROM sensor_readings sr
		WHERE sr.sensor_id::text = $1
		AND sr.recorded_at >= $2
		AND sr.%s IS NOT NULL
		ORDER BY sr.recorded_at`, readingColumns, m.Column)

	var rows []measurement.Reading
	if err := s.db.SelectContext(ctx, &rows, query, sensorID, start); err != nil {
		return nil, fmt.Errorf("db: failed to get %s since %v: %w", m.Name, start, err)
	}
	return rows, nil
}

func (s *SQL) LastN(ctx context.Context, sensorID string, m measurement.Metric, n int) ([]measurement.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM sensor_readings sr
		WHERE sr.sensor_id::text = $1
		AND sr.%s IS NOT NULL
		ORDER BY sr.recorded_at DESC
		LIMIT $2`, readingColumns, m.Column)

	var rows []measurement.Reading
	if err := s.db.SelectContext(ctx, &rows, query, sensorID, n); err != nil {
		return nil, fmt.Errorf("db: failed to get last %d %s readings: %w", n, m.Name, err)
	}

	reverse(rows)
	return rows, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
