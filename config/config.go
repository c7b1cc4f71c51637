// Package config loads the sensorstats configuration from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/mtraver/sensorstats/db"
)

// DefaultPath is read when no config file is named. It may be absent.
const DefaultPath = "~/.sensorstats.yaml"

const (
	BackendPostgres  = "postgres"
	BackendInfluxDB  = "influxdb"
	BackendDatastore = "datastore"

	CacheNone  = "none"
	CacheLocal = "local"
	CacheRedis = "redis"
)

type Config struct {
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	Database  Database  `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Sensors   Sensors   `yaml:"sensors"`
	Analysis  Analysis  `yaml:"analysis"`
	Broadcast Broadcast `yaml:"broadcast"`
	MQTT      MQTT      `yaml:"mqtt"`
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type HTTP struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type Database struct {
	Backend   string            `yaml:"backend"`
	Postgres  db.SQLConfig      `yaml:"postgres"`
	InfluxDB  db.InfluxDBConfig `yaml:"influxdb"`
	Datastore Datastore         `yaml:"datastore"`
	Breaker   db.BreakerConfig  `yaml:"breaker"`
	// MirrorInfluxDB also writes every ingested reading to InfluxDB when the
	// primary backend is something else.
	MirrorInfluxDB bool `yaml:"mirror_influxdb"`
}

type Datastore struct {
	ProjectID string `yaml:"project_id"`
}

type Cache struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// Sensors names the sensors whose readings feed each analysis.
type Sensors struct {
	Humidity string `yaml:"humidity"`
	Pressure string `yaml:"pressure"`
	// Ignored readings come from sensors whose ID contains one of these.
	Ignored []string `yaml:"ignored"`
}

type Analysis struct {
	// Window is how far back stats endpoints look.
	Window time.Duration `yaml:"window"`
	// HistoryLimit is the number of recent readings in a live update.
	HistoryLimit      int           `yaml:"history_limit"`
	JointBins         int           `yaml:"joint_bins"`
	AlignTolerance    time.Duration `yaml:"align_tolerance"`
	HumidityThreshold float64       `yaml:"humidity_threshold"`
}

type Broadcast struct {
	Schedule string `yaml:"schedule"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// StoreDir holds messages that haven't been acked yet.
	StoreDir string `yaml:"store_dir"`
}

// Default returns the configuration used for anything a file or the
// environment doesn't set.
func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		HTTP: HTTP{
			Addr:           ":8000",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 15 * time.Second,
			CORSOrigins:    []string{"*"},
			RateLimit:      20,
			RateBurst:      40,
		},
		Database: Database{
			Backend: BackendPostgres,
			Postgres: db.SQLConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "remoto",
				Name:            "integrador",
				MaxOpenConns:    5,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
				QueryTimeout:    30 * time.Second,
			},
			Breaker: db.BreakerConfig{
				ConsecutiveFailures: 5,
				OpenTimeout:         30 * time.Second,
			},
		},
		Cache: Cache{
			Backend: CacheLocal,
			TTL:     time.Hour,
		},
		Sensors: Sensors{
			Humidity: "5",
			Pressure: "6",
			Ignored:  []string{"test"},
		},
		Analysis: Analysis{
			Window:            7 * 24 * time.Hour,
			HistoryLimit:      50,
			JointBins:         10,
			AlignTolerance:    time.Minute,
			HumidityThreshold: 80,
		},
		Broadcast: Broadcast{Schedule: "@every 5s"},
		MQTT: MQTT{
			Broker:   "tcp://localhost:1883",
			ClientID: "sensorstats",
			Topic:    "sensors/+/readings",
			QoS:      1,
			StoreDir: "~/.sensorstats/mqtt_store",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path reads DefaultPath, which need not
// exist.
func Load(path string) (Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("config: failed to expand %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: failed to parse %s: %w", expanded, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	if cfg.Database.Backend == BackendDatastore && cfg.Database.Datastore.ProjectID == "" && metadata.OnGCE() {
		id, err := metadata.ProjectID()
		if err != nil {
			return cfg, fmt.Errorf("config: failed to get project ID: %w", err)
		}
		cfg.Database.Datastore.ProjectID = id
	}

	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	str("DB_HOST", &c.Database.Postgres.Host)
	str("DB_USER", &c.Database.Postgres.User)
	str("DB_PASS", &c.Database.Postgres.Password)
	str("DB_NAME", &c.Database.Postgres.Name)
	str("DB_BACKEND", &c.Database.Backend)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("INFLUX_URL", &c.Database.InfluxDB.URL)
	str("INFLUX_TOKEN", &c.Database.InfluxDB.Token)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("PROJECT_ID", &c.Database.Datastore.ProjectID)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: bad DB_PORT %q: %w", v, err)
		}
		c.Database.Postgres.Port = port
	}

	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.HTTP.CORSOrigins = strings.Split(v, ",")
	}

	// Naming a Redis server is enough to use it.
	if _, ok := lookup("REDIS_ADDR"); ok && c.Cache.RedisAddr != "" {
		c.Cache.Backend = CacheRedis
	}

	return nil
}

// Validate reports settings that can't work.
func (c Config) Validate() error {
	switch c.Database.Backend {
	case BackendPostgres, BackendInfluxDB, BackendDatastore:
	default:
		return fmt.Errorf("config: unknown database backend %q", c.Database.Backend)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheLocal:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("config: redis cache needs redis_addr")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	if c.Analysis.JointBins < 1 {
		return fmt.Errorf("config: joint_bins must be >= 1, got %d", c.Analysis.JointBins)
	}
	if c.Analysis.HistoryLimit < 1 {
		return fmt.Errorf("config: history_limit must be >= 1, got %d", c.Analysis.HistoryLimit)
	}
	if c.Analysis.Window <= 0 {
		return fmt.Errorf("config: analysis window must be positive, got %v", c.Analysis.Window)
	}

	return nil
}
