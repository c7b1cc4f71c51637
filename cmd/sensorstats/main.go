// Command sensorstats serves statistical analyses of environmental sensor
// readings, ingests readings over MQTT and runs one-off analyses of samples.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mtraver/sensorstats/config"
)

var (
	configPath string
	logLevel   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sensorstats",
	Short: "Statistical analysis of environmental sensor readings",
	Long: `sensorstats computes descriptive statistics, joint probability tables
and binomial and normal model fits over humidity, pressure and other sensor
readings. It serves them over HTTP and WebSocket and ingests readings from MQTT.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		return setupLogging(cfg.Log)
	},
}

func setupLogging(c config.Log) error {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", c.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	// Loggers taken from contexts that don't carry one, like those of cron
	// jobs, fall back to the global logger.
	zerolog.DefaultContextLogger = &log.Logger

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, ingestCmd, importCmd, analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
