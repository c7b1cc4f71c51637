package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mtraver/sensorstats/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store readings published to MQTT",
	Long: `Subscribe to the configured MQTT topic and store every JSON reading
published to it, skipping readings from ignored test sensors.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&createSchema, "create-schema", false, "create the Postgres tables if they don't exist")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	st, err := openStore(ctx, cfg, createSchema)
	if err != nil {
		return err
	}
	defer st.Close()

	storeDir := ""
	if cfg.MQTT.StoreDir != "" {
		storeDir, err = homedir.Expand(cfg.MQTT.StoreDir)
		if err != nil {
			return fmt.Errorf("failed to expand %q: %w", cfg.MQTT.StoreDir, err)
		}
		if err := os.MkdirAll(storeDir, 0700); err != nil {
			return fmt.Errorf("failed to make dir %s: %w", storeDir, err)
		}
	}

	opts := ingest.ClientOptions(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password, storeDir)
	sub := &ingest.Subscriber{
		Client:    mqtt.NewClient(opts),
		Topic:     cfg.MQTT.Topic,
		QoS:       cfg.MQTT.QoS,
		Processor: st.processor(cfg),
	}

	log.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("Starting ingest")
	return sub.Run(ctx)
}
