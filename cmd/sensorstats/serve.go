package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mtraver/sensorstats/service"
	"github.com/mtraver/sensorstats/web"
)

const (
	limiterCleanupSpec = "@every 1m"
	shutdownTimeout    = 10 * time.Second
)

var createSchema bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and live humidity updates",
	Long: `Serve the analysis API, accept readings on POST /api/readings and push
humidity updates to WebSocket subscribers of /ws/humidity on the broadcast
schedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&createSchema, "create-schema", false, "create the Postgres tables if they don't exist")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	st, err := openStore(ctx, cfg, createSchema)
	if err != nil {
		return err
	}
	defer st.Close()

	sensors := service.New(st.Database, serviceConfig(cfg))
	updates := web.HumidityUpdates(sensors)

	hub := web.NewHub(updates, cfg.HTTP.CORSOrigins)
	metrics := web.NewMetrics()

	opts := []web.Option{
		web.WithHub(hub),
		web.WithMetrics(metrics),
		web.WithProcessor(st.processor(cfg)),
	}
	if st.Cache != nil {
		opts = append(opts, web.WithCache(st.Cache))
	}
	srv := web.New(webConfig(cfg.HTTP), sensors, opts...)

	cr := cron.New()
	if err := web.NewBroadcaster(cr, hub, updates, metrics).Schedule(cfg.Broadcast.Schedule); err != nil {
		return err
	}
	if err := srv.ScheduleCleanup(cr, limiterCleanupSpec); err != nil {
		return err
	}
	cr.Start()
	defer cr.Stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Cleaning up...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
