package web

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/mtraver/sensorstats/service"
)

// Broadcaster pushes humidity updates to a hub's subscribers on a cron
// schedule.
type Broadcaster struct {
	cron    *cron.Cron
	hub     *Hub
	update  UpdateFunc
	metrics *Metrics
	timeout time.Duration
}

// NewBroadcaster schedules broadcasts on c. metrics may be nil.
func NewBroadcaster(c *cron.Cron, hub *Hub, update UpdateFunc, metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		cron:    c,
		hub:     hub,
		update:  update,
		metrics: metrics,
		timeout: updateTimeout,
	}
}

// HumidityUpdates adapts the humidity update of sensors for a hub or
// broadcaster.
func HumidityUpdates(sensors *service.Sensors) UpdateFunc {
	return func(ctx context.Context) (any, error) {
		return sensors.HumidityUpdate(ctx)
	}
}

// Schedule adds a broadcast to the cron on the given spec, e.g. "@every 5s".
func (b *Broadcaster) Schedule(spec string) error {
	_, err := b.cron.AddFunc(spec, b.Broadcast)
	if err == nil {
		log.Info().Str("spec", spec).Msg("Scheduled humidity broadcast")
	}
	return err
}

func (b *Broadcaster) observe(result string) {
	if b.metrics != nil {
		b.metrics.observeBroadcast(result)
	}
}

// Broadcast computes one update and sends it to every subscriber. Nothing is
// computed when there are no subscribers.
func (b *Broadcaster) Broadcast() {
	if b.hub.Len() == 0 {
		b.observe("idle")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	v, err := b.update(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNoData) {
			log.Debug().Err(err).Msg("Nothing to broadcast")
			b.observe("no_data")
			return
		}
		log.Error().Err(err).Msg("Failed to compute humidity update")
		b.observe("error")
		return
	}

	n, err := b.hub.Broadcast(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to broadcast humidity update")
		b.observe("error")
		return
	}

	log.Debug().Int("clients", n).Msg("Humidity update broadcast")
	b.observe("sent")
}
