package ingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const waitDur = 10 * time.Second

// Subscriber feeds readings published to an MQTT topic to a Processor.
type Subscriber struct {
	Client    mqtt.Client
	Topic     string
	QoS       byte
	Processor Processor
}

func wait(t mqtt.Token, what string) error {
	if ok := t.WaitTimeout(waitDur); !ok {
		return fmt.Errorf("ingest: %s timed out after %v", what, waitDur)
	} else if t.Error() != nil {
		return fmt.Errorf("ingest: failed to %s: %w", what, t.Error())
	}
	return nil
}

// Run connects, subscribes and processes messages until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	lg := zerolog.Ctx(ctx)

	if err := wait(s.Client.Connect(), "connect"); err != nil {
		return err
	}
	defer s.Client.Disconnect(250)

	if err := wait(s.Client.Subscribe(s.Topic, s.QoS, s.handler(ctx)), "subscribe"); err != nil {
		return err
	}
	lg.Info().Str("topic", s.Topic).Msg("Subscribed")

	<-ctx.Done()

	if err := wait(s.Client.Unsubscribe(s.Topic), "unsubscribe"); err != nil {
		lg.Warn().Err(err).Msg("Unsubscribe failed")
	}
	return nil
}

func (s *Subscriber) handler(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		s.handle(ctx, msg)
	}
}

func (s *Subscriber) handle(ctx context.Context, msg mqtt.Message) {
	lg := zerolog.Ctx(ctx).With().Str("topic", msg.Topic()).Uint16("message_id", msg.MessageID()).Logger()

	outcome, err := s.Processor.Process(lg.WithContext(ctx), msg.Payload())
	if err != nil {
		lg.Error().Err(err).Msg("Failed to process message")
		return
	}
	lg.Debug().Stringer("outcome", outcome).Msg("Processed message")
}

// ClientOptions configures a client that keeps messages it hasn't acked in
// storeDir, so a restart doesn't lose them.
func ClientOptions(broker, clientID, username, password, storeDir string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectTimeout(waitDur)
	if username != "" {
		opts.SetUsername(username).SetPassword(password)
	}
	if storeDir != "" {
		opts.SetStore(mqtt.NewFileStore(storeDir))
	}
	return opts
}
