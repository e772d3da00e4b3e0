package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives each message published on the telemetry topic.
// originator identifies the source for relay purposes.
type Handler func(ctx context.Context, originator string, payload []byte)

// Originator is the connection id under which MQTT messages are relayed.
// It never matches a WebSocket connection, so every viewer receives them.
func Originator(topic string) string {
	return "mqtt:" + topic
}

// Subscriber feeds messages from the telemetry topic into a Handler. paho
// delivers them one at a time, in order.
type Subscriber struct {
	*session
	ctx     context.Context
	handler Handler
}

// NewSubscriber prepares a subscriber; nothing is dialled until Connect.
// ctx bounds the handler calls.
func NewSubscriber(ctx context.Context, opts Options, handler Handler, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		session: newSession(opts, logger),
		ctx:     ctx,
		handler: handler,
	}
	// Clean sessions drop subscriptions, so subscribe on every connect.
	s.client = mqtt.NewClient(s.clientOptions(func(mqtt.Client) {
		if err := s.subscribe(); err != nil {
			s.logger.Error("mqtt subscribe failed", "topic", opts.Topic, "error", err)
		}
	}))
	return s
}

// Connect establishes the connection to the broker. The subscription follows
// from the connect callback.
func (s *Subscriber) Connect(ctx context.Context) error {
	return s.connect(ctx)
}

func (s *Subscriber) subscribe() error {
	topic := s.opts.Topic
	qos := byte(1)

	token := s.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))
	if len(payload) == 0 {
		s.logger.Warn("ignoring empty mqtt message", "topic", topic)
		return
	}
	if s.handler == nil {
		return
	}
	if err := s.ctx.Err(); err != nil {
		s.logger.Debug("dropping mqtt message after shutdown", "topic", topic)
		return
	}
	s.handler(s.ctx, Originator(topic), payload)
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stop()

	if s.IsConnected() {
		token := s.client.Unsubscribe(s.opts.Topic)
		token.WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}
