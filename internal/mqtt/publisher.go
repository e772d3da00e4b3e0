package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errNotConnected = errors.New("mqtt client not connected")

// Publisher sends raw telemetry frames to the telemetry topic. The load
// simulator uses it to play a device that speaks MQTT.
type Publisher struct {
	*session
}

func NewPublisher(opts Options, logger *slog.Logger) *Publisher {
	p := &Publisher{session: newSession(opts, logger)}
	p.client = mqtt.NewClient(p.clientOptions(nil))
	return p
}

func (p *Publisher) Connect(ctx context.Context) error {
	return p.connect(ctx)
}

// Publish sends payload with QoS 1 and waits for the broker's ack.
func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	if !p.IsConnected() {
		return errNotConnected
	}

	topic := p.opts.Topic
	token := p.client.Publish(topic, 1, false, payload)

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Error("failed to publish telemetry", "topic", topic, "error", err)
		return fmt.Errorf("publish telemetry: %w", err)
	}

	p.logger.Debug("published telemetry", "topic", topic, "size", len(payload))
	return nil
}

// Disconnect is idempotent. After it, Connect returns an error.
func (p *Publisher) Disconnect() {
	p.stop()
	p.client.Disconnect(250)
	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}
