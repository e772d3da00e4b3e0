package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errStopped = errors.New("mqtt client stopped")

// Options locate the broker and the telemetry topic.
type Options struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

func (o Options) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port)
}

// session is the connection state shared by Subscriber and Publisher.
type session struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newSession(opts Options, logger *slog.Logger) *session {
	if logger == nil {
		logger = slog.Default()
	}
	return &session{
		opts:   opts,
		logger: logger.With("broker", opts.Broker, "port", opts.Port),
		stopCh: make(chan struct{}),
	}
}

// clientOptions builds paho options with reconnect and keepalive settings.
// onConnect runs on every (re)connect.
func (s *session) clientOptions(onConnect func(mqtt.Client)) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.opts.brokerURL())
	opts.SetClientID(s.opts.ClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		s.logger.Info("mqtt connected")
		if onConnect != nil {
			onConnect(c)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		s.logger.Warn("mqtt connection lost", "error", err)
	})
	return opts
}

// connect waits for the initial connection while respecting ctx and stop.
func (s *session) connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return errStopped
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return errStopped
		default:
		}
	}
}

// IsConnected returns whether the client is connected.
func (s *session) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
