package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/Waelalhamad/HydroQuest-Project/internal/mqtt"
)

type simulateOptions struct {
	url      string
	conns    int
	count    int
	interval time.Duration
	seed     uint64
	badEvery int

	mqttBroker string
	mqttPort   int
	mqttTopic  string
}

type simulateStats struct {
	sent     atomic.Int64
	received atomic.Int64
}

func runSimulate(ctx context.Context, args []string, stdout io.Writer) error {
	var o simulateOptions
	fs := newFlagSet("simulate")
	fs.StringVar(&o.url, "url", envDefault("HYDROQUEST_WS_URL", "ws://localhost:8080/ws"), "WebSocket endpoint")
	fs.IntVarP(&o.conns, "conns", "c", 10, "concurrent boats")
	fs.IntVarP(&o.count, "count", "n", 100, "readings per boat")
	fs.DurationVar(&o.interval, "interval", 0, "pause between readings of one boat")
	fs.Uint64Var(&o.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fs.IntVar(&o.badEvery, "bad-every", 0, "make every Nth reading out of bounds (0 disables)")
	fs.StringVar(&o.mqttBroker, "mqtt-broker", "", "publish over MQTT to this broker instead of WebSocket")
	fs.IntVar(&o.mqttPort, "mqtt-port", 1883, "MQTT broker port")
	fs.StringVar(&o.mqttTopic, "mqtt-topic", envDefault("MQTT_TOPIC", "hydroquest/telemetry"), "MQTT telemetry topic")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.conns < 1 || o.count < 1 {
		return fmt.Errorf("--conns and --count must be positive")
	}

	var stats simulateStats
	started := time.Now()
	var err error
	if o.mqttBroker != "" {
		err = simulateMQTT(ctx, o, &stats)
	} else {
		err = simulateWebSocket(ctx, o, &stats)
	}
	fmt.Fprintf(stdout, "sent %d readings from %d boats in %s", stats.sent.Load(), o.conns, time.Since(started).Round(time.Millisecond))
	if o.mqttBroker == "" {
		fmt.Fprintf(stdout, ", received %d relayed frames", stats.received.Load())
	}
	fmt.Fprintln(stdout)
	return err
}

func simulateWebSocket(ctx context.Context, o simulateOptions, stats *simulateStats) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range o.conns {
		g.Go(func() error {
			ws, _, err := websocket.DefaultDialer.DialContext(ctx, o.url, nil)
			if err != nil {
				return fmt.Errorf("boat %d: dial: %w", i, err)
			}
			defer ws.Close()

			readDone := make(chan struct{})
			go func() {
				defer close(readDone)
				for {
					if _, _, err := ws.ReadMessage(); err != nil {
						return
					}
					stats.received.Add(1)
				}
			}()

			b := newBoat(i, o.seed, o.badEvery)
			for range o.count {
				frame, err := json.Marshal(b.next())
				if err != nil {
					return err
				}
				if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					return fmt.Errorf("boat %d: write: %w", i, err)
				}
				stats.sent.Add(1)
				if err := pause(ctx, o.interval); err != nil {
					return err
				}
			}

			// Give the relay a moment to deliver the other boats' tail.
			_ = pause(ctx, 500*time.Millisecond)
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = ws.SetReadDeadline(time.Now().Add(time.Second))
			<-readDone
			return nil
		})
	}
	return g.Wait()
}

func simulateMQTT(ctx context.Context, o simulateOptions, stats *simulateStats) error {
	pub := mqtt.NewPublisher(mqtt.Options{
		Broker:   o.mqttBroker,
		Port:     o.mqttPort,
		ClientID: fmt.Sprintf("telemetryctl-%d", o.seed),
		Topic:    o.mqttTopic,
	}, slog.Default())
	defer pub.Disconnect()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := pub.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range o.conns {
		g.Go(func() error {
			b := newBoat(i, o.seed, o.badEvery)
			for range o.count {
				frame, err := json.Marshal(b.next())
				if err != nil {
					return err
				}
				if err := pub.Publish(ctx, frame); err != nil {
					return fmt.Errorf("boat %d: %w", i, err)
				}
				stats.sent.Add(1)
				if err := pause(ctx, o.interval); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// boat is a random walk around the Dead Sea shore.
type boat struct {
	rng      *rand.Rand
	lat, lon float64
	temp     float64
	tds      float64
	sent     int
	badEvery int
}

func newBoat(id int, seed uint64, badEvery int) *boat {
	rng := rand.New(rand.NewPCG(seed, uint64(id)))
	return &boat{
		rng:      rng,
		lat:      31.5 + rng.Float64()*0.2,
		lon:      35.45 + rng.Float64()*0.1,
		temp:     18 + rng.Float64()*10,
		tds:      200 + rng.Float64()*600,
		badEvery: badEvery,
	}
}

func (b *boat) next() map[string]any {
	b.sent++
	b.lat = clamp(b.lat+b.rng.NormFloat64()*0.0005, -90, 90)
	b.lon = clamp(b.lon+b.rng.NormFloat64()*0.0005, -180, 180)
	b.temp = clamp(b.temp+b.rng.NormFloat64()*0.1, -50, 100)
	b.tds = clamp(b.tds+b.rng.NormFloat64()*5, 0, 10000)

	reading := map[string]any{
		"temperature": round(b.temp, 2),
		"TDS_Value":   round(b.tds, 1),
		"latitude":    round(b.lat, 6),
		"longitude":   round(b.lon, 6),
		"speed":       round(b.rng.Float64()*5, 2),
	}
	if b.badEvery > 0 && b.sent%b.badEvery == 0 {
		reading["latitude"] = 200.0
	}
	return reading
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
