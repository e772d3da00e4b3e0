package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Waelalhamad/HydroQuest-Project/internal/metrics"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

type Outcome int

const (
	// Done: stored and relayed to the other connections.
	Done Outcome = iota
	// Rejected: undecodable or missing every core field. Nothing stored.
	Rejected
	// Failed: the store refused or could not be reached. Nothing relayed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes what happened to one inbound message.
type Result struct {
	Outcome   Outcome
	Reading   types.Reading
	Delivered int
	Err       error
}

// Persister is the write side of the reading store.
type Persister interface {
	Persist(ctx context.Context, p types.Payload) (types.Reading, error)
}

// Broadcaster relays a text frame to every connection but the originator.
type Broadcaster interface {
	Broadcast(originator string, payload []byte) int
}

// Coordinator runs one message through decode, accept, persist and relay.
// It is safe for concurrent use; callers serialise messages per connection.
type Coordinator struct {
	store   Persister
	relay   Broadcaster
	logger  *slog.Logger
	metrics *metrics.Metrics

	onStoreLost   func(error)
	storeLostOnce sync.Once
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithStoreLostHook installs fn to be called, once, the first time the store
// reports types.ErrStoreUnavailable. The server uses it to stop the process
// when a store is required.
func WithStoreLostHook(fn func(error)) Option {
	return func(c *Coordinator) { c.onStoreLost = fn }
}

func NewCoordinator(store Persister, relay Broadcaster, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		relay:  relay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes raw as received from originator. It never panics on bad
// input and never touches the originating connection.
func (c *Coordinator) Handle(ctx context.Context, originator string, raw []byte) Result {
	c.metrics.MessageReceived()
	res := c.handle(ctx, originator, raw)
	c.metrics.MessageProcessed(res.Outcome.String())
	return res
}

func (c *Coordinator) handle(ctx context.Context, originator string, raw []byte) Result {
	log := c.logger.With("conn_id", originator)

	payload, err := types.DecodePayload(raw)
	if err != nil {
		log.Warn("dropping undecodable message", "size", len(raw), "error", err)
		return Result{Outcome: Rejected, Err: err}
	}

	if !Accept(payload) {
		log.Warn("dropping reading without temperature, TDS_Value or latitude")
		return Result{Outcome: Rejected, Err: types.ErrRejectedReading}
	}

	reading, err := c.store.Persist(ctx, payload)
	if err != nil {
		c.persistFailed(log, err)
		return Result{Outcome: Failed, Err: err}
	}

	frame, err := json.Marshal(payload)
	if err != nil {
		log.Error("encode broadcast frame", "id", reading.ID, "error", err)
		return Result{Outcome: Failed, Reading: reading, Err: err}
	}

	delivered := c.relay.Broadcast(originator, frame)
	log.Debug("reading relayed", "id", reading.ID, "delivered", delivered)
	return Result{Outcome: Done, Reading: reading, Delivered: delivered}
}

func (c *Coordinator) persistFailed(log *slog.Logger, err error) {
	switch {
	case types.IsValidationFailure(err):
		log.Warn("reading failed validation", "error", err)
	case errors.Is(err, types.ErrStoreUnavailable):
		log.Error("store unavailable, reading dropped", "error", err)
		if c.onStoreLost != nil {
			c.storeLostOnce.Do(func() { c.onStoreLost(err) })
		}
	default:
		log.Error("failed to store reading", "error", err)
	}
}
