package hub

import (
	"log/slog"

	"github.com/Waelalhamad/HydroQuest-Project/internal/metrics"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

// Relay fans a frame out to every registered connection except its sender.
type Relay struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewRelay(registry *Registry, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{registry: registry, logger: logger, metrics: m}
}

// Broadcast sends payload as a text frame to each open member whose id is not
// originator and returns the number of successful sends. A failed send is
// logged and does not stop delivery to the remaining peers.
func (r *Relay) Broadcast(originator string, payload []byte) int {
	delivered := 0
	for _, c := range r.registry.Members() {
		if c.ID() == originator || !c.IsOpen() {
			continue
		}
		if err := c.SendText(payload); err != nil {
			connErr := &types.ConnectionError{ConnID: c.ID(), Err: err}
			r.logger.Warn("broadcast send failed", "conn_id", c.ID(), "error", connErr)
			r.metrics.BroadcastFailed()
			continue
		}
		delivered++
	}
	r.metrics.BroadcastSent(delivered)
	return delivered
}
