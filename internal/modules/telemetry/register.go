package telemetry

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Waelalhamad/HydroQuest-Project/internal/logging"
	"github.com/Waelalhamad/HydroQuest-Project/internal/metrics"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/controller"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/hub"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/ingest"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/repository"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/service"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/transport"
)

type Options struct {
	WSPath            string
	Transport         transport.Config
	StoreWriteTimeout time.Duration
	// OnStoreLost, when set, is called once the store reports it is gone.
	OnStoreLost func(error)
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Feature exposes the assembled pieces other ingress paths plug into.
type Feature struct {
	Store       *service.ReadingStore
	Registry    *hub.Registry
	Coordinator *ingest.Coordinator
	WebSocket   *transport.Handler
}

// RegisterFeature wires store, registry, relay and coordinator around repo
// and mounts the WebSocket endpoint and the read API on mux.
func RegisterFeature(mux *http.ServeMux, repo repository.ReadingRepository, opts Options) *Feature {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wsPath := opts.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}

	store := service.NewReadingStore(repo,
		service.WithLogger(logging.Component(logger, "store")),
		service.WithWriteTimeout(opts.StoreWriteTimeout),
	)
	registry := hub.NewRegistry()
	relay := hub.NewRelay(registry, logging.Component(logger, "relay"), opts.Metrics)

	coordOpts := []ingest.Option{
		ingest.WithLogger(logging.Component(logger, "ingest")),
		ingest.WithMetrics(opts.Metrics),
	}
	if opts.OnStoreLost != nil {
		coordOpts = append(coordOpts, ingest.WithStoreLostHook(opts.OnStoreLost))
	}
	coordinator := ingest.NewCoordinator(store, relay, coordOpts...)

	ws := transport.NewHandler(registry, coordinator, opts.Transport, logging.Component(logger, "websocket"), opts.Metrics)
	mux.Handle("GET "+wsPath, ws)

	controller.NewReadingController(store).RegisterRoutes(mux)

	return &Feature{
		Store:       store,
		Registry:    registry,
		Coordinator: coordinator,
		WebSocket:   ws,
	}
}
