package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Waelalhamad/HydroQuest-Project/internal/config"
	db "github.com/Waelalhamad/HydroQuest-Project/internal/db"
	"github.com/Waelalhamad/HydroQuest-Project/internal/db/migrate"
	httpapi "github.com/Waelalhamad/HydroQuest-Project/internal/httpapi"
	"github.com/Waelalhamad/HydroQuest-Project/internal/logging"
	"github.com/Waelalhamad/HydroQuest-Project/internal/metrics"
	telemetry "github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/repository"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/transport"
	"github.com/Waelalhamad/HydroQuest-Project/internal/mqtt"
)

const (
	storeOpenTimeout = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// ErrStoreLost is the run cause when a required store goes away mid-flight.
var ErrStoreLost = errors.New("store lost")

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"wsPath", cfg.WSPath,
		"wsMaxMessageBytes", cfg.WSMaxMessageBytes,
		"storeDriver", cfg.StoreDriver,
		"storeRequired", cfg.StoreRequired,
		"sqlitePath", cfg.SQLitePath,
		"redisAddr", cfg.RedisAddr,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	mux := httpapi.NewMux(repo, m.Handler())

	opts := telemetry.Options{
		WSPath: cfg.WSPath,
		Transport: transport.Config{
			MaxMessageBytes: cfg.WSMaxMessageBytes,
			WriteTimeout:    cfg.WSWriteTimeout,
		},
		StoreWriteTimeout: cfg.StoreWriteTimeout,
		Logger:            logger,
		Metrics:           m,
	}
	if cfg.StoreRequired {
		opts.OnStoreLost = func(err error) {
			logger.Error("store lost, shutting down", "error", err)
			cancel(fmt.Errorf("%w: %w", ErrStoreLost, err))
		}
	}
	feature := telemetry.RegisterFeature(mux, repo, opts)

	var subscriber *mqtt.Subscriber
	if cfg.MQTTEnabled() {
		subscriber = mqtt.NewSubscriber(ctx, mqtt.Options{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, func(ctx context.Context, originator string, payload []byte) {
			feature.Coordinator.Handle(ctx, originator, payload)
		}, logging.Component(logger, "mqtt"))

		// Short timeout so a missing broker does not hold up startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger)
	// Shutdown does not touch hijacked connections.
	srv.RegisterOnShutdown(feature.WebSocket.CloseAll)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "wsPath", cfg.WSPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if subscriber != nil {
			subscriber.Disconnect()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if subscriber != nil {
		logger.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	logger.Info("http shutting down", "connections", feature.Registry.Len())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return context.Cause(ctx)
}

// openStore connects the configured backend. When the store is optional a
// failure leaves the server running in degraded mode.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.ReadingRepository, func(), error) {
	openCtx, cancel := context.WithTimeout(ctx, storeOpenTimeout)
	defer cancel()

	repo, closeFn, err := openBackend(openCtx, cfg, logger)
	if err != nil {
		if cfg.StoreRequired {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
		}
		logger.Error("store unavailable, running degraded", "driver", cfg.StoreDriver, "error", err)
		return repository.NewUnavailableRepository(err), func() {}, nil
	}
	logger.Info("store connected", "driver", cfg.StoreDriver)

	if cfg.RedisAddr == "" {
		return repo, closeFn, nil
	}
	rdb, err := db.OpenRedis(openCtx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable (continuing without latest cache)", "addr", cfg.RedisAddr, "error", err)
		return repo, closeFn, nil
	}
	cache := repository.NewRedisLatestCache(rdb, cfg.RedisLatestTTL)
	cached := repository.WithLatestCache(repo, cache, logging.Component(logger, "cache"))
	return cached, func() {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close", "error", err)
		}
		closeFn()
	}, nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.ReadingRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		conn, err := db.Open(ctx, cfg, logging.Component(logger, "sql"))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(conn); err != nil {
				logger.Error("db close", "error", err)
			}
		}
		if _, err := migrate.Run(ctx, conn, logger); err != nil {
			closeFn()
			return nil, nil, err
		}
		return repository.NewRepository(conn), closeFn, nil

	case config.DriverPostgres:
		// DB_MAX_OPEN_CONNS sizes the SQLite pool; pgx picks its own default.
		pool, err := db.OpenPostgres(ctx, cfg.PostgresURL, 0)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.EnsurePostgresSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPostgresRepository(pool), pool.Close, nil

	case config.DriverMongo:
		client, err := db.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("mongo disconnect", "error", err)
			}
		}
		if err := repository.EnsureMongoIndexes(ctx, client, cfg.MongoDatabase); err != nil {
			closeFn()
			return nil, nil, err
		}
		return repository.NewMongoRepository(client, cfg.MongoDatabase), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
