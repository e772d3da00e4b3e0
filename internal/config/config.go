package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	WSPath            string
	WSMaxMessageBytes int64
	WSWriteTimeout    time.Duration

	StoreDriver string
	// StoreRequired makes a lost store fatal. Without it the server keeps
	// relaying nothing and answers reads with 503 until restarted.
	StoreRequired     bool
	StoreWriteTimeout time.Duration

	SQLitePath      string
	SQLiteDSN       string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	PostgresURL   string
	MongoURI      string
	MongoDatabase string

	RedisAddr      string
	RedisLatestTTL time.Duration

	MQTTBroker   string
	MQTTPort     int
	MQTTTopic    string
	MQTTClientID string
}

// MQTTEnabled reports whether the MQTT ingress should be started.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	wsPath := envOr("WS_PATH", "/ws")
	if !strings.HasPrefix(wsPath, "/") {
		return Config{}, fmt.Errorf("invalid WS_PATH %q (must start with /)", wsPath)
	}
	wsMaxMessageBytes, err := intFromEnv("WS_MAX_MESSAGE_BYTES", 64*1024)
	if err != nil {
		return Config{}, err
	}
	if wsMaxMessageBytes < 0 {
		return Config{}, fmt.Errorf("invalid WS_MAX_MESSAGE_BYTES %d (must be >= 0)", wsMaxMessageBytes)
	}
	wsWriteTimeout, err := durationFromEnv("WS_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	driver := envOr("STORE_DRIVER", DriverSQLite)
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMongo:
	default:
		return Config{}, fmt.Errorf("invalid STORE_DRIVER %q (allowed: sqlite3, postgres, mongo)", driver)
	}
	storeRequired, err := boolFromEnv("STORE_REQUIRED", appEnv == "prod")
	if err != nil {
		return Config{}, err
	}
	storeWriteTimeout, err := durationFromEnv("STORE_WRITE_TIMEOUT", 0)
	if err != nil {
		return Config{}, err
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationFromEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logSQL, err := boolFromEnv("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	postgresURL := strings.TrimSpace(os.Getenv("POSTGRES_URL"))
	if driver == DriverPostgres && postgresURL == "" {
		return Config{}, fmt.Errorf("POSTGRES_URL is required when STORE_DRIVER=postgres")
	}
	mongoURI := strings.TrimSpace(os.Getenv("MONGO_URI"))
	if driver == DriverMongo && mongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required when STORE_DRIVER=mongo")
	}

	redisLatestTTL, err := durationFromEnv("REDIS_LATEST_TTL", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}

	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if mqttPort < 1 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d (allowed: 1-65535)", mqttPort)
	}

	return Config{
		AppEnv:            appEnv,
		LogLevel:          level,
		HTTPAddr:          httpAddr,
		WSPath:            wsPath,
		WSMaxMessageBytes: int64(wsMaxMessageBytes),
		WSWriteTimeout:    wsWriteTimeout,
		StoreDriver:       driver,
		StoreRequired:     storeRequired,
		StoreWriteTimeout: storeWriteTimeout,
		SQLitePath:        envOr("SQLITE_PATH", "data/hydroquest.db"),
		SQLiteDSN:         strings.TrimSpace(os.Getenv("DB_DSN")),
		MaxOpenConns:      maxOpenConns,
		MaxIdleConns:      maxIdleConns,
		ConnMaxLifetime:   connMaxLifetime,
		LogSQL:            logSQL,
		PostgresURL:       postgresURL,
		MongoURI:          mongoURI,
		MongoDatabase:     envOr("MONGO_DATABASE", "hydroquest"),
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisLatestTTL:    redisLatestTTL,
		MQTTBroker:        strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:          mqttPort,
		MQTTTopic:         envOr("MQTT_TOPIC", "hydroquest/telemetry"),
		MQTTClientID:      envOr("MQTT_CLIENT_ID", "hydroquest-server"),
	}, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q (must be >= 0)", key, s)
	}
	return d, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q (expected true or false)", key, s)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
