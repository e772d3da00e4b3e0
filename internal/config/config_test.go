package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR",
	"WS_PATH", "WS_MAX_MESSAGE_BYTES", "WS_WRITE_TIMEOUT",
	"STORE_DRIVER", "STORE_REQUIRED", "STORE_WRITE_TIMEOUT",
	"SQLITE_PATH", "DB_DSN", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_LOG_SQL",
	"POSTGRES_URL", "MONGO_URI", "MONGO_DATABASE",
	"REDIS_ADDR", "REDIS_LATEST_TTL",
	"MQTT_BROKER", "MQTT_PORT", "MQTT_TOPIC", "MQTT_CLIENT_ID",
}

// clearEnv blanks every variable LoadFromEnv reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.WSPath != "/ws" {
		t.Errorf("WSPath = %q, want /ws", got.WSPath)
	}
	if got.WSMaxMessageBytes != 64*1024 {
		t.Errorf("WSMaxMessageBytes = %d, want %d", got.WSMaxMessageBytes, 64*1024)
	}
	if got.WSWriteTimeout != 10*time.Second {
		t.Errorf("WSWriteTimeout = %v, want 10s", got.WSWriteTimeout)
	}
	if got.StoreDriver != DriverSQLite {
		t.Errorf("StoreDriver = %q, want %q", got.StoreDriver, DriverSQLite)
	}
	if got.StoreRequired {
		t.Error("StoreRequired = true, want false in dev")
	}
	if got.StoreWriteTimeout != 0 {
		t.Errorf("StoreWriteTimeout = %v, want 0", got.StoreWriteTimeout)
	}
	if got.SQLitePath != "data/hydroquest.db" {
		t.Errorf("SQLitePath = %q", got.SQLitePath)
	}
	if got.MaxOpenConns != 1 || got.MaxIdleConns != 1 || got.ConnMaxLifetime != 0 || got.LogSQL {
		t.Errorf("pool settings = %d/%d/%v/%v", got.MaxOpenConns, got.MaxIdleConns, got.ConnMaxLifetime, got.LogSQL)
	}
	if got.MongoDatabase != "hydroquest" {
		t.Errorf("MongoDatabase = %q", got.MongoDatabase)
	}
	if got.RedisAddr != "" || got.RedisLatestTTL != 10*time.Minute {
		t.Errorf("redis = %q/%v", got.RedisAddr, got.RedisLatestTTL)
	}
	if got.MQTTEnabled() {
		t.Error("MQTTEnabled = true with no broker")
	}
	if got.MQTTPort != 1883 || got.MQTTTopic != "hydroquest/telemetry" || got.MQTTClientID != "hydroquest-server" {
		t.Errorf("mqtt = %d/%q/%q", got.MQTTPort, got.MQTTTopic, got.MQTTClientID)
	}
}

func TestLoadFromEnv_AppEnv_Valid(t *testing.T) {
	tests := []struct {
		name   string
		appEnv string
		want   string
	}{
		{name: "dev", appEnv: "dev", want: "dev"},
		{name: "prod", appEnv: "prod", want: "prod"},
		{name: "dev with whitespace", appEnv: "  dev  ", want: "dev"},
		{name: "prod with whitespace", appEnv: "\nprod\t", want: "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.AppEnv != tt.want {
				t.Errorf("AppEnv = %q, want %q", got.AppEnv, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_StoreRequired(t *testing.T) {
	tests := []struct {
		name   string
		appEnv string
		value  string
		want   bool
	}{
		{name: "dev default", appEnv: "dev", want: false},
		{name: "prod default", appEnv: "prod", want: true},
		{name: "prod override", appEnv: "prod", value: "false", want: false},
		{name: "dev override", appEnv: "dev", value: "1", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)
			t.Setenv("STORE_REQUIRED", tt.value)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.StoreRequired != tt.want {
				t.Errorf("StoreRequired = %v, want %v", got.StoreRequired, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WS_PATH", "/telemetry")
	t.Setenv("WS_MAX_MESSAGE_BYTES", "1024")
	t.Setenv("WS_WRITE_TIMEOUT", "2s")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "boats")
	t.Setenv("STORE_WRITE_TIMEOUT", "750ms")
	t.Setenv("DB_LOG_SQL", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_LATEST_TTL", "0s")
	t.Setenv("MQTT_BROKER", "broker.local")
	t.Setenv("MQTT_PORT", "8883")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.WSPath != "/telemetry" || got.WSMaxMessageBytes != 1024 || got.WSWriteTimeout != 2*time.Second {
		t.Errorf("ws = %q/%d/%v", got.WSPath, got.WSMaxMessageBytes, got.WSWriteTimeout)
	}
	if got.StoreDriver != DriverMongo || got.MongoURI != "mongodb://localhost:27017" || got.MongoDatabase != "boats" {
		t.Errorf("mongo = %q/%q/%q", got.StoreDriver, got.MongoURI, got.MongoDatabase)
	}
	if got.StoreWriteTimeout != 750*time.Millisecond || !got.LogSQL {
		t.Errorf("StoreWriteTimeout = %v, LogSQL = %v", got.StoreWriteTimeout, got.LogSQL)
	}
	if got.RedisAddr != "localhost:6379" || got.RedisLatestTTL != 0 {
		t.Errorf("redis = %q/%v", got.RedisAddr, got.RedisLatestTTL)
	}
	if !got.MQTTEnabled() || got.MQTTPort != 8883 {
		t.Errorf("mqtt enabled = %v port = %d", got.MQTTEnabled(), got.MQTTPort)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "staging env", env: map[string]string{"APP_ENV": "staging"}, wantMsg: "APP_ENV"},
		{name: "uppercase env", env: map[string]string{"APP_ENV": "DEV"}, wantMsg: "APP_ENV"},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "loud"}, wantMsg: "LOG_LEVEL"},
		{name: "ws path", env: map[string]string{"WS_PATH": "ws"}, wantMsg: "WS_PATH"},
		{name: "ws limit", env: map[string]string{"WS_MAX_MESSAGE_BYTES": "big"}, wantMsg: "WS_MAX_MESSAGE_BYTES"},
		{name: "negative ws limit", env: map[string]string{"WS_MAX_MESSAGE_BYTES": "-1"}, wantMsg: "WS_MAX_MESSAGE_BYTES"},
		{name: "write timeout", env: map[string]string{"WS_WRITE_TIMEOUT": "soon"}, wantMsg: "WS_WRITE_TIMEOUT"},
		{name: "negative store timeout", env: map[string]string{"STORE_WRITE_TIMEOUT": "-1s"}, wantMsg: "STORE_WRITE_TIMEOUT"},
		{name: "driver", env: map[string]string{"STORE_DRIVER": "mysql"}, wantMsg: "STORE_DRIVER"},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres"}, wantMsg: "POSTGRES_URL"},
		{name: "mongo without uri", env: map[string]string{"STORE_DRIVER": "mongo"}, wantMsg: "MONGO_URI"},
		{name: "store required", env: map[string]string{"STORE_REQUIRED": "maybe"}, wantMsg: "STORE_REQUIRED"},
		{name: "max open conns", env: map[string]string{"DB_MAX_OPEN_CONNS": "x"}, wantMsg: "DB_MAX_OPEN_CONNS"},
		{name: "conn lifetime", env: map[string]string{"DB_CONN_MAX_LIFETIME": "forever"}, wantMsg: "DB_CONN_MAX_LIFETIME"},
		{name: "mqtt port range", env: map[string]string{"MQTT_PORT": "70000"}, wantMsg: "MQTT_PORT"},
		{name: "redis ttl", env: map[string]string{"REDIS_LATEST_TTL": "1 hour"}, wantMsg: "REDIS_LATEST_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %s", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadFromEnv_HTTPAddr(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "default when empty", in: "", want: ":8080"},
		{name: "trims whitespace", in: "  :9090  ", want: ":9090"},
		{name: "host:port", in: "127.0.0.1:8081", want: "127.0.0.1:8081"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HTTP_ADDR", tt.in)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.HTTPAddr != tt.want {
				t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
