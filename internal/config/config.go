// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "order-ledger"
	ServiceVersion = "0.1.0"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds configuration knobs for the servers, the ledger store and the
// optional Redis, Kafka and OTLP integrations. Empty RedisAddr, KafkaBroker
// or OtelEndpoint disable the matching integration.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	DBDriver        string        `yaml:"db_driver"`
	MySQLDSN        string        `yaml:"mysql_dsn"`
	SQLitePath      string        `yaml:"sqlite_path"`
	RedisAddr       string        `yaml:"redis_addr"`
	KafkaBroker     string        `yaml:"kafka_broker"`
	KafkaTopic      string        `yaml:"kafka_topic"`
	OtelEndpoint    string        `yaml:"otel_endpoint"`
	OtelInsecure    bool          `yaml:"otel_insecure"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":50051",
		DBDriver:        DriverSQLite,
		SQLitePath:      "order-ledger.db",
		KafkaTopic:      "order-items",
		TxTimeout:       5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenvms(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(sec) * time.Second
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg = Config{
		HTTPAddr:        getenv("HTTP_ADDR", cfg.HTTPAddr),
		GRPCAddr:        getenv("GRPC_ADDR", cfg.GRPCAddr),
		DBDriver:        getenv("DB_DRIVER", cfg.DBDriver),
		MySQLDSN:        getenv("MYSQL_DSN", cfg.MySQLDSN),
		SQLitePath:      getenv("SQLITE_PATH", cfg.SQLitePath),
		RedisAddr:       getenv("REDIS_ADDR", cfg.RedisAddr),
		KafkaBroker:     getenv("KAFKA_BROKER", cfg.KafkaBroker),
		KafkaTopic:      getenv("KAFKA_TOPIC", cfg.KafkaTopic),
		OtelEndpoint:    getenv("OTEL_ENDPOINT", cfg.OtelEndpoint),
		OtelInsecure:    boolenv("OTEL_INSECURE", cfg.OtelInsecure),
		TxTimeout:       durenvms("TX_TIMEOUT_MS", cfg.TxTimeout),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout),
		LogLevel:        getenv("LOG_LEVEL", cfg.LogLevel),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when DB_DRIVER=%s", DriverMySQL)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=%s", DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("transaction timeout must be positive, got %s", c.TxTimeout)
	}
	if c.KafkaBroker != "" && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKER is set")
	}
	return nil
}
