package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        int           `mapstructure:"HTTP_PORT"`
	GRPCPort        int           `mapstructure:"GRPC_PORT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	HealthTimeout   time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`

	PostgresHost       string `mapstructure:"POSTGRES_HOST"`
	PostgresPort       int    `mapstructure:"POSTGRES_PORT"`
	PostgresUser       string `mapstructure:"POSTGRES_USER"`
	PostgresPassword   string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB         string `mapstructure:"POSTGRES_DB"`
	PostgresSSLMode    string `mapstructure:"POSTGRES_SSLMODE"`
	PostgresMigrations string `mapstructure:"POSTGRES_MIGRATIONS"`

	CatalogPath       string `mapstructure:"CATALOG_PATH"`
	CatalogMigrations string `mapstructure:"CATALOG_MIGRATIONS"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CartCacheTTL  time.Duration `mapstructure:"CART_CACHE_TTL"`
	BreakerOpen   time.Duration `mapstructure:"CACHE_BREAKER_OPEN"`

	KafkaBrokers   []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string        `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID   string        `mapstructure:"KAFKA_GROUP_ID"`
	OutboxInterval time.Duration `mapstructure:"OUTBOX_INTERVAL"`
	OutboxBatch    int           `mapstructure:"OUTBOX_BATCH"`
	OutboxRetain   time.Duration `mapstructure:"OUTBOX_RETENTION"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	TimeZone  string `mapstructure:"TIME_ZONE"`
}

var defaults = map[string]interface{}{
	"HTTP_PORT":            8080,
	"GRPC_PORT":            9090,
	"REQUEST_TIMEOUT":      "30s",
	"SHUTDOWN_TIMEOUT":     "10s",
	"HEALTH_CHECK_TIMEOUT": "2s",

	"POSTGRES_HOST":       "localhost",
	"POSTGRES_PORT":       5432,
	"POSTGRES_USER":       "postgres",
	"POSTGRES_PASSWORD":   "postgres",
	"POSTGRES_DB":         "canteen",
	"POSTGRES_SSLMODE":    "disable",
	"POSTGRES_MIGRATIONS": "internal/repository/migrations",

	"CATALOG_PATH":       "./data/catalog.db",
	"CATALOG_MIGRATIONS": "internal/catalog/migrations",

	"REDIS_ADDR":         "localhost:6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"CART_CACHE_TTL":     "15m",
	"CACHE_BREAKER_OPEN": "30s",

	"KAFKA_BROKERS":    "localhost:9092",
	"KAFKA_TOPIC":      "canteen-order-events",
	"KAFKA_GROUP_ID":   "canteen-timeline",
	"OUTBOX_INTERVAL":  "1s",
	"OUTBOX_BATCH":     100,
	"OUTBOX_RETENTION": "168h",

	"MONGO_URI":      "mongodb://localhost:27017",
	"MONGO_DATABASE": "canteen",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
	"TIME_ZONE":  "UTC",
}

// Load reads configuration from the environment, optionally layered over a config file.
// Environment variables always win.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both a list and a single comma separated value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	var errs []error
	if c.HTTPPort <= 0 {
		errs = append(errs, errors.New("HTTP_PORT must be positive"))
	}
	if c.PostgresDB == "" {
		errs = append(errs, errors.New("POSTGRES_DB is required"))
	}
	if c.CatalogPath == "" {
		errs = append(errs, errors.New("CATALOG_PATH is required"))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("TIME_ZONE: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
