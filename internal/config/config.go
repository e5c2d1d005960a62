package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/viper"
)

// Supported DATABASE_DRIVER values.
const (
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration
	Database        DatabaseConfig
	RabbitMQ        RabbitMQConfig
	KeepAlive       KeepAliveConfig
}

// DatabaseConfig selects and configures the product store.
type DatabaseConfig struct {
	Driver      string
	URI         string
	Name        string // MongoDB database used when the URI names none
	Collection  string
	Timeout     time.Duration
	UniqueNames bool
}

// RabbitMQConfig configures product event publishing. An empty URL disables it.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// KeepAliveConfig configures the self-ping task. An empty URL disables it.
type KeepAliveConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

// IsDevelopment reports whether APP_ENV selects development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Load reads configuration from the environment and, when present, from envFile.
// Environment variables take precedence over the file.
func Load(v *viper.Viper, envFile string) (*Config, error) {
	v.SetDefault("PORT", "2015")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DATABASE_DRIVER", DriverMongoDB)
	v.SetDefault("DATABASE_URI", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "productdb")
	v.SetDefault("DATABASE_COLLECTION", "products")
	v.SetDefault("DATABASE_TIMEOUT", "10s")
	v.SetDefault("PRODUCT_UNIQUE_NAMES", false)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "product_events")
	v.SetDefault("KEEPALIVE_URL", "")
	v.SetDefault("KEEPALIVE_INTERVAL", "14m")
	v.SetDefault("KEEPALIVE_TIMEOUT", "10s")
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "read %s", envFile)
		}
	}

	cfg := &Config{
		Port:            v.GetString("PORT"),
		Env:             v.GetString("APP_ENV"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		Database: DatabaseConfig{
			Driver:      strings.ToLower(v.GetString("DATABASE_DRIVER")),
			URI:         v.GetString("DATABASE_URI"),
			Name:        v.GetString("DATABASE_NAME"),
			Collection:  v.GetString("DATABASE_COLLECTION"),
			Timeout:     v.GetDuration("DATABASE_TIMEOUT"),
			UniqueNames: v.GetBool("PRODUCT_UNIQUE_NAMES"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   v.GetString("RABBITMQ_URL"),
			Queue: v.GetString("RABBITMQ_QUEUE"),
		},
		KeepAlive: KeepAliveConfig{
			URL:      v.GetString("KEEPALIVE_URL"),
			Interval: v.GetDuration("KEEPALIVE_INTERVAL"),
			Timeout:  v.GetDuration("KEEPALIVE_TIMEOUT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMongoDB, DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return errors.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.KeepAlive.URL != "" && c.KeepAlive.Interval <= 0 {
		return errors.New("KEEPALIVE_INTERVAL must be positive when KEEPALIVE_URL is set")
	}
	return nil
}
