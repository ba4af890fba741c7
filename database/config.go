package database

import (
	"errors"
	"time"

	"github.com/CMSgov/xc-harvester/conf"
)

type Config struct {
	MaxOpenConns       int `conf:"HARVEST_DB_MAX_OPEN_CONNS" conf_default:"20"`
	MaxIdleConns       int `conf:"HARVEST_DB_MAX_IDLE_CONNS" conf_default:"10"`
	ConnMaxLifetimeMin int `conf:"HARVEST_DB_CONN_MAX_LIFETIME_MIN" conf_default:"5"`

	DatabaseURL string `conf:"DATABASE_URL"`
	// QueueDatabaseURL holds que_jobs. It defaults to DatabaseURL.
	QueueDatabaseURL string `conf:"QUEUE_DATABASE_URL"`

	ConnectRetries uint64        `conf:"HARVEST_DB_CONNECT_RETRIES" conf_default:"5"`
	ConnectBackoff time.Duration `conf:"HARVEST_DB_CONNECT_BACKOFF" conf_default:"2s"`

	MigrationsDir string `conf:"HARVEST_MIGRATIONS_DIR" conf_default:"db/migrations/harvester"`
}

func LoadConfig() (cfg *Config, err error) {
	cfg = &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("invalid config, DatabaseURL must be set")
	}
	if cfg.QueueDatabaseURL == "" {
		cfg.QueueDatabaseURL = cfg.DatabaseURL
	}

	return cfg, nil
}
