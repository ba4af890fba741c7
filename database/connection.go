package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/bgentry/que-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Connect opens the application database and waits for it to answer a ping.
func Connect(ctx context.Context, cfg *Config, logger logrus.FieldLogger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMin) * time.Minute)

	ping := func() error { return db.PingContext(ctx) }
	notify := func(err error, wait time.Duration) {
		logger.Warnf("Database not ready, retrying in %s: %s", wait, err)
	}
	if err := backoff.RetryNotify(ping, connectBackOff(ctx, cfg), notify); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	return db, nil
}

// ConnectQueue opens the pgx pool que-go works against. Connections have the
// que statements prepared.
func ConnectQueue(cfg *Config) (*pgx.ConnPool, error) {
	connCfg, err := pgx.ParseURI(cfg.QueueDatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse queue database url")
	}

	pool, err := pgx.NewConnPool(pgx.ConnPoolConfig{
		ConnConfig:     connCfg,
		MaxConnections: cfg.MaxOpenConns,
		AfterConnect:   que.PrepareStatements,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create queue connection pool")
	}
	return pool, nil
}

func connectBackOff(ctx context.Context, cfg *Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ConnectBackoff
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.ConnectRetries), ctx)
}
