package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/calcbot/core/logger"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	waitInterval   = 2 * time.Second
)

// Connect opens a pooled connection to the journal database.
func Connect(cfg Config) (*sqlx.DB, error) {
	if cfg.WaitSeconds > 0 {
		if err := WaitForPostgres(cfg.DSN(), time.Duration(cfg.WaitSeconds)*time.Second); err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	attrs := []any{
		slog.String("event", "db.connect"),
		slog.String("driver", driverName),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.DB.Error("db connect failed", append(attrs, slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if n := cfg.MaxConnections; n > 0 {
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
		attrs = append(attrs, slog.Int("pool_open", n))
	}
	logger.DB.Info("db connected", attrs...)
	return db, nil
}

// WaitForPostgres retries a ping every couple of seconds until the server
// answers or timeout elapses.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(waitInterval)
	defer ticker.Stop()

	attempt := 0
	for {
		attempt++
		err := ping(ctx, dsn)
		if err == nil {
			return nil
		}
		logger.DB.Debug("db not ready",
			slog.String("event", "db.wait"),
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}

func ping(ctx context.Context, dsn string) error {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
