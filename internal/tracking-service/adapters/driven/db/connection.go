package db

import (
	"context"
	"fmt"
	"time"

	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DataBase struct {
	cfg   *config.DBconfig
	mylog mylogger.Logger
	pool  *pgxpool.Pool
}

// ConnectDB opens the pool, retrying with backoff up to cfg.MaxRetries times.
func ConnectDB(ctx context.Context, dbCfg *config.DBconfig, mylog mylogger.Logger) (*DataBase, error) {
	d := &DataBase{
		cfg:   dbCfg,
		mylog: mylog,
	}

	if err := d.connect(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *DataBase) Pool() *pgxpool.Pool {
	return d.pool
}

// Close closes the pool
func (d *DataBase) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// IsAlive pings the DB to verify it's responsive
func (d *DataBase) IsAlive(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("DB is not initialized")
	}
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (d *DataBase) connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(d.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(d.cfg.MaxConns)

	attempt := 0
	op := func() error {
		attempt++
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		d.pool = pool
		return nil
	}
	notify := func(err error, wait time.Duration) {
		d.mylog.Error(fmt.Sprintf("DB connection attempt %d failed", attempt), err, "retry_in", wait.String())
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(d.cfg.MaxRetries-1)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("failed to connect to the database after %d attempts: %w", attempt, err)
	}

	d.mylog.Info("Successfully connected to the database")
	return nil
}
