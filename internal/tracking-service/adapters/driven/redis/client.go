package redis

import (
	"context"
	"fmt"

	"bus-tracker/internal/config"

	"github.com/redis/go-redis/v9"
)

// Connect creates a client and checks the server answers.
func Connect(ctx context.Context, cfg *config.Redisconfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
		PoolSize:   cfg.PoolSize,
	})

	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return cli, nil
}
