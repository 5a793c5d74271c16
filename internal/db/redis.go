package db

import (
	"context"
	"fmt"
	"time"

	"eastask-go/internal/config"
	"eastask-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// NewRedis returns nil, nil when no URL is configured; callers fall back to
// in-process implementations.
func NewRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	if cfg.URL == "" {
		log.Info("redis: not configured, using in-memory presence and no realtime stream")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("redis: connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}
