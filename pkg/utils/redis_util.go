package utils

import (
	"bidding-engine/internal/config"
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

func InitializeRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Address, err)
	}
	return rdb, nil
}
