// Package storage selects and opens the configured AuctionStore backend.
package storage

import (
	"bidding-engine/internal/config"
	"bidding-engine/internal/domain"
	"bidding-engine/internal/infrastructure/memory"
	"bidding-engine/internal/infrastructure/mysql"
	"bidding-engine/internal/infrastructure/postgres"
	redisstore "bidding-engine/internal/infrastructure/redis"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRedisRequired = errors.New("redis store driver needs a redis client")

// ErrScaleUnsupported means bidding.amount_scale asks for more fractional
// digits than the chosen store keeps exactly.
var ErrScaleUnsupported = errors.New("amount scale exceeds store precision")

// Open returns the store named by cfg.Store.Driver and a func releasing
// whatever connections it opened. rdb is only used by the redis driver and
// is not closed here.
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client, log logger.Logger) (domain.AuctionStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn("Using in-memory auction store; state is lost on restart")
		return memory.NewAuctionStore(), func() {}, nil

	case "mysql":
		if cfg.Bidding.AmountScale > mysql.MaxAmountScale {
			return nil, nil, fmt.Errorf("%w: mysql keeps %d decimal places, bidding.amount_scale is %d",
				ErrScaleUnsupported, mysql.MaxAmountScale, cfg.Bidding.AmountScale)
		}
		db, err := utils.InitializeMysql(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := mysql.NewAuctionStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("Connected to MySQL auction store")
		return store, func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		log.Info("Connected to Postgres auction store", "migrate", cfg.Postgres.Migrate)
		return postgres.NewAuctionStore(pool), pool.Close, nil

	case "redis":
		if rdb == nil {
			return nil, nil, ErrRedisRequired
		}
		log.Info("Using Redis auction store", "address", cfg.Redis.Address)
		return redisstore.NewAuctionStore(rdb), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
