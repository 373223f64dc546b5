package main

import (
	"bidding-engine/internal/api/handlers"
	"bidding-engine/internal/clock"
	"bidding-engine/internal/config"
	"bidding-engine/internal/domain"
	"bidding-engine/internal/infrastructure/amqp"
	"bidding-engine/internal/infrastructure/leader"
	"bidding-engine/internal/infrastructure/redis"
	"bidding-engine/internal/infrastructure/storage"
	"bidding-engine/internal/services"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}
	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var rdb *redisClient.Client
	if cfg.Store.Driver == "redis" || cfg.Events.Redis || cfg.Leader.Enabled {
		rdb, err = utils.InitializeRedis(ctx, cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer rdb.Close()
		log.Info("Connected to Redis", "address", cfg.Redis.Address)
	}

	store, closeStore, err := storage.Open(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal("Failed to open auction store", "driver", cfg.Store.Driver, "error", err)
	}
	defer closeStore()

	var sinks []domain.EventPublisher
	if cfg.Events.Redis {
		sinks = append(sinks, redis.NewEventPublisher(rdb, cfg.Events.Channel))
	}
	if cfg.Events.AMQP {
		amqpPublisher, err := amqp.NewEventPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		defer amqpPublisher.Close()
		sinks = append(sinks, amqpPublisher)
	}
	publisher := services.NewFanoutPublisher(sinks...)
	log.Info("Event publishers configured", "count", publisher.Len())

	rules, err := services.NewIncrementRules(cfg.Bidding.IncrementTiers)
	if err != nil {
		log.Fatal("Invalid increment tiers", "error", err)
	}

	clk := clock.NewSystem()
	bidService := services.NewBidService(store, clk, log,
		services.WithMaxRetries(cfg.Bidding.MaxRetries),
		services.WithAmountScale(int32(cfg.Bidding.AmountScale)),
		services.WithBidEventPublisher(publisher),
	)
	auctionManager := services.NewAuctionManager(store, clk, publisher, rules, log,
		services.WithAuctionAmountScale(int32(cfg.Bidding.AmountScale)))
	sweeper := services.NewLifecycleSweeper(store, clk, publisher, log)

	var leaderElection *leader.RedisLeaderElection
	if cfg.Leader.Enabled {
		leaderElection = leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL)
		sweeper.WithLeaderElection(leaderElection, cfg.Instance.ID)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins(cfg.Server.CORSOrigins),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(auctionManager, bidService, sweeper, clk, log)
	auctionHandler.Register(e.Group("/api/v1"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "auction-service",
			"instance_id": cfg.Instance.ID,
			"store":       cfg.Store.Driver,
			"timestamp":   clk.Now().Format(time.RFC3339),
		})
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	if cfg.Sweeper.Enabled {
		if err := sweeper.Start(runCtx, cfg.Sweeper.Schedule); err != nil {
			log.Fatal("Failed to start lifecycle sweeper", "error", err)
		}
	}

	go func() {
		log.Info("Starting HTTP server", "address", cfg.Server.Address())
		if err := e.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if cfg.Sweeper.Enabled {
		if err := sweeper.Stop(); err != nil {
			log.Error("Failed to stop sweeper", "error", err)
		}
	}
	stopRun()
	if leaderElection != nil {
		if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
			log.Error("Failed to release leadership", "error", err)
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}

func corsOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}
