package main

import (
	"bidding-engine/internal/api/handlers"
	"bidding-engine/internal/api/middleware"
	"bidding-engine/internal/clock"
	"bidding-engine/internal/config"
	"bidding-engine/internal/domain"
	"bidding-engine/internal/infrastructure/amqp"
	"bidding-engine/internal/infrastructure/redis"
	"bidding-engine/internal/infrastructure/storage"
	"bidding-engine/internal/infrastructure/websocket"
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
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}
	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting bidding service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var rdb *redisClient.Client
	if cfg.Store.Driver == "redis" || cfg.Events.Redis {
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

	connManager := websocket.NewConnectionManager(log)
	broadcaster := websocket.NewWebSocketNotifier(connManager)
	eventListener := services.NewEventListener(connManager, broadcaster, log)

	// Accepted bids go to the shared bus when one is configured; watchers on
	// every instance then receive them through the subscriber below. Without a
	// bus the listener is fed in-process.
	var (
		sinks      []domain.EventPublisher
		subscriber domain.EventSubscriber
	)
	if cfg.Events.Redis {
		sinks = append(sinks, redis.NewEventPublisher(rdb, cfg.Events.Channel))
		subscriber = redis.NewRedisEventSubscriber(rdb, cfg.Events.Channel, log)
	}
	if cfg.Events.AMQP {
		amqpPublisher, err := amqp.NewEventPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		defer amqpPublisher.Close()
		sinks = append(sinks, amqpPublisher)

		if subscriber == nil {
			amqpSubscriber, err := amqp.NewEventSubscriber(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, log)
			if err != nil {
				log.Fatal("Failed to subscribe to RabbitMQ", "error", err)
			}
			defer amqpSubscriber.Close()
			subscriber = amqpSubscriber
		}
	}
	if subscriber == nil {
		sinks = append(sinks, eventListener)
	}

	bidService := services.NewBidService(store, clock.NewSystem(), log,
		services.WithMaxRetries(cfg.Bidding.MaxRetries),
		services.WithAmountScale(int32(cfg.Bidding.AmountScale)),
		services.WithBidEventPublisher(services.NewFanoutPublisher(sinks...)),
	)

	router := mux.NewRouter()
	router.Use(middleware.CORS(cfg.Server.CORSOrigins, log))
	handlers.NewWebSocketHandlers(bidService, connManager, log).Register(router)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	if subscriber != nil {
		go func() {
			if err := eventListener.Start(runCtx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Event listener stopped", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting bidding service", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopRun()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
