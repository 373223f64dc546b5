package redis

import (
	"bidding-engine/internal/domain"
	"bidding-engine/internal/events"
	"bidding-engine/pkg/logger"
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, channel string, log logger.Logger) *RedisEventSubscriber {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisEventSubscriber{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// SubscribeToAuctionEvents blocks, feeding decoded events to handler until ctx
// is cancelled. Undecodable payloads and handler failures are logged and skipped.
func (r *RedisEventSubscriber) SubscribeToAuctionEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	ch := pubsub.Channel()

	r.log.Info("Subscribed to auction events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := events.DecodeEvent([]byte(msg.Payload))
			if err != nil {
				r.log.Error("Failed to decode event", "channel", msg.Channel, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "type", event.Type,
					"auction_id", event.AuctionID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}
