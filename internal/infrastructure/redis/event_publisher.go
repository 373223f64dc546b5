package redis

import (
	"bidding-engine/internal/domain"
	"bidding-engine/internal/events"
	"context"

	"github.com/go-redis/redis/v8"
)

const DefaultEventChannel = "auction_events"

type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &EventPublisherImpl{client: client, channel: channel}
}

func (r *EventPublisherImpl) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	payload, err := events.EncodeEvent(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}
