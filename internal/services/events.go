package services

import (
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"context"
	"errors"
)

// publishEvent runs after a commit. A failed publish is logged, never surfaced:
// the state change already happened.
func publishEvent(ctx context.Context, pub domain.EventPublisher, log logger.Logger, event *domain.AuctionEvent) {
	if pub == nil {
		return
	}
	if err := pub.PublishAuctionEvent(ctx, event); err != nil {
		log.Error("Failed to publish auction event", "type", event.Type,
			"auction_id", event.AuctionID, "version", event.Version, "error", err)
	}
}

// FanoutPublisher delivers each event to every configured sink.
type FanoutPublisher struct {
	publishers []domain.EventPublisher
}

func NewFanoutPublisher(publishers ...domain.EventPublisher) *FanoutPublisher {
	f := &FanoutPublisher{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

func (f *FanoutPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.PublishAuctionEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutPublisher) Len() int {
	return len(f.publishers)
}
