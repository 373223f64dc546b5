package services

import (
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"context"
	"fmt"
)

// EventListener turns auction events into websocket pushes for watchers.
type EventListener struct {
	broadcaster       domain.AuctionBroadcaster
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		connectionManager: connectionManager,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToAuctionEvents(ctx, el.HandleEvent)
}

// PublishAuctionEvent lets the listener sit directly behind a publisher when
// no event bus is configured.
func (el *EventListener) PublishAuctionEvent(_ context.Context, event *domain.AuctionEvent) error {
	return el.HandleEvent(event)
}

func (el *EventListener) HandleEvent(event *domain.AuctionEvent) error {
	el.log.Debug("Handling auction event", "type", event.Type, "auction_id", event.AuctionID,
		"version", event.Version)

	switch event.Type {
	case domain.EventBidAccepted:
		return el.handleBidAccepted(event)
	case domain.EventAuctionStarted:
		return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":       "auction_started",
			"auction_id": event.AuctionID,
			"timestamp":  event.Timestamp,
		})
	case domain.EventAuctionCompleted:
		return el.handleAuctionFinished(event, map[string]interface{}{
			"type":        "auction_completed",
			"auction_id":  event.AuctionID,
			"final_price": event.Amount.String(),
			"winner":      event.BidderID,
			"timestamp":   event.Timestamp,
		})
	case domain.EventAuctionCancelled:
		return el.handleAuctionFinished(event, map[string]interface{}{
			"type":       "auction_cancelled",
			"auction_id": event.AuctionID,
			"reason":     event.Reason,
			"timestamp":  event.Timestamp,
		})
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (el *EventListener) handleBidAccepted(event *domain.AuctionEvent) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":           "bid_update",
		"auction_id":     event.AuctionID,
		"current_price":  event.Amount.String(),
		"highest_bidder": event.BidderID,
		"version":        event.Version,
		"timestamp":      event.Timestamp,
	})
}

func (el *EventListener) handleAuctionFinished(event *domain.AuctionEvent, message map[string]interface{}) error {
	if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, message); err != nil {
		el.log.Error("Failed to broadcast auction end", "auction_id", event.AuctionID, "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
		el.log.Error("Failed to finalize connections for auction", "auction_id",
			event.AuctionID, "error", err)
		return err
	}
	return nil
}
