package amqp

import (
	"bidding-engine/internal/domain"
	"bidding-engine/internal/events"
	"bidding-engine/pkg/logger"
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventSubscriber binds a queue to every auction topic and feeds decoded
// events to a handler. Deliveries are acked after the handler runs; an
// undecodable body is dropped rather than requeued.
type EventSubscriber struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   logger.Logger
}

func NewEventSubscriber(url, exchange, queue string, log logger.Logger) (*EventSubscriber, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	// An empty name yields a server-named exclusive queue per instance, so
	// every bidding front sees every event.
	q, err := ch.QueueDeclare(queue, queue != "", queue == "", queue == "", false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "auction.*", exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind auction.*: %w", err)
	}
	return &EventSubscriber{conn: conn, ch: ch, queue: q.Name, log: log}, nil
}

func (s *EventSubscriber) SubscribeToAuctionEvents(ctx context.Context, handler domain.EventHandler) error {
	deliveries, err := s.ch.ConsumeWithContext(ctx, s.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			s.handleDelivery(d, handler)
		}
	}
}

func (s *EventSubscriber) handleDelivery(d amqp.Delivery, handler domain.EventHandler) {
	defer func() {
		if err := d.Ack(false); err != nil {
			s.log.Warn("Failed to ack delivery", "routing_key", d.RoutingKey, "error", err)
		}
	}()

	event, err := events.DecodeEvent(d.Body)
	if err != nil {
		s.log.Error("Dropping undecodable event", "routing_key", d.RoutingKey, "error", err)
		return
	}
	if err := handler(event); err != nil {
		s.log.Error("Failed to handle event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}

func (s *EventSubscriber) Close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
