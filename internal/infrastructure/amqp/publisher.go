// Package amqp carries auction events over a RabbitMQ topic exchange.
package amqp

import (
	"bidding-engine/internal/domain"
	"bidding-engine/internal/events"
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "auction.events"

// publishTimeout bounds a single publish when the caller has no deadline.
const publishTimeout = 5 * time.Second

// RoutingKey maps an event to its topic, e.g. "auction.bid_accepted".
func RoutingKey(eventType domain.AuctionEventType) string {
	return "auction." + string(eventType)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type EventPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
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
	return &EventPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *EventPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	body, err := events.EncodeEvent(event)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(event.Type), false, false, amqp.Publishing{
		ContentType:  events.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s:%d:%s", event.AuctionID, event.Version, event.Type),
		Timestamp:    event.Timestamp,
		Body:         body,
	})
}

func (p *EventPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
