package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"shop-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events. Events are keyed by shop
// so that everything happening inside one shop stays ordered.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func shopKey(shopID int64) string { return fmt.Sprintf("shop-%d", shopID) }

func (ep *EventPublisher) PublishShopEvent(ctx context.Context, event *models.ShopEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

func (ep *EventPublisher) PublishProductEvent(ctx context.Context, event *models.ProductEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

func (ep *EventPublisher) PublishOrderTotalChanged(ctx context.Context, event *models.OrderTotalChangedEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

func (ep *EventPublisher) PublishUserDeleted(ctx context.Context, event *models.UserDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("user-%d", event.UserID), event)
}

// DecodedEvent is a consumed message with its envelope parsed.
type DecodedEvent struct {
	models.BaseEvent
	Key       string
	Partition int
	Offset    int64
	Payload   json.RawMessage
}

// DecodeMessage parses the common envelope of a message.
func DecodeMessage(msg kafka.Message) (*DecodedEvent, error) {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return nil, fmt.Errorf("failed to unmarshal base event: %w", err)
	}
	if base.EventType == "" {
		return nil, fmt.Errorf("message at offset %d has no event_type", msg.Offset)
	}

	return &DecodedEvent{
		BaseEvent: base,
		Key:       string(msg.Key),
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Payload:   json.RawMessage(msg.Value),
	}, nil
}
