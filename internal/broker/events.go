package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"settlement-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing settlement events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishAdminPurchaseSettled publishes AdminPurchaseSettled event
func (ep *EventPublisher) PublishAdminPurchaseSettled(ctx context.Context, event *models.AdminPurchaseSettledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBuyerCheckoutSettled publishes BuyerCheckoutSettled event
func (ep *EventPublisher) PublishBuyerCheckoutSettled(ctx context.Context, event *models.BuyerCheckoutSettledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCommissionRecorded publishes CommissionRecorded event
func (ep *EventPublisher) PublishCommissionRecorded(ctx context.Context, event *models.CommissionRecordedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming settlement events
type EventHandler struct {
	onAdminPurchaseSettled func(context.Context, *models.AdminPurchaseSettledEvent) error
	onBuyerCheckoutSettled func(context.Context, *models.BuyerCheckoutSettledEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnAdminPurchaseSettled registers a handler for AdminPurchaseSettled events
func (eh *EventHandler) OnAdminPurchaseSettled(handler func(context.Context, *models.AdminPurchaseSettledEvent) error) {
	eh.onAdminPurchaseSettled = handler
}

// OnBuyerCheckoutSettled registers a handler for BuyerCheckoutSettled events
func (eh *EventHandler) OnBuyerCheckoutSettled(handler func(context.Context, *models.BuyerCheckoutSettledEvent) error) {
	eh.onBuyerCheckoutSettled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeAdminPurchaseDone:
		if eh.onAdminPurchaseSettled != nil {
			var event models.AdminPurchaseSettledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AdminPurchaseSettled event: %w", err)
			}
			return eh.onAdminPurchaseSettled(ctx, &event)
		}

	case models.EventTypeBuyerCheckoutDone:
		if eh.onBuyerCheckoutSettled != nil {
			var event models.BuyerCheckoutSettledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BuyerCheckoutSettled event: %w", err)
			}
			return eh.onBuyerCheckoutSettled(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
