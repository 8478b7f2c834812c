package service

import (
	"context"

	"settlement-service/internal/models"
)

// EventPublisher emits settlement events for downstream projections. Publish
// failures are logged, never propagated; the database is the source of truth.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishAdminPurchaseSettled(ctx context.Context, event *models.AdminPurchaseSettledEvent) error
	PublishBuyerCheckoutSettled(ctx context.Context, event *models.BuyerCheckoutSettledEvent) error
	PublishCommissionRecorded(ctx context.Context, event *models.CommissionRecordedEvent) error
}
