package worker

import (
	"context"

	"settlement-service/internal/broker"
	"settlement-service/internal/models"
	"settlement-service/internal/redisclient"
	"settlement-service/internal/store"
	"settlement-service/internal/util"

	"go.uber.org/zap"
)

// ProjectionWorker consumes settlement events and keeps the Redis lot
// availability projection fresh. The projection is display-only; falling
// behind costs stale cart views, never oversold stock.
type ProjectionWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	cache        *redisclient.Client
	logger       *zap.Logger
}

// NewProjectionWorker creates a projection worker
func NewProjectionWorker(consumer *broker.Consumer, st *store.Store, cache *redisclient.Client) *ProjectionWorker {
	w := &ProjectionWorker{
		consumer: consumer,
		store:    st,
		cache:    cache,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnAdminPurchaseSettled(w.handleAdminPurchaseSettled)
	eventHandler.OnBuyerCheckoutSettled(w.handleBuyerCheckoutSettled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ProjectionWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting projection worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ProjectionWorker) Stop() error {
	w.logger.Info("Stopping projection worker")
	return w.consumer.Close()
}

// handleAdminPurchaseSettled seeds the projection for a freshly created lot
func (w *ProjectionWorker) handleAdminPurchaseSettled(ctx context.Context, event *models.AdminPurchaseSettledEvent) error {
	if err := w.cache.SetLotAvailability(ctx, event.LotID, event.Quantity); err != nil {
		return err
	}

	w.logger.Info("Lot availability seeded",
		zap.Int64("lot_id", event.LotID),
		zap.Int("available", event.Quantity))
	return nil
}

// handleBuyerCheckoutSettled re-reads each touched lot and rewrites its
// cached availability. Reading back instead of decrementing keeps the
// projection convergent under redelivery.
func (w *ProjectionWorker) handleBuyerCheckoutSettled(ctx context.Context, event *models.BuyerCheckoutSettledEvent) error {
	for _, line := range event.Lines {
		lot, err := w.store.GetLotByID(ctx, line.LotID)
		if err != nil {
			return err
		}

		if lot.Available() == 0 {
			if err := w.cache.DeleteLotAvailability(ctx, lot.ID); err != nil {
				return err
			}
			w.logger.Info("Lot sold out, availability entry dropped",
				zap.Int64("lot_id", lot.ID))
			continue
		}

		if err := w.cache.SetLotAvailability(ctx, lot.ID, lot.Available()); err != nil {
			return err
		}

		w.logger.Info("Lot availability refreshed",
			zap.Int64("lot_id", lot.ID),
			zap.Int("available", lot.Available()))
	}
	return nil
}
