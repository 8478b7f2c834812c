package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/store"
	"settlement-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type settlementStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetListingByID(ctx context.Context, id int64) (*models.SellerListing, error)
	GetListingsBySeller(ctx context.Context, sellerID int64) ([]models.SellerListing, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersBySeller(ctx context.Context, sellerID int64) ([]models.Order, error)
	GetLotByOrderID(ctx context.Context, orderID int64) (*models.ResaleLot, error)
	GetLotByID(ctx context.Context, id int64) (*models.ResaleLot, error)
	ListActiveLots(ctx context.Context) ([]models.ResaleLot, error)
	UpdateLotSellingPrice(ctx context.Context, lotID, price int64) error
	FinalizeAdminPurchaseTx(ctx context.Context, p store.AdminSettlementParams) (*models.ResaleLot, int, error)
}

type verificationCache interface {
	MarkOrderVerified(ctx context.Context, orderID int64) error
	IsOrderVerified(ctx context.Context, orderID int64) (bool, error)
}

// SettlementService runs the admin acquisition flow: a payment intent against
// the seller's gateway account, then a verified settlement that converts
// listing stock into a resale lot.
type SettlementService struct {
	store     settlementStore
	creds     *CredentialResolver
	gw        gateway.Client
	publisher EventPublisher
	cache     verificationCache
	currency  string
	logger    *zap.Logger
}

// NewSettlementService creates a settlement service
func NewSettlementService(
	store settlementStore,
	creds *CredentialResolver,
	gw gateway.Client,
	publisher EventPublisher,
	cache verificationCache,
	currency string,
) *SettlementService {
	return &SettlementService{
		store:     store,
		creds:     creds,
		gw:        gw,
		publisher: publisher,
		cache:     cache,
		currency:  currency,
		logger:    util.GetLogger(),
	}
}

// AdminPurchaseRequest asks for a payment intent to acquire listing stock
type AdminPurchaseRequest struct {
	AdminID     int64 `json:"-"`
	ListingID   int64 `json:"listing_id" binding:"required"`
	Quantity    int   `json:"quantity" binding:"required,min=1"`
	ResalePrice int64 `json:"resale_price" binding:"required,min=1"`
}

// AdminPurchaseResponse carries what the admin's payment client needs to
// collect the payment. The key id initializes the client's gateway SDK; the
// secret never leaves the server.
type AdminPurchaseResponse struct {
	OrderID        int64  `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	GatewayKeyID   string `json:"gateway_key_id"`
}

// CreateAdminPurchase validates the acquisition and creates the gateway order
// against the seller's credentials. No stock moves here; the listing is only
// touched after verification.
func (ss *SettlementService) CreateAdminPurchase(ctx context.Context, req *AdminPurchaseRequest) (*AdminPurchaseResponse, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.CreateAdminPurchase")
	defer span.End()

	admin, err := ss.store.GetUserByID(ctx, req.AdminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != models.RoleAdmin {
		return nil, fmt.Errorf("user %d is not an admin: %w", req.AdminID, ErrForbidden)
	}

	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}
	if req.ResalePrice < 1 {
		return nil, fmt.Errorf("resale price must be positive: %w", ErrValidation)
	}

	listing, err := ss.store.GetListingByID(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("listing %d is not active: %w", listing.ID, ErrValidation)
	}
	if req.Quantity > listing.OnHand {
		return nil, &store.InsufficientStockError{
			ProductID:   listing.ID,
			ProductName: listing.Name,
			Available:   listing.OnHand,
			Requested:   req.Quantity,
		}
	}

	creds, err := ss.creds.ForSeller(ctx, listing.SellerID)
	if err != nil {
		return nil, err
	}

	totalAmount := listing.Price * int64(req.Quantity)

	start := time.Now()
	gwOrder, err := ss.gw.CreateOrder(ctx, totalAmount, ss.currency, creds, map[string]string{
		"listing_id": fmt.Sprintf("%d", listing.ID),
		"admin_id":   fmt.Sprintf("%d", req.AdminID),
	})
	util.GatewayOrderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.SettlementFailuresTotal.WithLabelValues("admin_purchase", "gateway_error").Inc()
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	order := &models.Order{
		Type:           models.OrderTypeAdminPurchase,
		SellerID:       sql.NullInt64{Int64: listing.SellerID, Valid: true},
		AdminID:        sql.NullInt64{Int64: req.AdminID, Valid: true},
		TotalAmount:    totalAmount,
		ResalePrice:    sql.NullInt64{Int64: req.ResalePrice, Valid: true},
		Status:         models.OrderStatusPlaced,
		PaymentStatus:  models.PaymentStatusCreated,
		GatewayOrderID: sql.NullString{String: gwOrder.ID, Valid: true},
	}
	if err := ss.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	item := &models.OrderItem{
		OrderID:     order.ID,
		ListingID:   sql.NullInt64{Int64: listing.ID, Valid: true},
		ProductName: listing.Name,
		Quantity:    req.Quantity,
		UnitPrice:   listing.Price,
	}
	if err := ss.store.CreateOrderItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	util.AdminPurchasesCreatedTotal.Inc()
	ss.logger.Info("Admin purchase intent created",
		zap.Int64("order_id", order.ID),
		zap.Int64("listing_id", listing.ID),
		zap.Int("quantity", req.Quantity),
		zap.Int64("amount", totalAmount),
		zap.String("gateway_key", creds.MaskedKeyID()))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:        order.ID,
		OrderType:      order.Type,
		TotalAmount:    order.TotalAmount,
		GatewayOrderID: gwOrder.ID,
	}
	if err := ss.publisher.PublishOrderCreated(ctx, event); err != nil {
		ss.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &AdminPurchaseResponse{
		OrderID:        order.ID,
		GatewayOrderID: gwOrder.ID,
		Amount:         totalAmount,
		Currency:       ss.currency,
		GatewayKeyID:   creds.KeyID,
	}, nil
}

// VerifyPaymentRequest carries the gateway correlation triple a paying client
// submits after completing the payment
type VerifyPaymentRequest struct {
	OrderID          int64  `json:"-"`
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

// AdminSettlementResponse reports the settled acquisition
type AdminSettlementResponse struct {
	OrderID          int64             `json:"order_id"`
	PaymentStatus    string            `json:"payment_status"`
	Lot              *models.ResaleLot `json:"lot"`
	ListingRemaining int               `json:"listing_remaining"`
}

// VerifyAdminPurchase verifies the payment signature and settles the
// acquisition: order paid, listing decremented, lot created, all in one
// transaction. A bad signature leaves every record exactly as it was.
// Re-verifying a settled order replays the original outcome.
func (ss *SettlementService) VerifyAdminPurchase(ctx context.Context, req *VerifyPaymentRequest) (*AdminSettlementResponse, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.VerifyAdminPurchase")
	defer span.End()

	order, err := ss.store.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	parties, ok := order.AdminParties()
	if !ok {
		return nil, fmt.Errorf("order %d is not an admin purchase: %w", order.ID, ErrValidation)
	}

	if verified, err := ss.cache.IsOrderVerified(ctx, order.ID); err == nil && verified {
		return ss.replaySettlement(ctx, order)
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return ss.replaySettlement(ctx, order)
	}

	if !order.GatewayOrderID.Valid || order.GatewayOrderID.String != req.GatewayOrderID {
		return nil, fmt.Errorf("gateway order id does not match order %d: %w", order.ID, ErrValidation)
	}

	creds, err := ss.creds.ForSeller(ctx, parties.SellerID)
	if err != nil {
		return nil, err
	}

	if err := gateway.VerifySignature(creds, req.GatewayOrderID, req.GatewayPaymentID, req.Signature); err != nil {
		util.SignatureVerificationsTotal.WithLabelValues("failure").Inc()
		util.SettlementFailuresTotal.WithLabelValues("admin_purchase", "invalid_signature").Inc()
		ss.logger.Warn("Admin purchase signature rejected",
			zap.Int64("order_id", order.ID),
			zap.String("gateway_order_id", req.GatewayOrderID))
		return nil, err
	}
	util.SignatureVerificationsTotal.WithLabelValues("success").Inc()

	items, err := ss.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if len(items) != 1 || !items[0].ListingID.Valid {
		return nil, fmt.Errorf("order %d has no listing item: %w", order.ID, ErrValidation)
	}
	item := items[0]

	start := time.Now()
	lot, remaining, err := ss.store.FinalizeAdminPurchaseTx(ctx, store.AdminSettlementParams{
		OrderID:          order.ID,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.Signature,
		ListingID:        item.ListingID.Int64,
		ListingName:      item.ProductName,
		Quantity:         item.Quantity,
		SellerID:         parties.SellerID,
		AdminID:          parties.AdminID,
		PurchasePrice:    item.UnitPrice,
		SellingPrice:     order.ResalePrice.Int64,
	})
	util.SettlementLatency.WithLabelValues("admin_purchase").Observe(time.Since(start).Seconds())
	if errors.Is(err, store.ErrAlreadyPaid) {
		return ss.replaySettlement(ctx, order)
	}
	if errors.Is(err, store.ErrInsufficientStock) {
		util.SettlementFailuresTotal.WithLabelValues("admin_purchase", "insufficient_stock").Inc()
		return nil, err
	}
	if err != nil {
		util.SettlementFailuresTotal.WithLabelValues("admin_purchase", "db_error").Inc()
		return nil, fmt.Errorf("finalize admin purchase: %w", err)
	}

	if err := ss.cache.MarkOrderVerified(ctx, order.ID); err != nil {
		ss.logger.Warn("Failed to cache verification marker",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}

	util.AdminPurchasesSettledTotal.Inc()
	ss.logger.Info("Admin purchase settled",
		zap.Int64("order_id", order.ID),
		zap.Int64("lot_id", lot.ID),
		zap.Int("quantity", lot.TotalQty),
		zap.Int("listing_remaining", remaining))

	event := &models.AdminPurchaseSettledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAdminPurchaseDone,
			Timestamp: time.Now(),
		},
		OrderID:          order.ID,
		ListingID:        lot.ListingID,
		LotID:            lot.ID,
		Quantity:         lot.TotalQty,
		ListingRemaining: remaining,
	}
	if err := ss.publisher.PublishAdminPurchaseSettled(ctx, event); err != nil {
		ss.logger.Error("Failed to publish AdminPurchaseSettled event", zap.Error(err))
	}

	return &AdminSettlementResponse{
		OrderID:          order.ID,
		PaymentStatus:    models.PaymentStatusPaid,
		Lot:              lot,
		ListingRemaining: remaining,
	}, nil
}

// replaySettlement rebuilds the settled response for a verification retry
func (ss *SettlementService) replaySettlement(ctx context.Context, order *models.Order) (*AdminSettlementResponse, error) {
	lot, err := ss.store.GetLotByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	listing, err := ss.store.GetListingByID(ctx, lot.ListingID)
	if err != nil {
		return nil, err
	}

	ss.logger.Info("Replaying settled admin purchase",
		zap.Int64("order_id", order.ID),
		zap.Int64("lot_id", lot.ID))

	return &AdminSettlementResponse{
		OrderID:          order.ID,
		PaymentStatus:    models.PaymentStatusPaid,
		Lot:              lot,
		ListingRemaining: listing.OnHand,
	}, nil
}

// UpdateResalePrice changes the admin-chosen selling price of a lot. Sold
// units keep the price frozen on their order items.
func (ss *SettlementService) UpdateResalePrice(ctx context.Context, adminID, lotID, price int64) error {
	admin, err := ss.store.GetUserByID(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.Role != models.RoleAdmin {
		return fmt.Errorf("user %d is not an admin: %w", adminID, ErrForbidden)
	}
	if price < 1 {
		return fmt.Errorf("selling price must be positive: %w", ErrValidation)
	}
	return ss.store.UpdateLotSellingPrice(ctx, lotID, price)
}

// ListResaleInventory returns the buyer-facing resale catalog
func (ss *SettlementService) ListResaleInventory(ctx context.Context) ([]models.ResaleLot, error) {
	return ss.store.ListActiveLots(ctx)
}

// GetLot returns one resale lot
func (ss *SettlementService) GetLot(ctx context.Context, lotID int64) (*models.ResaleLot, error) {
	return ss.store.GetLotByID(ctx, lotID)
}

// ListSellerListings returns a seller's own listings
func (ss *SettlementService) ListSellerListings(ctx context.Context, sellerID int64) ([]models.SellerListing, error) {
	return ss.store.GetListingsBySeller(ctx, sellerID)
}

// ListSellerSales returns the admin purchases made against a seller
func (ss *SettlementService) ListSellerSales(ctx context.Context, sellerID int64) ([]models.Order, error) {
	return ss.store.GetOrdersBySeller(ctx, sellerID)
}

// GetOrder retrieves an order with its frozen items
func (ss *SettlementService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := ss.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	items, err := ss.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}
