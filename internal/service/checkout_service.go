package service

import (
	"context"
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

type checkoutStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetCartLines(ctx context.Context, buyerID int64) ([]models.CartLine, error)
	GetLotByID(ctx context.Context, id int64) (*models.ResaleLot, error)
	GetListingByID(ctx context.Context, id int64) (*models.SellerListing, error)
	CreateBuyerOrderTx(ctx context.Context, p store.CheckoutParams) (*models.Order, []models.CommissionRecord, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]models.Order, error)
	GetCommissionsByOrder(ctx context.Context, orderID int64) ([]models.CommissionRecord, error)
	SetGatewayOrder(ctx context.Context, orderID int64, gatewayOrderID string) error
	ConfirmOrderPaid(ctx context.Context, orderID int64, gatewayPaymentID, gatewaySignature string) error
}

// CheckoutService settles buyer checkouts: the whole cart succeeds or nothing
// moves. In simulated gateway mode the order is marked paid inside the
// reservation transaction; in live mode it stays pending until the buyer's
// payment is verified.
type CheckoutService struct {
	store      checkoutStore
	commission *CommissionService
	creds      *CredentialResolver
	gw         gateway.Client
	publisher  EventPublisher
	simulated  bool
	currency   string
	logger     *zap.Logger
}

// NewCheckoutService creates a checkout service
func NewCheckoutService(
	store checkoutStore,
	commission *CommissionService,
	creds *CredentialResolver,
	gw gateway.Client,
	publisher EventPublisher,
	simulated bool,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		store:      store,
		commission: commission,
		creds:      creds,
		gw:         gw,
		publisher:  publisher,
		simulated:  simulated,
		currency:   currency,
		logger:     util.GetLogger(),
	}
}

// CheckoutResponse reports the settled order and any broker commissions it
// produced
type CheckoutResponse struct {
	Order       *models.Order             `json:"order"`
	Items       []models.OrderItem        `json:"items"`
	Commissions []models.CommissionRecord `json:"commissions,omitempty"`
}

// Checkout validates every cart line against live availability, then settles
// the order, reservations, commissions, broker credits and cart clearing as
// one transaction. A line that lost its stock fails the whole checkout with
// the product named and nothing written.
func (cs *CheckoutService) Checkout(ctx context.Context, buyerID int64) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	buyer, err := cs.store.GetUserByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	cartLines, err := cs.store.GetCartLines(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(cartLines) == 0 {
		return nil, ErrCartEmpty
	}

	var (
		totalAmount int64
		lines       = make([]store.CheckoutLine, 0, len(cartLines))
		commissions []models.CommissionRecord
	)
	for _, cl := range cartLines {
		if cl.LotID.Valid {
			lot, err := cs.store.GetLotByID(ctx, cl.LotID.Int64)
			if err != nil {
				return nil, err
			}
			if lot.Status != models.LotStatusActive || lot.Available() < cl.Quantity {
				util.SettlementFailuresTotal.WithLabelValues("checkout", "insufficient_stock").Inc()
				return nil, &store.InsufficientStockError{
					ProductID:   lot.ID,
					ProductName: lot.Name,
					Available:   lot.Available(),
					Requested:   cl.Quantity,
				}
			}

			lineCommissions, err := cs.commission.ForLotSale(ctx, lot, buyer)
			if err != nil {
				return nil, err
			}
			commissions = append(commissions, lineCommissions...)

			lines = append(lines, store.CheckoutLine{
				LotID:       cl.LotID,
				ProductName: lot.Name,
				Quantity:    cl.Quantity,
				UnitPrice:   lot.SellingPrice,
			})
			totalAmount += lot.SellingPrice * int64(cl.Quantity)
			continue
		}

		listing, err := cs.store.GetListingByID(ctx, cl.ListingID.Int64)
		if err != nil {
			return nil, err
		}
		if listing.Status != models.ListingStatusActive || listing.OnHand < cl.Quantity {
			util.SettlementFailuresTotal.WithLabelValues("checkout", "insufficient_stock").Inc()
			return nil, &store.InsufficientStockError{
				ProductID:   listing.ID,
				ProductName: listing.Name,
				Available:   listing.OnHand,
				Requested:   cl.Quantity,
			}
		}

		lines = append(lines, store.CheckoutLine{
			ListingID:   cl.ListingID,
			ProductName: listing.Name,
			Quantity:    cl.Quantity,
			UnitPrice:   listing.Price,
		})
		totalAmount += listing.Price * int64(cl.Quantity)
	}

	paymentStatus := models.PaymentStatusPending
	if cs.simulated {
		paymentStatus = models.PaymentStatusPaid
	}

	start := time.Now()
	order, recorded, err := cs.store.CreateBuyerOrderTx(ctx, store.CheckoutParams{
		BuyerID:       buyerID,
		TotalAmount:   totalAmount,
		PaymentStatus: paymentStatus,
		Lines:         lines,
		Commissions:   commissions,
	})
	util.SettlementLatency.WithLabelValues("checkout").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			util.SettlementFailuresTotal.WithLabelValues("checkout", "insufficient_stock").Inc()
		} else {
			util.SettlementFailuresTotal.WithLabelValues("checkout", "db_error").Inc()
		}
		return nil, err
	}

	util.CheckoutsSettledTotal.Inc()
	util.CommissionsRecordedTotal.Add(float64(len(recorded)))
	cs.logger.Info("Checkout settled",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", buyerID),
		zap.Int64("total_amount", totalAmount),
		zap.Int("lines", len(lines)),
		zap.Int("commissions", len(recorded)))

	cs.publishSettled(ctx, order, lines, recorded)

	items, err := cs.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return &CheckoutResponse{
		Order:       order,
		Items:       items,
		Commissions: recorded,
	}, nil
}

func (cs *CheckoutService) publishSettled(ctx context.Context, order *models.Order, lines []store.CheckoutLine, commissions []models.CommissionRecord) {
	settled := make([]models.SettledLine, 0, len(lines))
	for _, l := range lines {
		if !l.LotID.Valid {
			continue
		}
		settled = append(settled, models.SettledLine{
			LotID:     l.LotID.Int64,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	event := &models.BuyerCheckoutSettledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBuyerCheckoutDone,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		BuyerID:     order.BuyerID.Int64,
		TotalAmount: order.TotalAmount,
		Lines:       settled,
	}
	if err := cs.publisher.PublishBuyerCheckoutSettled(ctx, event); err != nil {
		cs.logger.Error("Failed to publish BuyerCheckoutSettled event", zap.Error(err))
	}

	for _, c := range commissions {
		commEvent := &models.CommissionRecordedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCommissionRecorded,
				Timestamp: time.Now(),
			},
			CommissionID: c.ID,
			BrokerID:     c.BrokerID,
			OrderID:      c.OrderID,
			LotID:        c.LotID,
			Amount:       c.Amount.String(),
		}
		if err := cs.publisher.PublishCommissionRecorded(ctx, commEvent); err != nil {
			cs.logger.Error("Failed to publish CommissionRecorded event", zap.Error(err))
		}
	}
}

// BuyerPaymentResponse carries what the buyer's payment client needs
type BuyerPaymentResponse struct {
	OrderID        int64  `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	GatewayKeyID   string `json:"gateway_key_id,omitempty"`
	Simulated      bool   `json:"simulated"`
}

// CreateBuyerPaymentOrder creates a gateway order for a pending buyer order
// against the platform admin's credentials. With no admin credentials
// configured the order is fabricated locally so the flow still completes.
func (cs *CheckoutService) CreateBuyerPaymentOrder(ctx context.Context, buyerID, orderID int64) (*BuyerPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateBuyerPaymentOrder")
	defer span.End()

	order, err := cs.ownedBuyerOrder(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, fmt.Errorf("order %d: %w", orderID, store.ErrAlreadyPaid)
	}

	client := cs.gw
	simulated := false
	creds, err := cs.creds.ForPlatform(ctx)
	if errors.Is(err, gateway.ErrCredentialsMissing) {
		client = gateway.NewSimulatedClient()
		simulated = true
	} else if err != nil {
		return nil, err
	}

	start := time.Now()
	gwOrder, err := client.CreateOrder(ctx, order.TotalAmount, cs.currency, creds, map[string]string{
		"order_id": fmt.Sprintf("%d", order.ID),
	})
	util.GatewayOrderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	if err := cs.store.SetGatewayOrder(ctx, order.ID, gwOrder.ID); err != nil {
		return nil, err
	}

	resp := &BuyerPaymentResponse{
		OrderID:        order.ID,
		GatewayOrderID: gwOrder.ID,
		Amount:         order.TotalAmount,
		Currency:       cs.currency,
		Simulated:      simulated,
	}
	if !simulated {
		resp.GatewayKeyID = creds.KeyID
	}
	return resp, nil
}

// VerifyBuyerPayment verifies the buyer's payment signature and marks the
// order paid. Simulated payments have no real signature to check; retried
// verifications return the paid state unchanged.
func (cs *CheckoutService) VerifyBuyerPayment(ctx context.Context, buyerID int64, req *VerifyPaymentRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.VerifyBuyerPayment")
	defer span.End()

	order, err := cs.ownedBuyerOrder(ctx, buyerID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return order, nil
	}
	if !order.GatewayOrderID.Valid || order.GatewayOrderID.String != req.GatewayOrderID {
		return nil, fmt.Errorf("gateway order id does not match order %d: %w", order.ID, ErrValidation)
	}

	creds, err := cs.creds.ForPlatform(ctx)
	switch {
	case errors.Is(err, gateway.ErrCredentialsMissing):
		// simulated payment, nothing to verify against
	case err != nil:
		return nil, err
	default:
		if err := gateway.VerifySignature(creds, req.GatewayOrderID, req.GatewayPaymentID, req.Signature); err != nil {
			util.SignatureVerificationsTotal.WithLabelValues("failure").Inc()
			util.SettlementFailuresTotal.WithLabelValues("buyer_payment", "invalid_signature").Inc()
			return nil, err
		}
		util.SignatureVerificationsTotal.WithLabelValues("success").Inc()
	}

	if err := cs.store.ConfirmOrderPaid(ctx, order.ID, req.GatewayPaymentID, req.Signature); err != nil {
		if errors.Is(err, store.ErrAlreadyPaid) {
			return cs.store.GetOrderByID(ctx, order.ID)
		}
		return nil, err
	}

	cs.logger.Info("Buyer payment verified", zap.Int64("order_id", order.ID))
	return cs.store.GetOrderByID(ctx, order.ID)
}

// ListPurchases returns a buyer's order history
func (cs *CheckoutService) ListPurchases(ctx context.Context, buyerID int64) ([]models.Order, error) {
	return cs.store.GetOrdersByBuyer(ctx, buyerID)
}

// OrderCommissions returns the commission records a settled order produced
func (cs *CheckoutService) OrderCommissions(ctx context.Context, orderID int64) ([]models.CommissionRecord, error) {
	return cs.store.GetCommissionsByOrder(ctx, orderID)
}

func (cs *CheckoutService) ownedBuyerOrder(ctx context.Context, buyerID, orderID int64) (*models.Order, error) {
	order, err := cs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	parties, ok := order.BuyerParties()
	if !ok {
		return nil, fmt.Errorf("order %d is not a buyer purchase: %w", orderID, ErrValidation)
	}
	if parties.BuyerID != buyerID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrForbidden)
	}
	return order, nil
}
