package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"settlement-service/internal/models"
)

// CreateOrder inserts a payment-intent order. Retried intent calls create new
// orders on purpose; deduplication happens at verification, not here.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (type, buyer_id, seller_id, admin_id, total_amount, resale_price, status, payment_status, gateway_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.Type, order.BuyerID, order.SellerID, order.AdminID,
		order.TotalAmount, order.ResalePrice, order.Status, order.PaymentStatus,
		order.GatewayOrderID)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByBuyer retrieves a buyer's purchase history
func (s *Store) GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE buyer_id = $1 AND type = $2 ORDER BY created_at DESC",
		buyerID, models.OrderTypeBuyerPurchase)
	return orders, err
}

// GetOrdersBySeller retrieves the admin purchases made against a seller
func (s *Store) GetOrdersBySeller(ctx context.Context, sellerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE seller_id = $1 AND type = $2 ORDER BY created_at DESC",
		sellerID, models.OrderTypeAdminPurchase)
	return orders, err
}

// CreateOrderItem inserts a frozen order line
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, lot_id, listing_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.LotID, item.ListingID, item.ProductName, item.Quantity, item.UnitPrice)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// SetGatewayOrder attaches a gateway order id to a buyer order and moves its
// payment status to CREATED ahead of client-side payment.
func (s *Store) SetGatewayOrder(ctx context.Context, orderID int64, gatewayOrderID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET gateway_order_id = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3 AND payment_status <> $4`,
		gatewayOrderID, models.PaymentStatusCreated, orderID, models.PaymentStatusPaid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d: %w", orderID, ErrAlreadyPaid)
	}
	return nil
}

// ConfirmOrderPaid records the verified gateway correlation triple and moves
// the order to PAID/CONFIRMED. The guard makes retried verifications a no-op:
// an already-PAID order returns ErrAlreadyPaid and nothing is rewritten.
func (s *Store) ConfirmOrderPaid(ctx context.Context, orderID int64, gatewayPaymentID, gatewaySignature string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1, status = $2, gateway_payment_id = $3, gateway_signature = $4, updated_at = NOW()
		WHERE id = $5 AND payment_status <> $1`,
		models.PaymentStatusPaid, models.OrderStatusConfirmed,
		gatewayPaymentID, gatewaySignature, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d: %w", orderID, ErrAlreadyPaid)
	}
	return nil
}

// AdminSettlementParams carries everything the admin-purchase settlement
// transaction writes once the signature has been verified.
type AdminSettlementParams struct {
	OrderID          int64
	GatewayPaymentID string
	GatewaySignature string
	ListingID        int64
	ListingName      string
	Quantity         int
	SellerID         int64
	AdminID          int64
	PurchasePrice    int64
	SellingPrice     int64
}

// FinalizeAdminPurchaseTx executes step five of the admin-purchase flow as
// one unit: mark the order paid, decrement the listing, create the lot.
// A verified payment never leaves the listing decremented without the lot
// created or vice versa; losing the stock race rolls the paid flag back too.
func (s *Store) FinalizeAdminPurchaseTx(ctx context.Context, p AdminSettlementParams) (*models.ResaleLot, int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1, status = $2, gateway_payment_id = $3, gateway_signature = $4, updated_at = NOW()
		WHERE id = $5 AND payment_status <> $1`,
		models.PaymentStatusPaid, models.OrderStatusConfirmed,
		p.GatewayPaymentID, p.GatewaySignature, p.OrderID)
	if err != nil {
		return nil, 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, 0, fmt.Errorf("order %d: %w", p.OrderID, ErrAlreadyPaid)
	}

	remaining, err := decrementListing(ctx, tx, p.ListingID, p.Quantity, sql.NullInt64{Int64: p.AdminID, Valid: true})
	if err != nil {
		return nil, 0, err
	}

	lot := &models.ResaleLot{
		ListingID:     p.ListingID,
		SellerID:      p.SellerID,
		AdminID:       p.AdminID,
		OrderID:       p.OrderID,
		Name:          p.ListingName,
		TotalQty:      p.Quantity,
		PurchasePrice: p.PurchasePrice,
		SellingPrice:  p.SellingPrice,
	}
	if err := createLot(ctx, tx, lot); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return lot, remaining, nil
}

// CheckoutLine is one cart line being settled: a resale lot line, or a
// legacy seller-listing line when ListingID is set instead.
type CheckoutLine struct {
	LotID       sql.NullInt64
	ListingID   sql.NullInt64
	ProductName string
	Quantity    int
	UnitPrice   int64
}

// CheckoutParams carries a fully validated checkout: frozen lines plus the
// commission records precomputed by the commission calculator.
type CheckoutParams struct {
	BuyerID       int64
	TotalAmount   int64
	PaymentStatus string
	Lines         []CheckoutLine
	Commissions   []models.CommissionRecord
}

// CreateBuyerOrderTx settles a buyer checkout as one unit: create the order
// with frozen items, reserve every line from its lot, write commission
// records, credit broker earnings, clear the cart. Any line losing its
// availability race aborts the whole transaction with the product named.
func (s *Store) CreateBuyerOrderTx(ctx context.Context, p CheckoutParams) (*models.Order, []models.CommissionRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	order := &models.Order{}
	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (type, buyer_id, total_amount, status, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`,
		models.OrderTypeBuyerPurchase, p.BuyerID, p.TotalAmount,
		models.OrderStatusPlaced, p.PaymentStatus)
	if err != nil {
		return nil, nil, err
	}

	for _, line := range p.Lines {
		if line.LotID.Valid {
			if err := reserveFromLot(ctx, tx, line.LotID.Int64, line.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					var available int
					_ = tx.GetContext(ctx, &available,
						"SELECT total_qty - sold_qty FROM resale_lots WHERE id = $1", line.LotID.Int64)
					return nil, nil, &InsufficientStockError{
						ProductID:   line.LotID.Int64,
						ProductName: line.ProductName,
						Available:   available,
						Requested:   line.Quantity,
					}
				}
				return nil, nil, err
			}
		} else {
			if _, err := decrementListing(ctx, tx, line.ListingID.Int64, line.Quantity, sql.NullInt64{}); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					var available int
					_ = tx.GetContext(ctx, &available,
						"SELECT on_hand FROM seller_listings WHERE id = $1", line.ListingID.Int64)
					return nil, nil, &InsufficientStockError{
						ProductID:   line.ListingID.Int64,
						ProductName: line.ProductName,
						Available:   available,
						Requested:   line.Quantity,
					}
				}
				return nil, nil, err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, lot_id, listing_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, line.LotID, line.ListingID, line.ProductName, line.Quantity, line.UnitPrice); err != nil {
			return nil, nil, err
		}
	}

	recorded := make([]models.CommissionRecord, 0, len(p.Commissions))
	for _, c := range p.Commissions {
		c.OrderID = order.ID
		err := tx.GetContext(ctx, &c, `
			INSERT INTO commission_records (broker_id, order_id, lot_id, seller_id, buyer_id, purchase_price, selling_price, profit, rate, amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING *`,
			c.BrokerID, c.OrderID, c.LotID, c.SellerID, c.BuyerID,
			c.PurchasePrice, c.SellingPrice, c.Profit, c.Rate, c.Amount, c.Status)
		if err != nil {
			return nil, nil, err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE broker_accounts
			SET total_earnings = total_earnings + $1, updated_at = NOW()
			WHERE id = $2`,
			c.Amount, c.BrokerID); err != nil {
			return nil, nil, err
		}
		recorded = append(recorded, c)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_lines WHERE buyer_id = $1", p.BuyerID); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return order, recorded, nil
}
