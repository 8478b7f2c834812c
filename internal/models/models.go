package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleAdmin  = "ADMIN"
	RoleSeller = "SELLER"
	RoleBuyer  = "BUYER"
	RoleBroker = "BROKER"
)

// User holds the parties of a settlement. Gateway credentials belong to the
// party that receives funds: sellers for admin purchases, the platform admin
// for buyer purchases. The secret is never serialized.
type User struct {
	ID            int64          `db:"id" json:"id"`
	Username      string         `db:"username" json:"username"`
	Role          string         `db:"role" json:"role"`
	GatewayKeyID  sql.NullString `db:"gateway_key_id" json:"-"`
	GatewaySecret sql.NullString `db:"gateway_secret" json:"-"`
	ReferrerCode  sql.NullString `db:"referrer_code" json:"referrer_code,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Listing statuses
const (
	ListingStatusDraft    = "DRAFT"
	ListingStatusActive   = "ACTIVE"
	ListingStatusSold     = "SOLD"
	ListingStatusInactive = "INACTIVE"
)

// SellerListing is a seller's original for-sale item. Prices are in the
// gateway's minor currency unit. OnHand never goes below zero; hitting zero
// through a purchase flips the status to SOLD.
type SellerListing struct {
	ID          int64         `db:"id" json:"id"`
	SellerID    int64         `db:"seller_id" json:"seller_id"`
	Name        string        `db:"name" json:"name"`
	Price       int64         `db:"price" json:"price"`
	OnHand      int           `db:"on_hand" json:"on_hand"`
	Status      string        `db:"status" json:"status"`
	PurchasedBy sql.NullInt64 `db:"purchased_by" json:"purchased_by,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Lot statuses
const (
	LotStatusActive   = "ACTIVE"
	LotStatusSoldOut  = "SOLD_OUT"
	LotStatusInactive = "INACTIVE"
)

// ResaleLot is admin-owned inventory created from an acquired listing.
// TotalQty and PurchasePrice are frozen at acquisition; SoldQty only grows.
type ResaleLot struct {
	ID            int64     `db:"id" json:"id"`
	ListingID     int64     `db:"listing_id" json:"listing_id"`
	SellerID      int64     `db:"seller_id" json:"seller_id"`
	AdminID       int64     `db:"admin_id" json:"admin_id"`
	OrderID       int64     `db:"order_id" json:"order_id"`
	Name          string    `db:"name" json:"name"`
	TotalQty      int       `db:"total_qty" json:"total_qty"`
	SoldQty       int       `db:"sold_qty" json:"sold_qty"`
	PurchasePrice int64     `db:"purchase_price" json:"purchase_price"`
	SellingPrice  int64     `db:"selling_price" json:"selling_price"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Available is the quantity still purchasable from the lot.
func (l *ResaleLot) Available() int {
	return l.TotalQty - l.SoldQty
}

// CartLine belongs to exactly one buyer's cart and references either a
// resale lot or a legacy seller listing. No stock is reserved while a line
// sits in the cart; availability is re-checked at checkout.
type CartLine struct {
	ID        int64         `db:"id" json:"id"`
	BuyerID   int64         `db:"buyer_id" json:"buyer_id"`
	LotID     sql.NullInt64 `db:"lot_id" json:"lot_id,omitempty"`
	ListingID sql.NullInt64 `db:"listing_id" json:"listing_id,omitempty"`
	Quantity  int           `db:"quantity" json:"quantity"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// Order types
const (
	OrderTypeAdminPurchase = "ADMIN_PURCHASE"
	OrderTypeBuyerPurchase = "BUYER_PURCHASE"
)

// Order statuses
const (
	OrderStatusPlaced    = "PLACED"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusCreated  = "CREATED"
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// Order records either an admin purchase (admin+seller set) or a buyer
// purchase (buyer set). Item prices are frozen copies; payment status never
// regresses from PAID.
type Order struct {
	ID               int64          `db:"id" json:"id"`
	Type             string         `db:"type" json:"type"`
	BuyerID          sql.NullInt64  `db:"buyer_id" json:"buyer_id,omitempty"`
	SellerID         sql.NullInt64  `db:"seller_id" json:"seller_id,omitempty"`
	AdminID          sql.NullInt64  `db:"admin_id" json:"admin_id,omitempty"`
	TotalAmount      int64          `db:"total_amount" json:"total_amount"`
	ResalePrice      sql.NullInt64  `db:"resale_price" json:"resale_price,omitempty"`
	Status           string         `db:"status" json:"status"`
	PaymentStatus    string         `db:"payment_status" json:"payment_status"`
	GatewayOrderID   sql.NullString `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID sql.NullString `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewaySignature sql.NullString `db:"gateway_signature" json:"-"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminPurchaseParties and BuyerPurchaseParties make the order type explicit
// to callers so the wrong side's party fields are never read.
type AdminPurchaseParties struct {
	AdminID  int64
	SellerID int64
}

type BuyerPurchaseParties struct {
	BuyerID int64
}

// AdminParties returns the admin-purchase parties, or false for buyer orders.
func (o *Order) AdminParties() (AdminPurchaseParties, bool) {
	if o.Type != OrderTypeAdminPurchase {
		return AdminPurchaseParties{}, false
	}
	return AdminPurchaseParties{AdminID: o.AdminID.Int64, SellerID: o.SellerID.Int64}, true
}

// BuyerParties returns the buyer-purchase parties, or false for admin orders.
func (o *Order) BuyerParties() (BuyerPurchaseParties, bool) {
	if o.Type != OrderTypeBuyerPurchase {
		return BuyerPurchaseParties{}, false
	}
	return BuyerPurchaseParties{BuyerID: o.BuyerID.Int64}, true
}

// OrderItem is a frozen line of an order: product identity, quantity and unit
// price at the time of purchase, never recomputed from the live lot.
type OrderItem struct {
	ID          int64         `db:"id" json:"id"`
	OrderID     int64         `db:"order_id" json:"order_id"`
	LotID       sql.NullInt64 `db:"lot_id" json:"lot_id,omitempty"`
	ListingID   sql.NullInt64 `db:"listing_id" json:"listing_id,omitempty"`
	ProductName string        `db:"product_name" json:"product_name"`
	Quantity    int           `db:"quantity" json:"quantity"`
	UnitPrice   int64         `db:"unit_price" json:"unit_price"`
}

// BrokerAccount accumulates referral commissions. Code is unique and
// generated with collision checking.
type BrokerAccount struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Code          string          `db:"code" json:"code"`
	TotalEarnings decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	Active        bool            `db:"active" json:"active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Commission statuses
const (
	CommissionStatusPending = "PENDING"
	CommissionStatusPaid    = "PAID"
)

// CommissionRecord credits a fraction of the realized margin on one settled
// line to a referring broker. Profit may be non-positive; the record is still
// written. Immutable after creation except for status.
type CommissionRecord struct {
	ID            int64           `db:"id" json:"id"`
	BrokerID      int64           `db:"broker_id" json:"broker_id"`
	OrderID       int64           `db:"order_id" json:"order_id"`
	LotID         int64           `db:"lot_id" json:"lot_id"`
	SellerID      int64           `db:"seller_id" json:"seller_id"`
	BuyerID       int64           `db:"buyer_id" json:"buyer_id"`
	PurchasePrice int64           `db:"purchase_price" json:"purchase_price"`
	SellingPrice  int64           `db:"selling_price" json:"selling_price"`
	Profit        decimal.Decimal `db:"profit" json:"profit"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
