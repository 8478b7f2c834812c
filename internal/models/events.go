package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeAdminPurchaseDone  = "ADMIN_PURCHASE_SETTLED"
	EventTypeBuyerCheckoutDone  = "BUYER_CHECKOUT_SETTLED"
	EventTypeCommissionRecorded = "COMMISSION_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a payment intent creates a local order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderType      string `json:"order_type"`
	TotalAmount    int64  `json:"total_amount"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
}

// AdminPurchaseSettledEvent published after a verified admin purchase has
// decremented the listing and created the resale lot
type AdminPurchaseSettledEvent struct {
	BaseEvent
	OrderID          int64 `json:"order_id"`
	ListingID        int64 `json:"listing_id"`
	LotID            int64 `json:"lot_id"`
	Quantity         int   `json:"quantity"`
	ListingRemaining int   `json:"listing_remaining"`
}

// SettledLine is one reserved line of a buyer checkout
type SettledLine struct {
	LotID     int64 `json:"lot_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// BuyerCheckoutSettledEvent published after a checkout has reserved all lines
type BuyerCheckoutSettledEvent struct {
	BaseEvent
	OrderID     int64         `json:"order_id"`
	BuyerID     int64         `json:"buyer_id"`
	TotalAmount int64         `json:"total_amount"`
	Lines       []SettledLine `json:"lines"`
}

// CommissionRecordedEvent published per commission record written
type CommissionRecordedEvent struct {
	BaseEvent
	CommissionID int64  `json:"commission_id"`
	BrokerID     int64  `json:"broker_id"`
	OrderID      int64  `json:"order_id"`
	LotID        int64  `json:"lot_id"`
	Amount       string `json:"amount"`
}
