package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"settlement-service/internal/models"
	"settlement-service/internal/store"
)

// fakeStore is an in-memory stand-in for the sqlx store. Transactional
// methods validate everything before mutating so a failed call leaves state
// untouched, mirroring a rolled-back transaction.
type fakeStore struct {
	users       map[int64]*models.User
	listings    map[int64]*models.SellerListing
	lots        map[int64]*models.ResaleLot
	orders      map[int64]*models.Order
	orderItems  []models.OrderItem
	cartLines   map[int64]*models.CartLine
	brokers     map[int64]*models.BrokerAccount
	commissions []models.CommissionRecord
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[int64]*models.User),
		listings:  make(map[int64]*models.SellerListing),
		lots:      make(map[int64]*models.ResaleLot),
		orders:    make(map[int64]*models.Order),
		cartLines: make(map[int64]*models.CartLine),
		brokers:   make(map[int64]*models.BrokerAccount),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) putUser(u models.User) *models.User {
	u.ID = f.id()
	f.users[u.ID] = &u
	return &u
}

func (f *fakeStore) putListing(l models.SellerListing) *models.SellerListing {
	l.ID = f.id()
	f.listings[l.ID] = &l
	return &l
}

func (f *fakeStore) putLot(l models.ResaleLot) *models.ResaleLot {
	l.ID = f.id()
	f.lots[l.ID] = &l
	return &l
}

func (f *fakeStore) putBroker(b models.BrokerAccount) *models.BrokerAccount {
	b.ID = f.id()
	f.brokers[b.ID] = &b
	return &b
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetAdminWithGatewayCredentials(ctx context.Context) (*models.User, error) {
	var best *models.User
	for _, u := range f.users {
		if u.Role != models.RoleAdmin || u.GatewayKeyID.String == "" || u.GatewaySecret.String == "" {
			continue
		}
		if best == nil || u.ID < best.ID {
			best = u
		}
	}
	if best == nil {
		return nil, fmt.Errorf("admin with gateway credentials: %w", store.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) GetListingByID(ctx context.Context, id int64) (*models.SellerListing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %d: %w", id, store.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) GetListingsBySeller(ctx context.Context, sellerID int64) ([]models.SellerListing, error) {
	var out []models.SellerListing
	for _, l := range f.listings {
		if l.SellerID == sellerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) GetLotByID(ctx context.Context, id int64) (*models.ResaleLot, error) {
	l, ok := f.lots[id]
	if !ok {
		return nil, fmt.Errorf("lot %d: %w", id, store.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) GetLotByOrderID(ctx context.Context, orderID int64) (*models.ResaleLot, error) {
	for _, l := range f.lots {
		if l.OrderID == orderID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("lot for order %d: %w", orderID, store.ErrNotFound)
}

func (f *fakeStore) ListActiveLots(ctx context.Context) ([]models.ResaleLot, error) {
	var out []models.ResaleLot
	for _, l := range f.lots {
		if l.Status == models.LotStatusActive && l.SoldQty < l.TotalQty {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateLotSellingPrice(ctx context.Context, lotID, price int64) error {
	l, ok := f.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d: %w", lotID, store.ErrNotFound)
	}
	l.SellingPrice = price
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order *models.Order) error {
	order.ID = f.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.BuyerID.Valid && o.BuyerID.Int64 == buyerID && o.Type == models.OrderTypeBuyerPurchase {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrdersBySeller(ctx context.Context, sellerID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.SellerID.Valid && o.SellerID.Int64 == sellerID && o.Type == models.OrderTypeAdminPurchase {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	item.ID = f.id()
	f.orderItems = append(f.orderItems, *item)
	return nil
}

func (f *fakeStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var out []models.OrderItem
	for _, it := range f.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) SetGatewayOrder(ctx context.Context, orderID int64, gatewayOrderID string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	if o.PaymentStatus == models.PaymentStatusPaid {
		return fmt.Errorf("order %d: %w", orderID, store.ErrAlreadyPaid)
	}
	o.GatewayOrderID = sql.NullString{String: gatewayOrderID, Valid: true}
	o.PaymentStatus = models.PaymentStatusCreated
	return nil
}

func (f *fakeStore) ConfirmOrderPaid(ctx context.Context, orderID int64, gatewayPaymentID, gatewaySignature string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	if o.PaymentStatus == models.PaymentStatusPaid {
		return fmt.Errorf("order %d: %w", orderID, store.ErrAlreadyPaid)
	}
	o.PaymentStatus = models.PaymentStatusPaid
	o.Status = models.OrderStatusConfirmed
	o.GatewayPaymentID = sql.NullString{String: gatewayPaymentID, Valid: true}
	o.GatewaySignature = sql.NullString{String: gatewaySignature, Valid: true}
	return nil
}

func (f *fakeStore) FinalizeAdminPurchaseTx(ctx context.Context, p store.AdminSettlementParams) (*models.ResaleLot, int, error) {
	order, ok := f.orders[p.OrderID]
	if !ok {
		return nil, 0, fmt.Errorf("order %d: %w", p.OrderID, store.ErrNotFound)
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, 0, fmt.Errorf("order %d: %w", p.OrderID, store.ErrAlreadyPaid)
	}

	listing, ok := f.listings[p.ListingID]
	if !ok || listing.Status != models.ListingStatusActive || listing.OnHand < p.Quantity {
		return nil, 0, fmt.Errorf("listing %d: %w", p.ListingID, store.ErrInsufficientStock)
	}

	order.PaymentStatus = models.PaymentStatusPaid
	order.Status = models.OrderStatusConfirmed
	order.GatewayPaymentID = sql.NullString{String: p.GatewayPaymentID, Valid: true}
	order.GatewaySignature = sql.NullString{String: p.GatewaySignature, Valid: true}

	listing.OnHand -= p.Quantity
	if listing.OnHand == 0 {
		listing.Status = models.ListingStatusSold
	}
	listing.PurchasedBy = sql.NullInt64{Int64: p.AdminID, Valid: true}

	lot := f.putLot(models.ResaleLot{
		ListingID:     p.ListingID,
		SellerID:      p.SellerID,
		AdminID:       p.AdminID,
		OrderID:       p.OrderID,
		Name:          p.ListingName,
		TotalQty:      p.Quantity,
		PurchasePrice: p.PurchasePrice,
		SellingPrice:  p.SellingPrice,
		Status:        models.LotStatusActive,
	})
	cp := *lot
	return &cp, listing.OnHand, nil
}

func (f *fakeStore) CreateBuyerOrderTx(ctx context.Context, p store.CheckoutParams) (*models.Order, []models.CommissionRecord, error) {
	for _, line := range p.Lines {
		if line.LotID.Valid {
			lot, ok := f.lots[line.LotID.Int64]
			if !ok || lot.Status != models.LotStatusActive || lot.Available() < line.Quantity {
				available := 0
				if ok {
					available = lot.Available()
				}
				return nil, nil, &store.InsufficientStockError{
					ProductID:   line.LotID.Int64,
					ProductName: line.ProductName,
					Available:   available,
					Requested:   line.Quantity,
				}
			}
		} else {
			listing, ok := f.listings[line.ListingID.Int64]
			if !ok || listing.Status != models.ListingStatusActive || listing.OnHand < line.Quantity {
				available := 0
				if ok {
					available = listing.OnHand
				}
				return nil, nil, &store.InsufficientStockError{
					ProductID:   line.ListingID.Int64,
					ProductName: line.ProductName,
					Available:   available,
					Requested:   line.Quantity,
				}
			}
		}
	}

	order := &models.Order{
		ID:            f.id(),
		Type:          models.OrderTypeBuyerPurchase,
		BuyerID:       sql.NullInt64{Int64: p.BuyerID, Valid: true},
		TotalAmount:   p.TotalAmount,
		Status:        models.OrderStatusPlaced,
		PaymentStatus: p.PaymentStatus,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	f.orders[order.ID] = order

	for _, line := range p.Lines {
		if line.LotID.Valid {
			lot := f.lots[line.LotID.Int64]
			lot.SoldQty += line.Quantity
			if lot.SoldQty >= lot.TotalQty {
				lot.Status = models.LotStatusSoldOut
			}
		} else {
			listing := f.listings[line.ListingID.Int64]
			listing.OnHand -= line.Quantity
			if listing.OnHand == 0 {
				listing.Status = models.ListingStatusSold
			}
		}

		f.orderItems = append(f.orderItems, models.OrderItem{
			ID:          f.id(),
			OrderID:     order.ID,
			LotID:       line.LotID,
			ListingID:   line.ListingID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	recorded := make([]models.CommissionRecord, 0, len(p.Commissions))
	for _, c := range p.Commissions {
		c.ID = f.id()
		c.OrderID = order.ID
		c.CreatedAt = time.Now()
		f.commissions = append(f.commissions, c)

		broker := f.brokers[c.BrokerID]
		broker.TotalEarnings = broker.TotalEarnings.Add(c.Amount)

		recorded = append(recorded, c)
	}

	for id, line := range f.cartLines {
		if line.BuyerID == p.BuyerID {
			delete(f.cartLines, id)
		}
	}

	cp := *order
	return &cp, recorded, nil
}

func (f *fakeStore) GetCartLines(ctx context.Context, buyerID int64) ([]models.CartLine, error) {
	var out []models.CartLine
	for _, l := range f.cartLines {
		if l.BuyerID == buyerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCartLine(ctx context.Context, buyerID, lineID int64) (*models.CartLine, error) {
	l, ok := f.cartLines[lineID]
	if !ok || l.BuyerID != buyerID {
		return nil, fmt.Errorf("cart line %d: %w", lineID, store.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) AddLotLine(ctx context.Context, buyerID, lotID int64, qty int) (*models.CartLine, error) {
	for _, l := range f.cartLines {
		if l.BuyerID == buyerID && l.LotID.Valid && l.LotID.Int64 == lotID {
			l.Quantity += qty
			cp := *l
			return &cp, nil
		}
	}
	line := &models.CartLine{
		ID:        f.id(),
		BuyerID:   buyerID,
		LotID:     sql.NullInt64{Int64: lotID, Valid: true},
		Quantity:  qty,
		CreatedAt: time.Now(),
	}
	f.cartLines[line.ID] = line
	cp := *line
	return &cp, nil
}

func (f *fakeStore) AddListingLine(ctx context.Context, buyerID, listingID int64, qty int) (*models.CartLine, error) {
	for _, l := range f.cartLines {
		if l.BuyerID == buyerID && l.ListingID.Valid && l.ListingID.Int64 == listingID {
			l.Quantity += qty
			cp := *l
			return &cp, nil
		}
	}
	line := &models.CartLine{
		ID:        f.id(),
		BuyerID:   buyerID,
		ListingID: sql.NullInt64{Int64: listingID, Valid: true},
		Quantity:  qty,
		CreatedAt: time.Now(),
	}
	f.cartLines[line.ID] = line
	cp := *line
	return &cp, nil
}

func (f *fakeStore) SetCartLineQuantity(ctx context.Context, buyerID, lineID int64, qty int) error {
	if qty == 0 {
		return f.RemoveCartLine(ctx, buyerID, lineID)
	}
	l, ok := f.cartLines[lineID]
	if !ok || l.BuyerID != buyerID {
		return fmt.Errorf("cart line %d: %w", lineID, store.ErrNotFound)
	}
	l.Quantity = qty
	return nil
}

func (f *fakeStore) RemoveCartLine(ctx context.Context, buyerID, lineID int64) error {
	l, ok := f.cartLines[lineID]
	if !ok || l.BuyerID != buyerID {
		return fmt.Errorf("cart line %d: %w", lineID, store.ErrNotFound)
	}
	delete(f.cartLines, lineID)
	return nil
}

func (f *fakeStore) GetBrokerByCode(ctx context.Context, code string) (*models.BrokerAccount, error) {
	for _, b := range f.brokers {
		if b.Code == code && b.Active {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("broker code %s: %w", code, store.ErrNotFound)
}

func (f *fakeStore) GetBrokerByUserID(ctx context.Context, userID int64) (*models.BrokerAccount, error) {
	for _, b := range f.brokers {
		if b.UserID == userID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("broker for user %d: %w", userID, store.ErrNotFound)
}

func (f *fakeStore) CreateBroker(ctx context.Context, userID int64, code string) (*models.BrokerAccount, error) {
	for _, b := range f.brokers {
		if b.Code == code {
			return nil, fmt.Errorf("broker code %s: %w", code, store.ErrDuplicateCode)
		}
	}
	b := f.putBroker(models.BrokerAccount{
		UserID:    userID,
		Code:      code,
		Active:    true,
		CreatedAt: time.Now(),
	})
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetCommissionsByBroker(ctx context.Context, brokerID int64, limit int) ([]models.CommissionRecord, error) {
	var out []models.CommissionRecord
	for _, c := range f.commissions {
		if c.BrokerID == brokerID {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetCommissionsByOrder(ctx context.Context, orderID int64) ([]models.CommissionRecord, error) {
	var out []models.CommissionRecord
	for _, c := range f.commissions {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakePublisher records published events
type fakePublisher struct {
	created     []*models.OrderCreatedEvent
	settled     []*models.AdminPurchaseSettledEvent
	checkouts   []*models.BuyerCheckoutSettledEvent
	commissions []*models.CommissionRecordedEvent
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	p.created = append(p.created, e)
	return nil
}

func (p *fakePublisher) PublishAdminPurchaseSettled(ctx context.Context, e *models.AdminPurchaseSettledEvent) error {
	p.settled = append(p.settled, e)
	return nil
}

func (p *fakePublisher) PublishBuyerCheckoutSettled(ctx context.Context, e *models.BuyerCheckoutSettledEvent) error {
	p.checkouts = append(p.checkouts, e)
	return nil
}

func (p *fakePublisher) PublishCommissionRecorded(ctx context.Context, e *models.CommissionRecordedEvent) error {
	p.commissions = append(p.commissions, e)
	return nil
}

// fakeCache is an in-memory verification and availability cache
type fakeCache struct {
	verified     map[int64]bool
	availability map[int64]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		verified:     make(map[int64]bool),
		availability: make(map[int64]int),
	}
}

func (c *fakeCache) MarkOrderVerified(ctx context.Context, orderID int64) error {
	c.verified[orderID] = true
	return nil
}

func (c *fakeCache) IsOrderVerified(ctx context.Context, orderID int64) (bool, error) {
	return c.verified[orderID], nil
}

func (c *fakeCache) GetLotAvailability(ctx context.Context, lotID int64) (int, bool, error) {
	avail, ok := c.availability[lotID]
	return avail, ok, nil
}
