package service

import (
	"context"
	"fmt"

	"settlement-service/internal/models"
	"settlement-service/internal/store"
	"settlement-service/internal/util"

	"go.uber.org/zap"
)

type cartStore interface {
	GetCartLines(ctx context.Context, buyerID int64) ([]models.CartLine, error)
	GetCartLine(ctx context.Context, buyerID, lineID int64) (*models.CartLine, error)
	AddLotLine(ctx context.Context, buyerID, lotID int64, qty int) (*models.CartLine, error)
	AddListingLine(ctx context.Context, buyerID, listingID int64, qty int) (*models.CartLine, error)
	SetCartLineQuantity(ctx context.Context, buyerID, lineID int64, qty int) error
	RemoveCartLine(ctx context.Context, buyerID, lineID int64) error
	GetLotByID(ctx context.Context, id int64) (*models.ResaleLot, error)
	GetListingByID(ctx context.Context, id int64) (*models.SellerListing, error)
}

type availabilityCache interface {
	GetLotAvailability(ctx context.Context, lotID int64) (int, bool, error)
}

// CartService manages buyer carts. Cart lines never hold stock; the checks
// here are advisory and checkout re-validates everything against the
// database.
type CartService struct {
	store  cartStore
	cache  availabilityCache
	logger *zap.Logger
}

// NewCartService creates a cart service
func NewCartService(store cartStore, cache availabilityCache) *CartService {
	return &CartService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// AddLot adds quantity of a resale lot to the buyer's cart, merging with an
// existing line for the same lot
func (c *CartService) AddLot(ctx context.Context, buyerID, lotID int64, qty int) (*models.CartLine, error) {
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}

	lot, err := c.store.GetLotByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status != models.LotStatusActive {
		return nil, fmt.Errorf("lot %d is not available: %w", lotID, ErrValidation)
	}
	if qty > lot.Available() {
		return nil, &store.InsufficientStockError{
			ProductID:   lot.ID,
			ProductName: lot.Name,
			Available:   lot.Available(),
			Requested:   qty,
		}
	}

	return c.store.AddLotLine(ctx, buyerID, lotID, qty)
}

// AddListing adds quantity of a seller listing to the buyer's cart
func (c *CartService) AddListing(ctx context.Context, buyerID, listingID int64, qty int) (*models.CartLine, error) {
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}

	listing, err := c.store.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("listing %d is not available: %w", listingID, ErrValidation)
	}
	if qty > listing.OnHand {
		return nil, &store.InsufficientStockError{
			ProductID:   listing.ID,
			ProductName: listing.Name,
			Available:   listing.OnHand,
			Requested:   qty,
		}
	}

	return c.store.AddListingLine(ctx, buyerID, listingID, qty)
}

// UpdateLine replaces a line's quantity; zero removes the line
func (c *CartService) UpdateLine(ctx context.Context, buyerID, lineID int64, qty int) error {
	if qty < 0 {
		return fmt.Errorf("quantity must not be negative: %w", ErrValidation)
	}
	return c.store.SetCartLineQuantity(ctx, buyerID, lineID, qty)
}

// RemoveLine deletes a line from the buyer's cart
func (c *CartService) RemoveLine(ctx context.Context, buyerID, lineID int64) error {
	return c.store.RemoveCartLine(ctx, buyerID, lineID)
}

// CartLineView is one cart line enriched with product identity, pricing and
// current availability
type CartLineView struct {
	LineID    int64  `json:"line_id"`
	LotID     int64  `json:"lot_id,omitempty"`
	ListingID int64  `json:"listing_id,omitempty"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
	Available int    `json:"available"`
}

// CartView is the buyer's whole cart with a recomputed total
type CartView struct {
	Lines       []CartLineView `json:"lines"`
	TotalAmount int64          `json:"total_amount"`
}

// View returns the buyer's cart with live pricing and availability. Lot
// availability is served from the cache projection when present; the database
// answers on a miss.
func (c *CartService) View(ctx context.Context, buyerID int64) (*CartView, error) {
	lines, err := c.store.GetCartLines(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	view := &CartView{Lines: make([]CartLineView, 0, len(lines))}
	for _, line := range lines {
		lv := CartLineView{
			LineID:   line.ID,
			Quantity: line.Quantity,
		}

		if line.LotID.Valid {
			lot, err := c.store.GetLotByID(ctx, line.LotID.Int64)
			if err != nil {
				return nil, err
			}
			lv.LotID = lot.ID
			lv.Name = lot.Name
			lv.UnitPrice = lot.SellingPrice
			lv.Available = lot.Available()

			if avail, ok, err := c.cache.GetLotAvailability(ctx, lot.ID); err == nil && ok {
				lv.Available = avail
			} else if err != nil {
				c.logger.Warn("Availability cache read failed",
					zap.Int64("lot_id", lot.ID), zap.Error(err))
			}
		} else {
			listing, err := c.store.GetListingByID(ctx, line.ListingID.Int64)
			if err != nil {
				return nil, err
			}
			lv.ListingID = listing.ID
			lv.Name = listing.Name
			lv.UnitPrice = listing.Price
			lv.Available = listing.OnHand
		}

		lv.LineTotal = lv.UnitPrice * int64(lv.Quantity)
		view.TotalAmount += lv.LineTotal
		view.Lines = append(view.Lines, lv)
	}

	return view, nil
}
