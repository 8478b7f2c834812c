package store

import (
	"context"
	"database/sql"
	"fmt"

	"settlement-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetListingByID retrieves a seller listing by ID
func (s *Store) GetListingByID(ctx context.Context, id int64) (*models.SellerListing, error) {
	var listing models.SellerListing
	err := s.db.GetContext(ctx, &listing, "SELECT * FROM seller_listings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetListingsBySeller retrieves a seller's listings
func (s *Store) GetListingsBySeller(ctx context.Context, sellerID int64) ([]models.SellerListing, error) {
	var listings []models.SellerListing
	err := s.db.SelectContext(ctx, &listings,
		"SELECT * FROM seller_listings WHERE seller_id = $1 ORDER BY created_at DESC", sellerID)
	return listings, err
}

// GetLotByID retrieves a resale lot by ID
func (s *Store) GetLotByID(ctx context.Context, id int64) (*models.ResaleLot, error) {
	var lot models.ResaleLot
	err := s.db.GetContext(ctx, &lot, "SELECT * FROM resale_lots WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

// GetLotByOrderID retrieves the lot created by an admin-purchase order, used
// to rebuild the response when a verification call is retried.
func (s *Store) GetLotByOrderID(ctx context.Context, orderID int64) (*models.ResaleLot, error) {
	var lot models.ResaleLot
	err := s.db.GetContext(ctx, &lot, "SELECT * FROM resale_lots WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lot for order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

// ListActiveLots retrieves the buyer-visible resale inventory
func (s *Store) ListActiveLots(ctx context.Context) ([]models.ResaleLot, error) {
	var lots []models.ResaleLot
	err := s.db.SelectContext(ctx, &lots,
		"SELECT * FROM resale_lots WHERE status = $1 AND sold_qty < total_qty ORDER BY created_at DESC",
		models.LotStatusActive)
	return lots, err
}

// UpdateLotSellingPrice updates the admin-chosen resale price
func (s *Store) UpdateLotSellingPrice(ctx context.Context, lotID, price int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE resale_lots SET selling_price = $1, updated_at = NOW() WHERE id = $2", price, lotID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lot %d: %w", lotID, ErrNotFound)
	}
	return nil
}

// The three mutators below are the only ways quantity fields change. Each is
// a single guarded UPDATE re-checked against live state, so a write that lost
// a race fails instead of overwriting a concurrent decrement.

// decrementListing takes qty units off a listing's on-hand count and flips it
// to SOLD when it reaches zero. Returns the remaining quantity. The purchaser
// reference is only set for admin acquisitions.
func decrementListing(ctx context.Context, q sqlx.QueryerContext, listingID int64, qty int, purchaserID sql.NullInt64) (int, error) {
	var remaining int
	err := sqlx.GetContext(ctx, q, &remaining, `
		UPDATE seller_listings
		SET on_hand = on_hand - $1,
		    status = CASE WHEN on_hand - $1 <= 0 THEN 'SOLD' ELSE status END,
		    purchased_by = COALESCE($2, purchased_by),
		    updated_at = NOW()
		WHERE id = $3 AND status = 'ACTIVE' AND on_hand >= $1
		RETURNING on_hand`,
		qty, purchaserID, listingID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("listing %d: %w", listingID, ErrInsufficientStock)
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// createLot creates the resale lot for a settled admin purchase. Lots are
// never created any other way.
func createLot(ctx context.Context, q sqlx.QueryerContext, lot *models.ResaleLot) error {
	return sqlx.GetContext(ctx, q, lot, `
		INSERT INTO resale_lots (listing_id, seller_id, admin_id, order_id, name, total_qty, sold_qty, purchase_price, selling_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, 'ACTIVE')
		RETURNING *`,
		lot.ListingID, lot.SellerID, lot.AdminID, lot.OrderID, lot.Name,
		lot.TotalQty, lot.PurchasePrice, lot.SellingPrice)
}

// reserveFromLot moves qty units to sold and flips the lot to SOLD_OUT when
// it fills. The availability condition is evaluated inside the statement, not
// from a value read earlier.
func reserveFromLot(ctx context.Context, e sqlx.ExecerContext, lotID int64, qty int) error {
	res, err := e.ExecContext(ctx, `
		UPDATE resale_lots
		SET sold_qty = sold_qty + $1,
		    status = CASE WHEN sold_qty + $1 >= total_qty THEN 'SOLD_OUT' ELSE status END,
		    updated_at = NOW()
		WHERE id = $2 AND status = 'ACTIVE' AND sold_qty + $1 <= total_qty`,
		qty, lotID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("lot %d: %w", lotID, ErrInsufficientStock)
	}
	return nil
}
