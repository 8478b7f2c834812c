package store

import (
	"context"
	"database/sql"
	"fmt"

	"settlement-service/internal/models"
)

// GetCartLines retrieves a buyer's cart lines. An empty slice is a valid
// empty cart; removing the last line does not delete the cart concept.
func (s *Store) GetCartLines(ctx context.Context, buyerID int64) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM cart_lines WHERE buyer_id = $1 ORDER BY created_at", buyerID)
	return lines, err
}

// AddLotLine adds qty of a resale lot to the buyer's cart, merging into an
// existing line for the same lot.
func (s *Store) AddLotLine(ctx context.Context, buyerID, lotID int64, qty int) (*models.CartLine, error) {
	var line models.CartLine
	err := s.db.GetContext(ctx, &line, `
		INSERT INTO cart_lines (buyer_id, lot_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (buyer_id, lot_id) WHERE lot_id IS NOT NULL
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING *`,
		buyerID, lotID, qty)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// AddListingLine adds qty of a legacy seller listing to the buyer's cart
func (s *Store) AddListingLine(ctx context.Context, buyerID, listingID int64, qty int) (*models.CartLine, error) {
	var line models.CartLine
	err := s.db.GetContext(ctx, &line, `
		INSERT INTO cart_lines (buyer_id, listing_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (buyer_id, listing_id) WHERE listing_id IS NOT NULL
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING *`,
		buyerID, listingID, qty)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// SetCartLineQuantity replaces a line's quantity. Quantity zero removes the
// line.
func (s *Store) SetCartLineQuantity(ctx context.Context, buyerID, lineID int64, qty int) error {
	if qty == 0 {
		return s.RemoveCartLine(ctx, buyerID, lineID)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_lines SET quantity = $1 WHERE id = $2 AND buyer_id = $3",
		qty, lineID, buyerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cart line %d: %w", lineID, ErrNotFound)
	}
	return nil
}

// RemoveCartLine deletes one line from the buyer's cart
func (s *Store) RemoveCartLine(ctx context.Context, buyerID, lineID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_lines WHERE id = $1 AND buyer_id = $2", lineID, buyerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cart line %d: %w", lineID, ErrNotFound)
	}
	return nil
}

// GetCartLine retrieves one line owned by the buyer
func (s *Store) GetCartLine(ctx context.Context, buyerID, lineID int64) (*models.CartLine, error) {
	var line models.CartLine
	err := s.db.GetContext(ctx, &line,
		"SELECT * FROM cart_lines WHERE id = $1 AND buyer_id = $2", lineID, buyerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cart line %d: %w", lineID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}
