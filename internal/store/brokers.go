package store

import (
	"context"
	"database/sql"
	"fmt"

	"settlement-service/internal/models"

	"github.com/lib/pq"
)

// GetBrokerByCode looks up a broker account by its referral code. A miss is
// the valid zero-broker outcome, reported as ErrNotFound for the caller to
// treat as soft.
func (s *Store) GetBrokerByCode(ctx context.Context, code string) (*models.BrokerAccount, error) {
	var broker models.BrokerAccount
	err := s.db.GetContext(ctx, &broker,
		"SELECT * FROM broker_accounts WHERE code = $1 AND active", code)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("broker code %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &broker, nil
}

// GetBrokerByUserID looks up a broker account by its owning user
func (s *Store) GetBrokerByUserID(ctx context.Context, userID int64) (*models.BrokerAccount, error) {
	var broker models.BrokerAccount
	err := s.db.GetContext(ctx, &broker,
		"SELECT * FROM broker_accounts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("broker for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &broker, nil
}

// CreateBroker inserts a broker account with the given code. A code collision
// surfaces as ErrDuplicateCode so the caller can regenerate and retry.
func (s *Store) CreateBroker(ctx context.Context, userID int64, code string) (*models.BrokerAccount, error) {
	var broker models.BrokerAccount
	err := s.db.GetContext(ctx, &broker, `
		INSERT INTO broker_accounts (user_id, code)
		VALUES ($1, $2)
		RETURNING *`,
		userID, code)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, fmt.Errorf("broker code %s: %w", code, ErrDuplicateCode)
		}
		return nil, err
	}
	return &broker, nil
}

// GetCommissionsByBroker retrieves a broker's commission history, newest
// first.
func (s *Store) GetCommissionsByBroker(ctx context.Context, brokerID int64, limit int) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM commission_records WHERE broker_id = $1 ORDER BY created_at DESC LIMIT $2",
		brokerID, limit)
	return records, err
}

// GetCommissionsByOrder retrieves the commission records written for an order
func (s *Store) GetCommissionsByOrder(ctx context.Context, orderID int64) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM commission_records WHERE order_id = $1 ORDER BY id", orderID)
	return records, err
}
