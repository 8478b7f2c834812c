package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"settlement-service/internal/models"
	"settlement-service/internal/store"
	"settlement-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type commissionStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetBrokerByCode(ctx context.Context, code string) (*models.BrokerAccount, error)
	GetBrokerByUserID(ctx context.Context, userID int64) (*models.BrokerAccount, error)
	CreateBroker(ctx context.Context, userID int64, code string) (*models.BrokerAccount, error)
	GetCommissionsByBroker(ctx context.Context, brokerID int64, limit int) ([]models.CommissionRecord, error)
}

const brokerCodeAttempts = 10

// CommissionService computes broker commissions and manages broker accounts.
// Each settled lot line can credit two independent brokers: the seller's
// referrer and the buyer's referrer.
type CommissionService struct {
	store  commissionStore
	rate   decimal.Decimal
	logger *zap.Logger
}

// NewCommissionService creates a commission service. The rate is a decimal
// fraction, e.g. "0.05" for five percent of margin.
func NewCommissionService(store commissionStore, rate string) (*CommissionService, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid commission rate %q: %w", rate, err)
	}
	return &CommissionService{
		store:  store,
		rate:   r,
		logger: util.GetLogger(),
	}, nil
}

// ForLotSale builds the commission records for one settled lot line. Profit is
// the per-unit margin between resale and acquisition price, not scaled by
// quantity. A referral code pointing at no active broker is skipped, never an
// error; the sale must not fail over a stale code.
func (cs *CommissionService) ForLotSale(ctx context.Context, lot *models.ResaleLot, buyer *models.User) ([]models.CommissionRecord, error) {
	profit := decimal.NewFromInt(lot.SellingPrice - lot.PurchasePrice)

	seller, err := cs.store.GetUserByID(ctx, lot.SellerID)
	if err != nil {
		return nil, fmt.Errorf("load seller %d: %w", lot.SellerID, err)
	}

	records := make([]models.CommissionRecord, 0, 2)
	for _, referrer := range []struct {
		side string
		code string
	}{
		{"seller", seller.ReferrerCode.String},
		{"buyer", buyer.ReferrerCode.String},
	} {
		if referrer.code == "" {
			continue
		}

		broker, err := cs.store.GetBrokerByCode(ctx, referrer.code)
		if errors.Is(err, store.ErrNotFound) {
			cs.logger.Warn("Referral code has no active broker, skipping commission",
				zap.String("side", referrer.side),
				zap.String("code", referrer.code),
				zap.Int64("lot_id", lot.ID))
			continue
		}
		if err != nil {
			return nil, err
		}

		records = append(records, models.CommissionRecord{
			BrokerID:      broker.ID,
			LotID:         lot.ID,
			SellerID:      lot.SellerID,
			BuyerID:       buyer.ID,
			PurchasePrice: lot.PurchasePrice,
			SellingPrice:  lot.SellingPrice,
			Profit:        profit,
			Rate:          cs.rate,
			Amount:        profit.Mul(cs.rate),
			Status:        models.CommissionStatusPaid,
		})
	}

	return records, nil
}

// EnsureBrokerAccount returns the user's broker account, creating one with a
// fresh collision-checked code on first call.
func (cs *CommissionService) EnsureBrokerAccount(ctx context.Context, userID int64) (*models.BrokerAccount, error) {
	existing, err := cs.store.GetBrokerByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if _, err := cs.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < brokerCodeAttempts; attempt++ {
		code := fmt.Sprintf("BRK%06d", rand.Intn(1000000))

		_, err := cs.store.GetBrokerByCode(ctx, code)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		broker, err := cs.store.CreateBroker(ctx, userID, code)
		if errors.Is(err, store.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}

		cs.logger.Info("Broker account created",
			zap.Int64("user_id", userID),
			zap.String("code", code))
		return broker, nil
	}

	return nil, fmt.Errorf("could not allocate a unique broker code after %d attempts", brokerCodeAttempts)
}

// Account returns the broker account backing a user's earnings view
func (cs *CommissionService) Account(ctx context.Context, userID int64) (*models.BrokerAccount, error) {
	return cs.store.GetBrokerByUserID(ctx, userID)
}

// BrokerDashboard is a broker's earnings view: the account plus recent
// commission records, newest first.
type BrokerDashboard struct {
	Account     *models.BrokerAccount     `json:"account"`
	Commissions []models.CommissionRecord `json:"commissions"`
}

// Dashboard returns the broker's account and recent commissions
func (cs *CommissionService) Dashboard(ctx context.Context, userID int64) (*BrokerDashboard, error) {
	account, err := cs.store.GetBrokerByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	commissions, err := cs.store.GetCommissionsByBroker(ctx, account.ID, 50)
	if err != nil {
		return nil, err
	}

	return &BrokerDashboard{
		Account:     account,
		Commissions: commissions,
	}, nil
}
