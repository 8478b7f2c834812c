package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"settlement-service/internal/models"
	"settlement-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForLotSaleCreditsBothSides(t *testing.T) {
	fs := newFakeStore()
	sellerBroker := fs.putBroker(models.BrokerAccount{UserID: 1, Code: "BRK100001", Active: true})
	buyerBroker := fs.putBroker(models.BrokerAccount{UserID: 2, Code: "BRK100002", Active: true})
	seller := fs.putUser(models.User{
		Username:     "weaver",
		Role:         models.RoleSeller,
		ReferrerCode: sql.NullString{String: "BRK100001", Valid: true},
	})
	buyer := fs.putUser(models.User{
		Username:     "shopper",
		Role:         models.RoleBuyer,
		ReferrerCode: sql.NullString{String: "BRK100002", Valid: true},
	})

	svc, err := NewCommissionService(fs, "0.05")
	require.NoError(t, err)

	lot := &models.ResaleLot{ID: 42, SellerID: seller.ID, PurchasePrice: 50, SellingPrice: 80}
	records, err := svc.ForLotSale(context.Background(), lot, buyer)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, sellerBroker.ID, records[0].BrokerID)
	assert.Equal(t, buyerBroker.ID, records[1].BrokerID)
	for _, r := range records {
		assert.Equal(t, int64(42), r.LotID)
		assert.True(t, r.Profit.Equal(decimal.NewFromInt(30)))
		assert.True(t, r.Rate.Equal(decimal.RequireFromString("0.05")))
		assert.True(t, r.Amount.Equal(decimal.RequireFromString("1.5")))
		assert.Equal(t, models.CommissionStatusPaid, r.Status)
	}
}

func TestForLotSaleSameBrokerBothSides(t *testing.T) {
	fs := newFakeStore()
	broker := fs.putBroker(models.BrokerAccount{UserID: 1, Code: "BRK100001", Active: true})
	seller := fs.putUser(models.User{
		Username:     "weaver",
		ReferrerCode: sql.NullString{String: "BRK100001", Valid: true},
	})
	buyer := fs.putUser(models.User{
		Username:     "shopper",
		ReferrerCode: sql.NullString{String: "BRK100001", Valid: true},
	})

	svc, err := NewCommissionService(fs, "0.05")
	require.NoError(t, err)

	lot := &models.ResaleLot{ID: 42, SellerID: seller.ID, PurchasePrice: 50, SellingPrice: 80}
	records, err := svc.ForLotSale(context.Background(), lot, buyer)
	require.NoError(t, err)

	// one broker referring both parties earns twice
	require.Len(t, records, 2)
	assert.Equal(t, broker.ID, records[0].BrokerID)
	assert.Equal(t, broker.ID, records[1].BrokerID)
}

func TestForLotSaleInactiveBrokerSkipped(t *testing.T) {
	fs := newFakeStore()
	fs.putBroker(models.BrokerAccount{UserID: 1, Code: "BRK100001", Active: false})
	seller := fs.putUser(models.User{
		Username:     "weaver",
		ReferrerCode: sql.NullString{String: "BRK100001", Valid: true},
	})
	buyer := fs.putUser(models.User{Username: "shopper"})

	svc, err := NewCommissionService(fs, "0.05")
	require.NoError(t, err)

	lot := &models.ResaleLot{ID: 42, SellerID: seller.ID, PurchasePrice: 50, SellingPrice: 80}
	records, err := svc.ForLotSale(context.Background(), lot, buyer)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewCommissionServiceRejectsBadRate(t *testing.T) {
	fs := newFakeStore()
	_, err := NewCommissionService(fs, "five percent")
	assert.Error(t, err)
}

func TestEnsureBrokerAccount(t *testing.T) {
	fs := newFakeStore()
	user := fs.putUser(models.User{Username: "referrer", Role: models.RoleBroker})

	svc, err := NewCommissionService(fs, "0.05")
	require.NoError(t, err)

	account, err := svc.EnsureBrokerAccount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^BRK\d{6}$`), account.Code)
	assert.True(t, account.Active)
	assert.True(t, account.TotalEarnings.IsZero())

	// a second call returns the same account instead of minting a new code
	again, err := svc.EnsureBrokerAccount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)
	assert.Equal(t, account.Code, again.Code)
	assert.Len(t, fs.brokers, 1)
}

func TestEnsureBrokerAccountUnknownUser(t *testing.T) {
	fs := newFakeStore()
	svc, err := NewCommissionService(fs, "0.05")
	require.NoError(t, err)

	_, err = svc.EnsureBrokerAccount(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDashboard(t *testing.T) {
	fs := newFakeStore()
	user := fs.putUser(models.User{Username: "referrer", Role: models.RoleBroker})
	broker := fs.putBroker(models.BrokerAccount{UserID: user.ID, Code: "BRK123456", Active: true})
	fs.commissions = append(fs.commissions, models.CommissionRecord{
		ID:       1,
		BrokerID: broker.ID,
		OrderID:  7,
		Amount:   decimal.RequireFromString("1.5"),
	})

	svc, err := NewCommissionService(fs, "0.05")
	require.NoError(t, err)

	dashboard, err := svc.Dashboard(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "BRK123456", dashboard.Account.Code)
	require.Len(t, dashboard.Commissions, 1)
	assert.Equal(t, int64(7), dashboard.Commissions[0].OrderID)
}
