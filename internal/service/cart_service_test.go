package service

import (
	"context"
	"testing"

	"settlement-service/internal/models"
	"settlement-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartFixture struct {
	store *fakeStore
	cache *fakeCache
	svc   *CartService
	buyer *models.User
	lot   *models.ResaleLot
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	fs := newFakeStore()
	cache := newFakeCache()

	buyer := fs.putUser(models.User{Username: "shopper", Role: models.RoleBuyer})
	lot := fs.putLot(models.ResaleLot{
		Name:          "Handwoven Scarf",
		TotalQty:      5,
		SoldQty:       2,
		PurchasePrice: 50,
		SellingPrice:  80,
		Status:        models.LotStatusActive,
	})

	return &cartFixture{
		store: fs,
		cache: cache,
		svc:   NewCartService(fs, cache),
		buyer: buyer,
		lot:   lot,
	}
}

func TestAddLotMergesLines(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	first, err := f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 1)
	require.NoError(t, err)

	second, err := f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Quantity)

	lines, err := f.store.GetCartLines(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestAddLotValidation(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.AddLot(ctx, f.buyer.ID, 404, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 4)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	var stockErr *store.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)

	f.store.lots[f.lot.ID].Status = models.LotStatusInactive
	_, err = f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddListing(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	listing := f.store.putListing(models.SellerListing{
		SellerID: 99,
		Name:     "Carved Bowl",
		Price:    25,
		OnHand:   2,
		Status:   models.ListingStatusActive,
	})

	line, err := f.svc.AddListing(ctx, f.buyer.ID, listing.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, line.ListingID.Int64)

	_, err = f.svc.AddListing(ctx, f.buyer.ID, listing.ID, 1)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestUpdateLineZeroRemoves(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	line, err := f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateLine(ctx, f.buyer.ID, line.ID, 1))
	updated, err := f.store.GetCartLine(ctx, f.buyer.ID, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Quantity)

	require.NoError(t, f.svc.UpdateLine(ctx, f.buyer.ID, line.ID, 0))
	_, err = f.store.GetCartLine(ctx, f.buyer.ID, line.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, f.svc.UpdateLine(ctx, f.buyer.ID, line.ID, -1), ErrValidation)
}

func TestRemoveLine(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	line, err := f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveLine(ctx, f.buyer.ID, line.ID))
	assert.ErrorIs(t, f.svc.RemoveLine(ctx, f.buyer.ID, line.ID), store.ErrNotFound)
}

func TestViewComputesTotals(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	listing := f.store.putListing(models.SellerListing{
		SellerID: 99,
		Name:     "Carved Bowl",
		Price:    25,
		OnHand:   4,
		Status:   models.ListingStatusActive,
	})

	_, err := f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddListing(ctx, f.buyer.ID, listing.ID, 1)
	require.NoError(t, err)

	view, err := f.svc.View(ctx, f.buyer.ID)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	assert.Equal(t, int64(2*80+1*25), view.TotalAmount)

	byName := map[string]CartLineView{}
	for _, l := range view.Lines {
		byName[l.Name] = l
	}
	assert.Equal(t, int64(160), byName["Handwoven Scarf"].LineTotal)
	assert.Equal(t, 3, byName["Handwoven Scarf"].Available)
	assert.Equal(t, 4, byName["Carved Bowl"].Available)
}

func TestViewPrefersCachedAvailability(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddLot(ctx, f.buyer.ID, f.lot.ID, 1)
	require.NoError(t, err)

	f.cache.availability[f.lot.ID] = 1

	view, err := f.svc.View(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 1, view.Lines[0].Available)
}
