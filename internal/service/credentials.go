package service

import (
	"context"
	"errors"
	"fmt"

	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/store"
	"settlement-service/internal/util"

	"go.uber.org/zap"
)

type credentialStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetAdminWithGatewayCredentials(ctx context.Context) (*models.User, error)
}

// CredentialResolver picks the gateway key pair for a settlement. Funds flow
// to the seller on admin purchases and to the platform on buyer purchases, so
// each flow resolves a different payee.
type CredentialResolver struct {
	store  credentialStore
	logger *zap.Logger
}

// NewCredentialResolver creates a credential resolver
func NewCredentialResolver(store credentialStore) *CredentialResolver {
	return &CredentialResolver{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ForSeller returns the seller's key pair. An admin purchase cannot proceed
// without it; there is no platform fallback on this side.
func (r *CredentialResolver) ForSeller(ctx context.Context, sellerID int64) (gateway.Credentials, error) {
	user, err := r.store.GetUserByID(ctx, sellerID)
	if err != nil {
		return gateway.Credentials{}, err
	}

	creds := gateway.Credentials{
		KeyID:  user.GatewayKeyID.String,
		Secret: user.GatewaySecret.String,
	}
	if !creds.Complete() {
		return gateway.Credentials{}, fmt.Errorf("seller %d: %w", sellerID, gateway.ErrCredentialsMissing)
	}
	return creds, nil
}

// ForPlatform returns the first admin's key pair for buyer payments. Callers
// fall back to the simulated gateway when no admin has configured one.
func (r *CredentialResolver) ForPlatform(ctx context.Context) (gateway.Credentials, error) {
	admin, err := r.store.GetAdminWithGatewayCredentials(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return gateway.Credentials{}, gateway.ErrCredentialsMissing
	}
	if err != nil {
		return gateway.Credentials{}, err
	}
	return gateway.Credentials{
		KeyID:  admin.GatewayKeyID.String,
		Secret: admin.GatewaySecret.String,
	}, nil
}
