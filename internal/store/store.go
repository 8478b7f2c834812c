package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"settlement-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Storage-level failures. Services wrap these into the request-boundary
// taxonomy; handlers map them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyPaid       = errors.New("order already paid")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrDuplicateCode     = errors.New("duplicate broker code")
)

// InsufficientStockError names the offending product so clients can re-render
// accurate availability without a full reload.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough quantity available for %s: available=%d, requested=%d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAdminWithGatewayCredentials returns the first admin account that has a
// configured gateway key pair, or ErrNotFound when none exists (the gateway
// adapter then falls back to simulated mode).
func (s *Store) GetAdminWithGatewayCredentials(ctx context.Context) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT * FROM users
		WHERE role = $1
		  AND COALESCE(gateway_key_id, '') <> ''
		  AND COALESCE(gateway_secret, '') <> ''
		ORDER BY id
		LIMIT 1`, models.RoleAdmin)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("admin with gateway credentials: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
