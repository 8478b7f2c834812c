// Package gateway talks to the Razorpay-style payment gateway. Orders are
// created against the payee's credentials; payment signatures are verified
// against the same credentials' secret.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSignature aborts the whole settlement; the order's payment
	// status must stay unchanged.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrCredentialsMissing means the payee has not configured a key pair.
	ErrCredentialsMissing = errors.New("payee gateway credentials missing")
)

// Credentials is a payee's gateway key pair.
type Credentials struct {
	KeyID  string
	Secret string
}

// Complete reports whether both halves of the pair are configured.
func (c Credentials) Complete() bool {
	return c.KeyID != "" && c.Secret != ""
}

// MaskedKeyID hides all but the key id's tail for read-back responses.
func (c Credentials) MaskedKeyID() string {
	if len(c.KeyID) <= 4 {
		return strings.Repeat("*", len(c.KeyID))
	}
	return strings.Repeat("*", len(c.KeyID)-4) + c.KeyID[len(c.KeyID)-4:]
}

// GatewayOrder is the gateway-side order a client pays against.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Client creates gateway orders scoped to a payee's credentials.
type Client interface {
	CreateOrder(ctx context.Context, amount int64, currency string, creds Credentials, notes map[string]string) (*GatewayOrder, error)
}

// VerifySignature recomputes HMAC-SHA256(secret, orderID|paymentID) and
// compares hex digests in constant time.
func VerifySignature(creds Credentials, gatewayOrderID, gatewayPaymentID, signature string) error {
	if !creds.Complete() {
		return ErrCredentialsMissing
	}

	mac := hmac.New(sha256.New, []byte(creds.Secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// HTTPClient calls the gateway REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a live gateway client
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// CreateOrder creates a gateway order for the given amount in the gateway's
// minor currency unit. Creation is idempotent gateway-side; locally each call
// gets a fresh receipt.
func (c *HTTPClient) CreateOrder(ctx context.Context, amount int64, currency string, creds Credentials, notes map[string]string) (*GatewayOrder, error) {
	if !creds.Complete() {
		return nil, ErrCredentialsMissing
	}

	receipt := "ord_" + uuid.New().String()[:8]
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(creds.KeyID, creds.Secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway create order: unexpected status %d", resp.StatusCode)
	}

	var order GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("gateway create order: decode response: %w", err)
	}
	return &order, nil
}

// SimulatedClient fabricates gateway orders locally. Used as the fallback
// when the platform has no admin credentials so checkout still completes.
type SimulatedClient struct{}

// NewSimulatedClient creates a simulated gateway client
func NewSimulatedClient() *SimulatedClient {
	return &SimulatedClient{}
}

// CreateOrder returns a locally generated gateway order
func (c *SimulatedClient) CreateOrder(ctx context.Context, amount int64, currency string, creds Credentials, notes map[string]string) (*GatewayOrder, error) {
	return &GatewayOrder{
		ID:       "order_sim_" + uuid.New().String()[:12],
		Amount:   amount,
		Currency: currency,
		Receipt:  "ord_" + uuid.New().String()[:8],
	}, nil
}

// Sign computes the signature a paying client would submit. Only the
// simulated flow uses it; the live gateway signs on its side.
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
