package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	creds := Credentials{KeyID: "rzp_test_abc", Secret: "topsecret"}

	sig := Sign("topsecret", "order_123", "pay_456")
	assert.NoError(t, VerifySignature(creds, "order_123", "pay_456", sig))
}

func TestVerifySignatureTampered(t *testing.T) {
	creds := Credentials{KeyID: "rzp_test_abc", Secret: "topsecret"}
	sig := Sign("topsecret", "order_123", "pay_456")

	assert.ErrorIs(t, VerifySignature(creds, "order_123", "pay_999", sig), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(creds, "order_999", "pay_456", sig), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(creds, "order_123", "pay_456", sig+"00"), ErrInvalidSignature)

	wrongSecret := Sign("othersecret", "order_123", "pay_456")
	assert.ErrorIs(t, VerifySignature(creds, "order_123", "pay_456", wrongSecret), ErrInvalidSignature)
}

func TestVerifySignatureRequiresCredentials(t *testing.T) {
	sig := Sign("topsecret", "order_123", "pay_456")

	err := VerifySignature(Credentials{KeyID: "rzp_test_abc"}, "order_123", "pay_456", sig)
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	err = VerifySignature(Credentials{Secret: "topsecret"}, "order_123", "pay_456", sig)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestMaskedKeyID(t *testing.T) {
	assert.Equal(t, "*********abcd", Credentials{KeyID: "rzp_test_abcd"}.MaskedKeyID())
	assert.Equal(t, "****", Credentials{KeyID: "abcd"}.MaskedKeyID())
	assert.Equal(t, "", Credentials{}.MaskedKeyID())
}

func TestSimulatedClientCreateOrder(t *testing.T) {
	client := NewSimulatedClient()

	order, err := client.CreateOrder(context.Background(), 150, "INR", Credentials{}, nil)
	require.NoError(t, err)

	assert.Contains(t, order.ID, "order_sim_")
	assert.Equal(t, int64(150), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.NotEmpty(t, order.Receipt)
}

func TestHTTPClientRequiresCredentials(t *testing.T) {
	client := NewHTTPClient("https://api.example.test/v1")

	_, err := client.CreateOrder(context.Background(), 150, "INR", Credentials{}, nil)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}
