package coinbase

import (
	"testing"

	"github.com/spooky-finn/go-coinbase-feed/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCreds struct {
	id     string
	secret string
}

func (c testCreds) KeyID() string     { return c.id }
func (c testCreds) KeySecret() string { return c.secret }

func TestSigner_MissingCredentials(t *testing.T) {
	_, err := NewSigner(testCreds{})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	_, err = NewSigner(testCreds{id: "key"})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestSigner_SignREST(t *testing.T) {
	signer, err := NewSigner(testCreds{id: "key-1", secret: "s3cr3t"})
	require.NoError(t, err)

	auth := signer.SignRESTAt(1700000000, "GET", "/api/v3/brokerage/products")

	// HMAC-SHA256("1700000000GET/api/v3/brokerage/products", "s3cr3t")
	assert.Equal(t, "40afd6700b9a037701d291cc405c4d4e07cc298c0412db41f858bba9f90a95e5", auth.Signature)
	assert.Equal(t, "key-1", auth.Key)
	assert.Equal(t, "1700000000", auth.Timestamp)
}

func TestSigner_SignSubscribe(t *testing.T) {
	signer, err := NewSigner(testCreds{id: "key-1", secret: "s3cr3t"})
	require.NoError(t, err)

	auth := signer.SignSubscribeAt(1700000000, "level2", []string{"BTC-USD", "ETH-USD"})

	// HMAC-SHA256("1700000000level2BTC-USD,ETH-USD", "s3cr3t")
	assert.Equal(t, "5e38dcd2ab3a6543b8c5521833ffee6c140cb20aba58aed9a40a1c17be8154b6", auth.Signature)
	assert.Equal(t, "key-1", auth.APIKey)
}

func TestSigner_FreshTimestampPerCall(t *testing.T) {
	signer, err := NewSigner(testCreds{id: "key-1", secret: "s3cr3t"})
	require.NoError(t, err)

	auth := signer.SignREST("GET", "/api/v3/brokerage/products")
	assert.NotEmpty(t, auth.Timestamp)
	assert.Len(t, auth.Signature, 64)
}
