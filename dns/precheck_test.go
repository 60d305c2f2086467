package dns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhoward/acmeissue/acme/keys"
)

const testResolver = "127.0.0.1:5553"

func TestPrecheckVerify(t *testing.T) {
	srv, err := NewChallSrv(testResolver)
	require.NoError(t, err)
	defer srv.Shutdown()

	ctx := context.Background()
	signer, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	keyAuth := keys.KeyAuth(signer, "token-abc")

	require.NoError(t, srv.SetRecord(ctx, "example.com",
		"_acme-challenge.example.com", keyAuth))

	// The provider publishes the digest form, which is exactly what the
	// precheck looks for.
	precheck := &Precheck{
		Resolver:    testResolver,
		MaxAttempts: 20,
		Interval:    50 * time.Millisecond,
	}
	assert.NoError(t, precheck.Verify(ctx, "_acme-challenge.example.com", keyAuth))

	// After removal the record no longer resolves to the expected value.
	require.NoError(t, srv.RemoveRecord(ctx, "example.com",
		"_acme-challenge.example.com"))

	precheck.MaxAttempts = 2
	precheck.Interval = 10 * time.Millisecond
	err = precheck.Verify(ctx, "_acme-challenge.example.com", keyAuth)
	assert.ErrorContains(t, err, "did not show the expected value")
}

func TestPrecheckVerifyWrongValue(t *testing.T) {
	srv, err := NewChallSrv("127.0.0.1:5554")
	require.NoError(t, err)
	defer srv.Shutdown()

	ctx := context.Background()
	signer, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	require.NoError(t, srv.SetRecord(ctx, "example.com",
		"_acme-challenge.example.com", keys.KeyAuth(signer, "token-abc")))

	other, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	precheck := &Precheck{
		Resolver:    "127.0.0.1:5554",
		MaxAttempts: 2,
		Interval:    10 * time.Millisecond,
	}
	err = precheck.Verify(ctx, "_acme-challenge.example.com",
		keys.KeyAuth(other, "token-abc"))
	assert.Error(t, err)
}
