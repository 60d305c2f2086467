package dns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhoward/acmeissue/acme/keys"
)

// queryTXTRetrying queries the resolver for TXT values, retrying briefly so
// the in-process server has time to start listening.
func queryTXTRetrying(t *testing.T, resolver, recordName string) []string {
	t.Helper()
	precheck := &Precheck{Resolver: resolver}

	var values []string
	var err error
	for attempt := 0; attempt < 20; attempt++ {
		values, err = precheck.queryTXT(context.Background(), recordName)
		if err == nil && len(values) > 0 {
			return values
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err)
	return values
}

func TestChallSrvServesDigest(t *testing.T) {
	srv, err := NewChallSrv("127.0.0.1:5555")
	require.NoError(t, err)
	defer srv.Shutdown()

	ctx := context.Background()
	signer, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	keyAuth := keys.KeyAuth(signer, "token-abc")

	require.NoError(t, srv.SetRecord(ctx, "example.com",
		"_acme-challenge.example.com", keyAuth))

	// A validating CA looks for base64url(SHA-256(keyAuth)) in the TXT
	// record, never the raw key authorization.
	values := queryTXTRetrying(t, "127.0.0.1:5555", "_acme-challenge.example.com")
	assert.Contains(t, values, keys.DNS01TXTValue(keyAuth))
	assert.NotContains(t, values, keyAuth)
}
