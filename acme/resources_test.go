package acme

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryEndpoint(t *testing.T) {
	dir := Directory{
		NewNonce:   "https://example.com/new-nonce",
		NewAccount: "https://example.com/new-account",
		NewOrder:   "https://example.com/new-order",
		RevokeCert: "https://example.com/revoke-cert",
		KeyChange:  "https://example.com/key-change",
	}

	for _, name := range RequiredEndpoints() {
		assert.NotEmpty(t, dir.Endpoint(name), "endpoint %q", name)
	}
	assert.Equal(t, "https://example.com/new-nonce", dir.Endpoint(NEW_NONCE_ENDPOINT))
	assert.Equal(t, "https://example.com/key-change", dir.Endpoint(KEY_CHANGE_ENDPOINT))
	assert.Empty(t, dir.Endpoint("renewalInfo"))
}

func TestOrderJSONShape(t *testing.T) {
	body := []byte(`{
		"status": "pending",
		"expires": "2026-09-01T00:00:00Z",
		"identifiers": [{"type": "dns", "value": "example.com"}],
		"authorizations": ["https://example.com/authz/1"],
		"finalize": "https://example.com/order/1/finalize"
	}`)

	var order Order
	require.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, []Identifier{{Type: "dns", Value: "example.com"}}, order.Identifiers)
	assert.Empty(t, order.ID, "the ID comes from the Location header, never the body")
	assert.Empty(t, order.Certificate)
}
