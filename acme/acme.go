// Package acme provides ACME protocol constants and resource types. See RFC 8555.
package acme

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"
	// The ACME directory key for the revokeCert endpoint.
	REVOKE_CERT_ENDPOINT = "revokeCert"
	// The ACME directory key for the keyChange endpoint.
	KEY_CHANGE_ENDPOINT = "keyChange"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-9.3
	REPLAY_NONCE_HEADER = "Replay-Nonce"

	// The media type for JWS request bodies. See
	// https://tools.ietf.org/html/rfc8555#section-6.2
	JOSE_CONTENT_TYPE = "application/jose+json"
)

// Status values shared by Orders, Authorizations and Challenges. Status is
// always assigned by the server; clients observe transitions by re-fetching
// the resource. See https://tools.ietf.org/html/rfc8555#section-7.1.6
const (
	StatusPending     = "pending"
	StatusReady       = "ready"
	StatusProcessing  = "processing"
	StatusValid       = "valid"
	StatusInvalid     = "invalid"
	StatusDeactivated = "deactivated"
	StatusExpired     = "expired"
	StatusRevoked     = "revoked"
)

// Challenge types specified by RFC 8555 §8.
const (
	CHALLENGE_DNS01    = "dns-01"
	CHALLENGE_HTTP01   = "http-01"
	CHALLENGE_TLSALPN1 = "tls-alpn-01"

	// The label prepended to an identifier value to form the TXT record name
	// for a dns-01 challenge. See https://tools.ietf.org/html/rfc8555#section-8.4
	DNS_CHALLENGE_PREFIX = "_acme-challenge"
)
