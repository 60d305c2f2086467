package acme

// The Directory resource maps the operations a client can perform to the
// endpoint URLs the server exposes for them, and carries CA metadata.
// It is immutable once fetched; the client re-fetches it only on an explicit
// refresh.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type Directory struct {
	// URL for fetching a fresh anti-replay nonce with a HEAD request.
	NewNonce string `json:"newNonce"`
	// URL for registering a new account.
	NewAccount string `json:"newAccount"`
	// URL for creating a new order.
	NewOrder string `json:"newOrder"`
	// URL for revoking a certificate. Surfaced but no revocation flow is
	// implemented.
	RevokeCert string `json:"revokeCert"`
	// URL for account key rollover. Surfaced but no rollover flow is
	// implemented.
	KeyChange string `json:"keyChange"`
	// CA metadata. Required; a directory response without a meta block is
	// rejected as malformed.
	Meta *DirectoryMeta `json:"meta"`
}

// DirectoryMeta is the metadata block of a Directory.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type DirectoryMeta struct {
	TermsOfService          string         `json:"termsOfService,omitempty"`
	Website                 string         `json:"website,omitempty"`
	CAAIdentities           []string       `json:"caaIdentities,omitempty"`
	ExternalAccountRequired bool           `json:"externalAccountRequired,omitempty"`
	Profiles                map[string]any `json:"profiles,omitempty"`
}

// RequiredEndpoints returns the directory keys every conforming directory
// response must carry, in the order they are validated.
func RequiredEndpoints() []string {
	return []string{
		NEW_NONCE_ENDPOINT,
		NEW_ACCOUNT_ENDPOINT,
		NEW_ORDER_ENDPOINT,
		REVOKE_CERT_ENDPOINT,
		KEY_CHANGE_ENDPOINT,
	}
}

// Endpoint returns the URL the directory lists for the given key, or an
// empty string if the key is unknown or unset.
func (d *Directory) Endpoint(name string) string {
	switch name {
	case NEW_NONCE_ENDPOINT:
		return d.NewNonce
	case NEW_ACCOUNT_ENDPOINT:
		return d.NewAccount
	case NEW_ORDER_ENDPOINT:
		return d.NewOrder
	case REVOKE_CERT_ENDPOINT:
		return d.RevokeCert
	case KEY_CHANGE_ENDPOINT:
		return d.KeyChange
	}
	return ""
}

// The Identifier resource represents a subject identifier that can be
// included in a certificate. In practice most ACME servers only support
// "dns" type identifiers where the value is a fully qualified domain name.
//
// See https://tools.ietf.org/html/rfc8555#section-9.7.7
type Identifier struct {
	// The Type of the Identifier value.
	Type string `json:"type"`
	// The Identifier value.
	Value string `json:"value"`
}

// The Order resource represents a collection of identifiers that an account
// wishes to create a Certificate for. Status transitions are server-driven;
// the client only triggers them by finalizing and observes them by
// re-fetching the order.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.3
type Order struct {
	// The server-assigned ID (a URL) identifying the Order, taken from the
	// Location header of the creation response.
	ID string `json:"-"`
	// The Status of the Order: "pending", "ready", "processing", "valid" or
	// "invalid".
	Status string `json:"status"`
	// A string representing an RFC 3339 date at which time the server
	// considers the Order expired.
	Expires string `json:"expires,omitempty"`
	// The Identifiers the Order wishes to finalize a Certificate for once the
	// Order is ready.
	Identifiers []Identifier `json:"identifiers"`
	// A list of URLs for Authorization resources the server specifies for the
	// Order Identifiers.
	Authorizations []string `json:"authorizations"`
	// A URL used to Finalize the Order with a CSR.
	Finalize string `json:"finalize"`
	// A URL used to fetch the Certificate issued for the Order after it was
	// finalized. Present and non-empty only when the Order status is "valid".
	Certificate string `json:"certificate,omitempty"`
	// The Error associated with an invalid Order.
	Error *Problem `json:"error,omitempty"`
}

// String returns the Order's ID URL.
func (o Order) String() string {
	return o.ID
}

// The Authorization resource represents an Account's authorization to issue
// for a specified identifier, based on interactions with the associated
// Challenges.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.4
type Authorization struct {
	// The server-assigned ID (a URL) identifying the Authorization.
	ID string `json:"-"`
	// The status of this authorization: "pending", "valid", "invalid",
	// "deactivated", "expired" or "revoked".
	Status string `json:"status"`
	// The identifier that the account holding this Authorization is
	// authorized to represent.
	Identifier Identifier `json:"identifier"`
	// For pending authorizations, the challenges the client can fulfill to
	// prove control of the identifier. For valid/invalid authorizations, the
	// challenge that was validated or attempted.
	Challenges []Challenge `json:"challenges"`
	// A string representing an RFC 3339 date at which time the Authorization
	// is considered expired by the server.
	Expires string `json:"expires,omitempty"`
	// True for authorizations created from an identifier that carried
	// a wildcard prefix.
	Wildcard bool `json:"wildcard,omitempty"`
}

// String returns the Authorization's server-assigned ID.
func (a Authorization) String() string {
	return a.ID
}

// The Challenge resource represents an action the client must take to
// authorize an account for a specific identifier.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.5
type Challenge struct {
	// The Type of the challenge ("dns-01", "http-01", "tls-alpn-01").
	Type string `json:"type"`
	// The URL of the challenge, used to notify the server that the challenge
	// response is ready.
	URL string `json:"url"`
	// The Token used for constructing the key authorization for this
	// challenge.
	Token string `json:"token"`
	// The Status of the challenge: "pending", "processing", "valid" or
	// "invalid".
	Status string `json:"status"`
	// The Error associated with an invalid challenge.
	Error *Problem `json:"error,omitempty"`
}

// String returns the URL of the Challenge.
func (c Challenge) String() string {
	return c.URL
}

// Problem is an RFC 7807 problem document from the server.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status,omitempty"`
}
