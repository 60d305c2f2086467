// Package client provides a low-level ACME v2 client.
//
// The Client drives the full issuance flow against a single ACME server:
// directory resolution, account registration, order creation, dns-01
// challenge completion and order finalization. Every authenticated request
// draws a fresh anti-replay nonce, is wrapped in a signed JWS envelope and
// passes through the retry policy before reaching the transport. Internally
// the Client uses the net package to perform HTTP requests to the ACME
// server.
//
// A Client holds no global state; multiple Clients targeting different CAs
// can be used side by side. The account key pair and the resolved directory
// are read-only after initialization, so a single-flow caller never contends
// on shared mutable state across an I/O suspension.
package client

import (
	"context"
	"crypto"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/mailgun/timetools"
	"github.com/rs/zerolog"

	"github.com/lhoward/acmeissue/acme"
	"github.com/lhoward/acmeissue/dns"
	acmenet "github.com/lhoward/acmeissue/net"
)

// RetryConfig governs the retry policy for network operations. Zero fields
// are replaced by defaults, so partial overrides are merged rather than
// taken wholesale.
type RetryConfig struct {
	// Delay before the first re-attempt.
	InitialDelay time.Duration
	// Upper bound on the per-attempt delay.
	MaxDelay time.Duration
	// Maximum number of re-attempts after the first try.
	MaxRetries int
	// Multiplier applied to the delay after each re-attempt.
	Factor float64
}

// DefaultRetryConfig is the retry policy used when no overrides are given:
// 1s initial delay doubling to a 30s cap, five retries.
var DefaultRetryConfig = RetryConfig{
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	MaxRetries:   5,
	Factor:       2,
}

func (rc RetryConfig) withDefaults() RetryConfig {
	if rc.InitialDelay == 0 {
		rc.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if rc.MaxDelay == 0 {
		rc.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if rc.MaxRetries == 0 {
		rc.MaxRetries = DefaultRetryConfig.MaxRetries
	}
	if rc.Factor == 0 {
		rc.Factor = DefaultRetryConfig.Factor
	}
	return rc
}

// PollConfig governs the fixed-interval poll the finalizer runs while waiting
// for an order to reach a terminal status. CA validation latency is typically
// sub-second to a few seconds, so a short fixed interval beats exponential
// backoff here.
type PollConfig struct {
	// Time between order re-fetches.
	Interval time.Duration
	// Maximum number of re-fetches before giving up.
	MaxAttempts int
}

// DefaultPollConfig polls every two seconds, ten times.
var DefaultPollConfig = PollConfig{
	Interval:    2 * time.Second,
	MaxAttempts: 10,
}

func (pc PollConfig) withDefaults() PollConfig {
	if pc.Interval == 0 {
		pc.Interval = DefaultPollConfig.Interval
	}
	if pc.MaxAttempts == 0 {
		pc.MaxAttempts = DefaultPollConfig.MaxAttempts
	}
	return pc
}

// Config contains the options provided to New when creating a Client.
type Config struct {
	// A fully qualified URL for the ACME server's directory resource. Must
	// include an HTTP/HTTPS protocol prefix. Mandatory.
	DirectoryURL string
	// An optional file path to one or more PEM encoded CA certificates to be
	// used as trust roots for HTTPS requests to the ACME server. If empty the
	// system roots are used.
	CACert string
	// An optional email address used as the "mailto:" contact when an account
	// is created with CreateAccount. It should not have a protocol prefix.
	ContactEmail string
	// If true, fetch orders, authorizations, challenges and certificates with
	// signed POST-as-GET requests instead of plain GETs.
	PostAsGet bool
	// The DNS provider used to publish dns-01 challenge records. If nil the
	// client has no dns-01 solver and CompleteDNS01Challenges will fail on
	// any pending authorization.
	DNS dns.Provider
	// Optional propagation precheck run after a record is published and
	// before the server is notified.
	Precheck *dns.Precheck
	// Retry policy overrides, merged onto DefaultRetryConfig.
	Retry RetryConfig
	// Finalize poll overrides, merged onto DefaultPollConfig.
	Poll PollConfig
	// Logger for client activity. If nil a no-op logger is used.
	Logger *zerolog.Logger
	// Clock used for backoff and poll sleeps. If nil the real clock is used.
	// Tests inject a mock so backoff timing is deterministic.
	Clock timetools.TimeProvider
}

// normalize validates a Config.
func (conf *Config) normalize() error {
	// Clean up any junk whitespace that might have snuck in
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)
	conf.ContactEmail = strings.TrimSpace(conf.ContactEmail)

	if conf.DirectoryURL == "" {
		return fmt.Errorf("DirectoryURL must not be empty")
	}

	if _, err := url.Parse(conf.DirectoryURL); err != nil {
		return fmt.Errorf("DirectoryURL invalid: %s", err.Error())
	}

	if conf.ContactEmail != "" {
		addr, err := mail.ParseAddress(conf.ContactEmail)
		if err != nil {
			return fmt.Errorf("ContactEmail is invalid: %s", err.Error())
		}
		conf.ContactEmail = addr.Address
	}

	return nil
}

// Client allows interaction with an ACME server.
type Client struct {
	// A parsed *url.URL pointer for the ACME server's directory URL.
	DirectoryURL *url.URL
	// The Account used to authenticate requests. Populated by CreateAccount
	// or RestoreAccount; read-only afterwards.
	Account *acme.Account
	// Use POST-as-GET requests instead of GET for resource fetches.
	PostAsGet bool

	// contactEmail is the default contact used by CreateAccount when called
	// with an empty email.
	contactEmail string
	// the net object is used to make HTTP GET/POST/HEAD requests to the ACME
	// server.
	net *acmenet.ACMENet
	// clock provides sleeps for the retry policy and the finalize poll.
	clock timetools.TimeProvider
	log   zerolog.Logger
	retry RetryConfig
	poll  PollConfig
	// directory is the resolved directory. nil until the first operation
	// needs it; immutable afterwards until an explicit UpdateDirectory.
	directory *acme.Directory
	// solvers maps challenge types to their solver. Dispatching over this map
	// keeps the authorization traversal unaware of challenge mechanics, so
	// http-01/tls-alpn-01 can be added without touching it.
	solvers map[string]Solver
}

// Solver completes a single challenge type for an authorization.
type Solver interface {
	// Type returns the challenge type this solver handles (e.g. "dns-01").
	Type() string
	// Solve publishes the challenge response and notifies the server. It
	// returns once the notification is accepted; it does not wait for the
	// server-side validation to conclude.
	Solve(ctx context.Context, authz *acme.Authorization, chall *acme.Challenge) error
}

// New creates a Client instance from the given Config. If the config is not
// valid or if another error occurs it will be returned along with a nil
// Client. New performs no network I/O; the directory is resolved lazily on
// first use or explicitly with UpdateDirectory.
func New(config Config) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	netClient, err := acmenet.New(acmenet.Config{
		CABundlePath: config.CACert,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME net client: %s", err)
	}

	// NOTE: it's safe to throw away the returned err here because we check
	// that url.Parse will succeed in config.normalize() above.
	dirURL, _ := url.Parse(config.DirectoryURL)

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	clock := config.Clock
	if clock == nil {
		clock = &timetools.RealTime{}
	}

	client := &Client{
		DirectoryURL: dirURL,
		PostAsGet:    config.PostAsGet,
		contactEmail: config.ContactEmail,
		net:          netClient,
		clock:        clock,
		log:          logger,
		retry:        config.Retry.withDefaults(),
		poll:         config.Poll.withDefaults(),
		solvers:      map[string]Solver{},
	}

	if config.DNS != nil {
		client.RegisterSolver(&dns01Solver{
			client:   client,
			provider: config.DNS,
			precheck: config.Precheck,
		})
	}

	return client, nil
}

// RegisterSolver makes the given solver available for challenge dispatch,
// replacing any previously registered solver for the same challenge type.
func (c *Client) RegisterSolver(s Solver) {
	c.solvers[s.Type()] = s
}

// RestoreAccount makes a previously registered account identity available
// for authenticated operations without re-registering. It is a pure
// assignment; no network calls are made.
func (c *Client) RestoreAccount(accountURL string, signer crypto.Signer) {
	c.Account = &acme.Account{
		ID:     accountURL,
		Signer: signer,
	}
	c.log.Debug().Str("account", accountURL).Msg("restored account")
}

// AccountID returns the ID of the client's account, or an empty string if no
// account has been created or restored yet.
func (c *Client) AccountID() string {
	if c.Account == nil {
		return ""
	}
	return c.Account.ID
}
