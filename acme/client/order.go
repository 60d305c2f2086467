package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lhoward/acmeissue/acme"
	acmenet "github.com/lhoward/acmeissue/net"
)

// CreateOrder asks the server to create a new order for the given domain
// names, one "dns" identifier per name. The returned Order carries the
// server's view of the resource (status, authorization URLs, finalize URL)
// and its ID is the Location header of the creation response.
//
// For more information on Order creation see "Applying for Certificate
// Issuance" in RFC 8555:
// https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) CreateOrder(ctx context.Context, domains []string) (*acme.Order, error) {
	if c.AccountID() == "" {
		return nil, fmt.Errorf("createOrder: account is nil or has not been created")
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("createOrder: no domains specified")
	}

	identifiers := make([]acme.Identifier, 0, len(domains))
	for _, d := range domains {
		identifiers = append(identifiers, acme.Identifier{Type: "dns", Value: d})
	}

	req := struct {
		Identifiers []acme.Identifier `json:"identifiers"`
	}{
		Identifiers: identifiers,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := withRetry(ctx, c, "newOrder", func() (*acmenet.NetResponse, error) {
		dir, err := c.Directory(ctx)
		if err != nil {
			return nil, err
		}

		// Sign the new order request with the account key, referenced by ID
		signResult, err := c.Sign(ctx, dir.NewOrder, reqBody, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.net.Post(ctx, dir.NewOrder, signResult.SerializedJWS)
		if err != nil {
			return nil, err
		}

		if resp.Response.StatusCode != http.StatusCreated {
			return nil, &OrderCreationError{
				Response: statusError("newOrder", dir.NewOrder, resp),
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	// A malformed success response is not a transient condition, so the body
	// is decoded outside the retry loop.
	var order acme.Order
	if err := json.Unmarshal(resp.RespBody, &order); err != nil {
		return nil, fmt.Errorf("createOrder: server returned invalid JSON: %s", err)
	}

	// Store the Location header as the Order's ID; polling needs it.
	order.ID = resp.Response.Header.Get("Location")
	if order.ID == "" {
		return nil, ErrMissingOrderURL
	}

	c.log.Info().
		Str("order", order.ID).
		Str("status", order.Status).
		Msg("created new order")
	c.Account.Orders = append(c.Account.Orders, order.ID)
	return &order, nil
}

// getResource fetches an ACME resource URL, with a plain GET or a signed
// empty-payload POST-as-GET depending on the client's configuration.
//
// See https://tools.ietf.org/html/rfc8555#section-6.3
func (c *Client) getResource(ctx context.Context, url string) (*acmenet.NetResponse, error) {
	return withRetry(ctx, c, "getResource", func() (*acmenet.NetResponse, error) {
		var resp *acmenet.NetResponse
		var err error
		if c.PostAsGet {
			var signResult *SignResult
			signResult, err = c.Sign(ctx, url, []byte{}, nil)
			if err != nil {
				return nil, err
			}
			resp, err = c.net.Post(ctx, url, signResult.SerializedJWS)
		} else {
			resp, err = c.net.Get(ctx, url)
		}
		if err != nil {
			return nil, err
		}
		if resp.Response.StatusCode != http.StatusOK {
			return nil, statusError("getResource", url, resp)
		}
		return resp, nil
	})
}

// FetchOrder fetches the order resource at the given URL. Calling FetchOrder
// is how an Order's status is synchronized with the server-side
// representation; the client never transitions an order locally.
func (c *Client) FetchOrder(ctx context.Context, url string) (*acme.Order, error) {
	resp, err := c.getResource(ctx, url)
	if err != nil {
		return nil, err
	}

	var order acme.Order
	if err := json.Unmarshal(resp.RespBody, &order); err != nil {
		return nil, fmt.Errorf("fetchOrder: %q returned invalid JSON: %s", url, err)
	}
	order.ID = url
	return &order, nil
}

// FetchAuthorization fetches the authorization resource at the given URL.
func (c *Client) FetchAuthorization(ctx context.Context, url string) (*acme.Authorization, error) {
	resp, err := c.getResource(ctx, url)
	if err != nil {
		return nil, err
	}

	var authz acme.Authorization
	if err := json.Unmarshal(resp.RespBody, &authz); err != nil {
		return nil, fmt.Errorf("fetchAuthorization: %q returned invalid JSON: %s", url, err)
	}
	authz.ID = url
	return &authz, nil
}

// FetchChallenge fetches the challenge resource at the given URL. A caller
// that wants to observe per-challenge validation progress re-fetches the
// challenge (or its parent authorization); the client never asserts
// a challenge status itself.
func (c *Client) FetchChallenge(ctx context.Context, url string) (*acme.Challenge, error) {
	resp, err := c.getResource(ctx, url)
	if err != nil {
		return nil, err
	}

	var chall acme.Challenge
	if err := json.Unmarshal(resp.RespBody, &chall); err != nil {
		return nil, fmt.Errorf("fetchChallenge: %q returned invalid JSON: %s", url, err)
	}
	return &chall, nil
}

// CompleteDNS01Challenges walks the order's authorizations sequentially, in
// the order returned by the CA, and completes one challenge for each pending
// authorization via the registered solvers. An authorization that is already
// valid is recorded and skipped without any DNS or notification work.
//
// The returned slice holds the URL of every authorization whose challenge
// response was accepted by the server (or that was already valid).
// Acceptance of the notification is not validation: the server validates
// asynchronously, and completion is observed by the finalize poll or by
// re-fetching the authorization.
//
// DNS record cleanup is deliberately left to the caller: a failed validation
// may need to be retried against the still-present record.
func (c *Client) CompleteDNS01Challenges(ctx context.Context, order *acme.Order) ([]string, error) {
	if c.AccountID() == "" {
		return nil, fmt.Errorf("completeChallenges: account is nil or has not been created")
	}

	completed := make([]string, 0, len(order.Authorizations))
	for _, authzURL := range order.Authorizations {
		authz, err := c.FetchAuthorization(ctx, authzURL)
		if err != nil {
			return nil, err
		}

		if authz.Status == acme.StatusValid {
			// Nothing to prove; a valid authorization needs no further action.
			c.log.Debug().
				Str("authz", authzURL).
				Str("identifier", authz.Identifier.Value).
				Msg("authorization already valid, skipping")
			completed = append(completed, authzURL)
			continue
		}

		if err := c.solveAuthorization(ctx, authz); err != nil {
			return nil, err
		}
		completed = append(completed, authzURL)
	}

	return completed, nil
}

// solveAuthorization dispatches the authorization's challenges over the
// registered solvers and runs the first match.
func (c *Client) solveAuthorization(ctx context.Context, authz *acme.Authorization) error {
	var offered []string
	for i := range authz.Challenges {
		chall := &authz.Challenges[i]
		offered = append(offered, chall.Type)
		if solver, ok := c.solvers[chall.Type]; ok {
			c.log.Info().
				Str("authz", authz.ID).
				Str("identifier", authz.Identifier.Value).
				Str("type", chall.Type).
				Msg("solving challenge")
			return solver.Solve(ctx, authz, chall)
		}
	}

	return &NoDNS01ChallengeError{
		Identifier: authz.Identifier,
		Offered:    offered,
	}
}

// notifyChallenge POSTs a signed empty JSON object to the challenge URL,
// telling the server the challenge response is in place and validation may
// begin.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5.1
func (c *Client) notifyChallenge(ctx context.Context, chall *acme.Challenge) error {
	_, err := withRetry(ctx, c, "notifyChallenge", func() (*acmenet.NetResponse, error) {
		signResult, err := c.Sign(ctx, chall.URL, []byte("{}"), nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.net.Post(ctx, chall.URL, signResult.SerializedJWS)
		if err != nil {
			return nil, err
		}
		if resp.Response.StatusCode != http.StatusOK {
			return nil, &ChallengeNotificationError{
				Response: statusError("notifyChallenge", chall.URL, resp),
			}
		}
		return resp, nil
	})
	return err
}
