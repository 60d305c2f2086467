package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lhoward/acmeissue/acme"
	acmenet "github.com/lhoward/acmeissue/net"
)

// CreateAccount generates a fresh key pair and registers a new account with
// the ACME server, agreeing to the server's terms of service and using the
// given email (or the Config's ContactEmail when empty) as the contact
// address. On success the new account becomes the Client's account for all
// subsequent authenticated calls and is returned with its ID populated from
// the Location header of the server's response.
//
// The request/response round trip is wrapped by the retry policy; extraction
// of the Location header is not, since a success response with a malformed
// shape is not a transient condition.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3
func (c *Client) CreateAccount(ctx context.Context, contactEmail string) (*acme.Account, error) {
	if contactEmail == "" {
		contactEmail = c.contactEmail
	}

	acct, err := acme.NewAccount([]string{contactEmail}, nil)
	if err != nil {
		return nil, err
	}

	newAcctReq := struct {
		Contact   []string `json:"contact,omitempty"`
		ToSAgreed bool     `json:"termsOfServiceAgreed"`
	}{
		Contact:   acct.Contact,
		ToSAgreed: true,
	}

	reqBody, err := json.Marshal(&newAcctReq)
	if err != nil {
		return nil, err
	}

	resp, err := withRetry(ctx, c, "newAccount", func() (*acmenet.NetResponse, error) {
		dir, err := c.Directory(ctx)
		if err != nil {
			return nil, err
		}

		// No account URL exists yet, so the public key is embedded in the
		// protected header instead of a Key ID.
		signResult, err := c.Sign(ctx, dir.NewAccount, reqBody, &SigningOptions{
			EmbedKey: true,
			Signer:   acct.Signer,
		})
		if err != nil {
			return nil, err
		}

		resp, err := c.net.Post(ctx, dir.NewAccount, signResult.SerializedJWS)
		if err != nil {
			return nil, err
		}

		// 201 for a newly created account, 200 when the key is already
		// registered and the server returns the existing account.
		status := resp.Response.StatusCode
		if status != http.StatusCreated && status != http.StatusOK {
			return nil, &AccountCreationError{
				Response: statusError("newAccount", dir.NewAccount, resp),
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	locHeader := resp.Response.Header.Get("Location")
	if locHeader == "" {
		return nil, ErrMissingAccountURL
	}

	// Store the Location header as the Account's ID
	acct.ID = locHeader
	c.Account = acct
	c.log.Info().
		Str("account", acct.ID).
		Strs("contact", acct.Contact).
		Msg("created account")
	return acct, nil
}
