package client

import (
	"context"

	"github.com/lhoward/acmeissue/acme"
)

// Nonce satisfies the JWS "NonceSource" interface. Every call issues a HEAD
// request to the server's newNonce endpoint and returns the Replay-Nonce
// header value. Nonces are never cached or pooled: each authenticated request
// draws its own fresh token immediately before signing, trading one extra
// round trip for immunity to cross-request nonce races.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Client) Nonce() (string, error) {
	return c.fetchNonce(context.Background())
}

// nonceSource binds the client's nonce fetch to a request context so the
// HEAD request honors the caller's deadline. The jose.NonceSource interface
// has no context parameter of its own.
type nonceSource struct {
	c   *Client
	ctx context.Context
}

func (ns nonceSource) Nonce() (string, error) {
	return ns.c.fetchNonce(ns.ctx)
}

func (c *Client) fetchNonce(ctx context.Context) (string, error) {
	dir, err := c.Directory(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.net.Head(ctx, dir.NewNonce)
	if err != nil {
		return "", err
	}

	// Header lookup is case-insensitive. The header must be present on any
	// newNonce response; the status code is irrelevant.
	nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return "", &NonceUnavailableError{
			URL:        dir.NewNonce,
			StatusCode: resp.StatusCode,
		}
	}

	c.log.Debug().Str("nonce", nonce).Msg("fetched fresh nonce")
	return nonce, nil
}
