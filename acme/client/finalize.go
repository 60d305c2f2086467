package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lhoward/acmeissue/acme"
	acmenet "github.com/lhoward/acmeissue/net"
)

// Finalize submits a DER encoded CSR against the order's finalize URL, polls
// the order at a fixed interval until it reaches a terminal status, and
// downloads the issued certificate chain. The returned string is the PEM
// certificate chain, leaf first.
//
// The poll deliberately uses a short fixed interval rather than the retry
// policy's exponential backoff: validation latency is typically a few
// seconds at most, and a fixed interval minimizes added latency. When the
// server supplies a Retry-After hint on a poll response it takes precedence
// over the configured interval.
//
// An interrupted Finalize may safely be re-invoked against the same order:
// no client-side state is mutated beyond what the server already reports.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) Finalize(ctx context.Context, order *acme.Order, csrDER []byte) (string, error) {
	if c.AccountID() == "" {
		return "", fmt.Errorf("finalize: account is nil or has not been created")
	}
	if order == nil || order.ID == "" {
		return "", fmt.Errorf("finalize: order must exist and have an ID")
	}
	if order.Finalize == "" {
		return "", fmt.Errorf("finalize: order %q has no finalize URL", order.ID)
	}

	// The CSR travels base64url encoded, without a PEM envelope.
	reqBody, err := json.Marshal(struct {
		CSR string `json:"csr"`
	}{
		CSR: base64.RawURLEncoding.EncodeToString(csrDER),
	})
	if err != nil {
		return "", err
	}

	resp, err := withRetry(ctx, c, "finalize", func() (*acmenet.NetResponse, error) {
		signResult, err := c.Sign(ctx, order.Finalize, reqBody, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.net.Post(ctx, order.Finalize, signResult.SerializedJWS)
		if err != nil {
			return nil, err
		}
		if resp.Response.StatusCode != http.StatusOK {
			return nil, &FinalizationError{
				Response: statusError("finalize", order.Finalize, resp),
			}
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}

	// A malformed success response is not a transient condition, so the body
	// is decoded outside the retry loop.
	var updated acme.Order
	if err := json.Unmarshal(resp.RespBody, &updated); err != nil {
		return "", fmt.Errorf("finalize: server returned invalid JSON: %s", err)
	}
	updated.ID = order.ID

	current, err := c.pollOrder(ctx, &updated)
	if err != nil {
		return "", err
	}

	if current.Certificate == "" {
		return "", ErrNoCertificateURL
	}

	return c.downloadCertificate(ctx, current.Certificate)
}

// pollOrder re-fetches the order until it becomes valid, becomes invalid, or
// the attempt budget runs out.
func (c *Client) pollOrder(ctx context.Context, order *acme.Order) (*acme.Order, error) {
	retryAfter := time.Duration(0)

	for attempt := 0; attempt < c.poll.MaxAttempts; attempt++ {
		switch order.Status {
		case acme.StatusValid:
			return order, nil
		case acme.StatusInvalid:
			return nil, &OrderDidNotFinalizeError{
				OrderURL:   order.ID,
				LastStatus: order.Status,
				Attempts:   attempt,
			}
		}

		delay := c.poll.Interval
		if retryAfter > 0 {
			delay = retryAfter
		}

		c.log.Debug().
			Str("order", order.ID).
			Str("status", order.Status).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("waiting for order to finalize")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(delay):
		}

		resp, err := c.getResource(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		retryAfter = retryAfterHint(resp)

		var updated acme.Order
		if err := json.Unmarshal(resp.RespBody, &updated); err != nil {
			return nil, fmt.Errorf("finalize: order poll returned invalid JSON: %s", err)
		}
		updated.ID = order.ID
		order = &updated
	}

	if order.Status == acme.StatusValid {
		return order, nil
	}
	return nil, &OrderDidNotFinalizeError{
		OrderURL:   order.ID,
		LastStatus: order.Status,
		Attempts:   c.poll.MaxAttempts,
	}
}

// retryAfterHint parses the seconds form of a Retry-After response header.
// Zero means no usable hint.
func retryAfterHint(resp *acmenet.NetResponse) time.Duration {
	header := resp.Response.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// downloadCertificate fetches the PEM certificate chain of a valid order.
func (c *Client) downloadCertificate(ctx context.Context, url string) (string, error) {
	resp, err := withRetry(ctx, c, "downloadCertificate", func() (*acmenet.NetResponse, error) {
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
			return nil, &CertificateDownloadError{
				Response: statusError("downloadCertificate", url, resp),
			}
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}

	c.log.Info().Str("url", url).Int("bytes", len(resp.RespBody)).Msg("downloaded certificate chain")
	return string(resp.RespBody), nil
}
