package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lhoward/acmeissue/acme"
	acmenet "github.com/lhoward/acmeissue/net"
)

// maxBodyExcerpt bounds how much of a response body an error message carries.
const maxBodyExcerpt = 256

// StatusError describes an HTTP response from the ACME server with an
// unexpected status code. It carries the status and body so a caller can
// distinguish a CA-side rejection from a local defect, and so the retry
// policy can classify the failure.
type StatusError struct {
	// The operation that produced the response ("newAccount", "finalize", ...).
	Op string
	// The URL the request was sent to.
	URL string
	// The HTTP status code of the response.
	StatusCode int
	// The raw response body.
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %q returned status %d: %s",
		e.Op, e.URL, e.StatusCode, bodyExcerpt(e.Body))
}

func bodyExcerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyExcerpt {
		s = s[:maxBodyExcerpt] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}

// statusError builds a StatusError from a NetResponse.
func statusError(op string, url string, resp *acmenet.NetResponse) *StatusError {
	return &StatusError{
		Op:         op,
		URL:        url,
		StatusCode: resp.Response.StatusCode,
		Body:       resp.RespBody,
	}
}

// DirectoryIncompleteError indicates a directory response was missing one or
// more required endpoints or the meta block.
type DirectoryIncompleteError struct {
	// The directory URL that was fetched.
	URL string
	// The directory keys (or "meta") that were absent.
	Missing []string
}

func (e *DirectoryIncompleteError) Error() string {
	return fmt.Sprintf("directory: %q response is missing required fields: %s",
		e.URL, strings.Join(e.Missing, ", "))
}

// NonceUnavailableError indicates a newNonce response carried no Replay-Nonce
// header, regardless of its HTTP status.
type NonceUnavailableError struct {
	URL        string
	StatusCode int
}

func (e *NonceUnavailableError) Error() string {
	return fmt.Sprintf("nonce: %q returned no %q header (status %d)",
		e.URL, acme.REPLAY_NONCE_HEADER, e.StatusCode)
}

// ErrMissingAccountURL indicates a successful newAccount response carried no
// Location header. This is not retried: a malformed body on a success
// response is not a transient condition.
var ErrMissingAccountURL = errors.New(
	"newAccount: server returned a success response with no Location header")

// AccountCreationError indicates the server rejected a newAccount request.
type AccountCreationError struct {
	Response *StatusError
}

func (e *AccountCreationError) Error() string {
	return "account creation failed: " + e.Response.Error()
}

func (e *AccountCreationError) Unwrap() error { return e.Response }

// ErrMissingOrderURL indicates a successful newOrder response carried no
// Location header. Without the order URL there is nothing to poll, and a
// malformed success response is not a transient condition, so this is not
// retried.
var ErrMissingOrderURL = errors.New(
	"newOrder: server returned a success response with no Location header")

// OrderCreationError indicates the server rejected a newOrder request.
type OrderCreationError struct {
	Response *StatusError
}

func (e *OrderCreationError) Error() string {
	return "order creation failed: " + e.Response.Error()
}

func (e *OrderCreationError) Unwrap() error { return e.Response }

// NoDNS01ChallengeError indicates an authorization offered no challenge this
// client has a solver for.
type NoDNS01ChallengeError struct {
	// The identifier of the authorization that could not be solved.
	Identifier acme.Identifier
	// The challenge types the server offered.
	Offered []string
}

func (e *NoDNS01ChallengeError) Error() string {
	return fmt.Sprintf(
		"authorization for %q offers no solvable challenge (offered: %s)",
		e.Identifier.Value, strings.Join(e.Offered, ", "))
}

// ChallengeNotificationError indicates the server rejected the POST telling
// it a challenge response is ready.
type ChallengeNotificationError struct {
	Response *StatusError
}

func (e *ChallengeNotificationError) Error() string {
	return "challenge notification failed: " + e.Response.Error()
}

func (e *ChallengeNotificationError) Unwrap() error { return e.Response }

// FinalizationError indicates the server rejected a finalize request.
type FinalizationError struct {
	Response *StatusError
}

func (e *FinalizationError) Error() string {
	return "finalization failed: " + e.Response.Error()
}

func (e *FinalizationError) Unwrap() error { return e.Response }

// OrderDidNotFinalizeError indicates an order did not reach the "valid"
// status within the polling budget, or reached "invalid".
type OrderDidNotFinalizeError struct {
	OrderURL   string
	LastStatus string
	Attempts   int
}

func (e *OrderDidNotFinalizeError) Error() string {
	return fmt.Sprintf(
		"order %q did not finalize: status %q after %d polls",
		e.OrderURL, e.LastStatus, e.Attempts)
}

// ErrNoCertificateURL indicates a valid order carried no certificate URL.
var ErrNoCertificateURL = errors.New(
	"finalize: order is valid but has no certificate URL")

// CertificateDownloadError indicates the certificate URL of a valid order
// could not be fetched.
type CertificateDownloadError struct {
	Response *StatusError
}

func (e *CertificateDownloadError) Error() string {
	return "certificate download failed: " + e.Response.Error()
}

func (e *CertificateDownloadError) Unwrap() error { return e.Response }

// RetryExhaustedError wraps the last failure observed after the retry budget
// for an operation was spent.
type RetryExhaustedError struct {
	// The label of the retried operation.
	Op string
	// Total attempts made (maxRetries + 1).
	Attempts int
	// The last failure observed.
	Err error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %s",
		e.Op, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// retryable classifies a failure. Network-level failures (no HTTP response)
// are always retryable. Responses are retryable on 429, any 5xx, and on 400
// when the body names a nonce problem: the CA signals stale-nonce rejection
// via 400 and re-running the operation draws a fresh nonce. Every other
// response status is fatal, as is a structurally incomplete directory, which
// won't grow missing endpoints by being fetched again.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var de *DirectoryIncompleteError
	if errors.As(err, &de) {
		return false
	}

	var se *StatusError
	if !errors.As(err, &se) {
		// No response to consult: a network-level failure.
		return true
	}

	switch {
	case se.StatusCode == http.StatusTooManyRequests:
		return true
	case se.StatusCode >= http.StatusInternalServerError:
		return true
	case se.StatusCode == http.StatusBadRequest:
		return strings.Contains(strings.ToLower(string(se.Body)), "nonce")
	}
	return false
}
