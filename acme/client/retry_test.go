package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mailgun/timetools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClock is a frozen clock whose After fires immediately and records
// every requested duration, so backoff timing can be asserted without real
// elapsed time.
type recordingClock struct {
	timetools.FreezedTime
	delays []time.Duration
}

func newRecordingClock() *recordingClock {
	return &recordingClock{
		FreezedTime: timetools.FreezedTime{
			CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	c.delays = append(c.delays, d)
	ch := make(chan time.Time, 1)
	ch <- c.CurrentTime
	return ch
}

func newTestClient(t *testing.T, directoryURL string, config Config) *Client {
	t.Helper()
	config.DirectoryURL = directoryURL
	if config.Clock == nil {
		config.Clock = newRecordingClock()
	}
	c, err := New(config)
	require.NoError(t, err)
	return c
}

func TestWithRetryEventualSuccess(t *testing.T) {
	clock := newRecordingClock()
	c := newTestClient(t, "http://example.com/dir", Config{Clock: clock})

	attempts := 0
	result, err := withRetry(context.Background(), c, "test", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &StatusError{Op: "test", StatusCode: http.StatusInternalServerError}
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, attempts)
	// 1s before the first re-attempt, doubled before the second.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, clock.delays)
}

func TestWithRetryBackoffCap(t *testing.T) {
	clock := newRecordingClock()
	c := newTestClient(t, "http://example.com/dir", Config{
		Clock: clock,
		Retry: RetryConfig{MaxRetries: 6},
	})

	attempts := 0
	lastErr := &StatusError{Op: "test", StatusCode: http.StatusServiceUnavailable}
	_, err := withRetry(context.Background(), c, "test", func() (string, error) {
		attempts++
		return "", lastErr
	})

	assert.Equal(t, 7, attempts)
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
	}, clock.delays)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "test", exhausted.Op)
	assert.Equal(t, 7, exhausted.Attempts)
	assert.Same(t, lastErr, exhausted.Err)
}

func TestWithRetryFatalStatus(t *testing.T) {
	clock := newRecordingClock()
	c := newTestClient(t, "http://example.com/dir", Config{Clock: clock})

	attempts := 0
	fatal := &StatusError{Op: "test", StatusCode: http.StatusUnauthorized}
	_, err := withRetry(context.Background(), c, "test", func() (string, error) {
		attempts++
		return "", fatal
	})

	// A 4xx rejection propagates unchanged without consuming a retry slot.
	assert.Equal(t, 1, attempts)
	assert.Empty(t, clock.delays)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Same(t, fatal, se)
}

func TestWithRetryBadNonceIsRetried(t *testing.T) {
	clock := newRecordingClock()
	c := newTestClient(t, "http://example.com/dir", Config{Clock: clock})

	attempts := 0
	result, err := withRetry(context.Background(), c, "test", func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", &StatusError{
				Op:         "test",
				StatusCode: http.StatusBadRequest,
				Body:       []byte(`{"type":"urn:ietf:params:acme:error:badNonce"}`),
			}
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryContextCanceled(t *testing.T) {
	c := newTestClient(t, "http://example.com/dir", Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := withRetry(ctx, c, "test", func() (string, error) {
		attempts++
		return "", &StatusError{Op: "test", StatusCode: http.StatusInternalServerError}
	})

	// The first attempt runs; the backoff suspension observes the cancelled
	// context before a second attempt is made.
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableClassification(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "network-level failure",
			err:       fmt.Errorf("connection refused"),
			retryable: true,
		},
		{
			name:      "429",
			err:       &StatusError{StatusCode: http.StatusTooManyRequests},
			retryable: true,
		},
		{
			name:      "503",
			err:       &StatusError{StatusCode: http.StatusServiceUnavailable},
			retryable: true,
		},
		{
			name: "400 naming a nonce problem",
			err: &StatusError{
				StatusCode: http.StatusBadRequest,
				Body:       []byte("urn:ietf:params:acme:error:badNonce"),
			},
			retryable: true,
		},
		{
			name: "400 without a nonce problem",
			err: &StatusError{
				StatusCode: http.StatusBadRequest,
				Body:       []byte("urn:ietf:params:acme:error:malformed"),
			},
			retryable: false,
		},
		{
			name:      "403",
			err:       &StatusError{StatusCode: http.StatusForbidden},
			retryable: false,
		},
		{
			name: "wrapped 500",
			err: &AccountCreationError{
				Response: &StatusError{StatusCode: http.StatusInternalServerError},
			},
			retryable: true,
		},
		{
			name:      "context cancellation",
			err:       context.Canceled,
			retryable: false,
		},
		{
			name:      "context deadline",
			err:       fmt.Errorf("op: %w", context.DeadlineExceeded),
			retryable: false,
		},
		{
			name:      "incomplete directory",
			err:       &DirectoryIncompleteError{URL: "http://example.com/dir", Missing: []string{"meta"}},
			retryable: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, retryable(tc.err))
		})
	}
}

func TestRetryConfigDefaults(t *testing.T) {
	merged := RetryConfig{MaxRetries: 2}.withDefaults()
	assert.Equal(t, 2, merged.MaxRetries)
	assert.Equal(t, DefaultRetryConfig.InitialDelay, merged.InitialDelay)
	assert.Equal(t, DefaultRetryConfig.MaxDelay, merged.MaxDelay)
	assert.Equal(t, DefaultRetryConfig.Factor, merged.Factor)

	var errTest = errors.New("boom")
	exhausted := &RetryExhaustedError{Op: "x", Attempts: 3, Err: errTest}
	assert.ErrorIs(t, exhausted, errTest)
}
