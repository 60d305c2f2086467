package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// directoryBody returns a complete directory response with endpoints rooted
// at baseURL. Callers delete keys to produce malformed variants.
func directoryBody(baseURL string) map[string]interface{} {
	return map[string]interface{}{
		"newNonce":   baseURL + "/new-nonce",
		"newAccount": baseURL + "/new-account",
		"newOrder":   baseURL + "/new-order",
		"revokeCert": baseURL + "/revoke-cert",
		"keyChange":  baseURL + "/key-change",
		"meta": map[string]interface{}{
			"termsOfService": baseURL + "/terms",
			"website":        "https://example.com",
		},
	}
}

func serveDirectory(t *testing.T, requests *int32, mutate func(map[string]interface{})) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		body := directoryBody(srv.URL)
		if mutate != nil {
			mutate(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDirectoryResolution(t *testing.T) {
	var requests int32
	srv := serveDirectory(t, &requests, nil)
	c := newTestClient(t, srv.URL, Config{})

	dir, err := c.Directory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/new-nonce", dir.NewNonce)
	assert.Equal(t, srv.URL+"/new-account", dir.NewAccount)
	assert.Equal(t, srv.URL+"/new-order", dir.NewOrder)
	assert.Equal(t, srv.URL+"/revoke-cert", dir.RevokeCert)
	assert.Equal(t, srv.URL+"/key-change", dir.KeyChange)
	require.NotNil(t, dir.Meta)
	assert.Equal(t, srv.URL+"/terms", dir.Meta.TermsOfService)

	// A second call reuses the resolution; no re-fetch happens.
	again, err := c.Directory(context.Background())
	require.NoError(t, err)
	assert.Same(t, dir, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	// An explicit update re-fetches.
	require.NoError(t, c.UpdateDirectory(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestDirectoryMissingEndpoints(t *testing.T) {
	for _, missing := range []string{
		"newNonce", "newAccount", "newOrder", "revokeCert", "keyChange", "meta",
	} {
		t.Run(missing, func(t *testing.T) {
			var requests int32
			srv := serveDirectory(t, &requests, func(body map[string]interface{}) {
				delete(body, missing)
			})
			c := newTestClient(t, srv.URL, Config{})

			err := c.UpdateDirectory(context.Background())
			var incomplete *DirectoryIncompleteError
			require.ErrorAs(t, err, &incomplete)
			assert.Equal(t, srv.URL, incomplete.URL)
			assert.Equal(t, []string{missing}, incomplete.Missing)

			// A structurally incomplete directory is fatal, not retried.
			assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
		})
	}
}

func TestDirectoryServerError(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	clock := newRecordingClock()
	c := newTestClient(t, srv.URL, Config{
		Clock: clock,
		Retry: RetryConfig{MaxRetries: 2},
	})

	err := c.UpdateDirectory(context.Background())

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Contains(t, se.Error(), "down for maintenance")
}

func TestDirectoryInvalidJSON(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Config{Retry: RetryConfig{MaxRetries: 2}})
	err := c.UpdateDirectory(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")

	// A 200 with a malformed body propagates on the first attempt; only the
	// round trip itself is retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	var exhausted *RetryExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}
