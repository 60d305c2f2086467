// Package net provides common HTTP utilities for talking to an ACME server.
package net

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/globalsign/pemfile"

	"github.com/lhoward/acmeissue/acme"
)

const (
	version       = "0.0.1"
	userAgentBase = "lhoward.acmeissue"
	locale        = "en-us"
)

// Config holds the options for constructing an ACMENet.
type Config struct {
	// An optional file path to one or more PEM encoded CA certificates used
	// as trust roots for HTTPS requests to the ACME server. If empty the
	// system roots are used.
	CABundlePath string
}

// ACMENet is a thin wrapper over http.Client that sets the headers ACME
// servers expect and reads response bodies eagerly.
type ACMENet struct {
	httpClient *http.Client
}

// New constructs an ACMENet from the given Config.
func New(config Config) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if config.CABundlePath != "" {
		certs, err := pemfile.ReadCerts(config.CABundlePath)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle %q: %s", config.CABundlePath, err)
		}

		caBundle = x509.NewCertPool()
		for _, cert := range certs {
			caBundle.AddCert(cert)
		}
	}

	return &ACMENet{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: caBundle,
				},
			},
		},
	}, nil
}

// NetResponse holds the results from performing an HTTP request.
type NetResponse struct {
	// The HTTP Response object from making the request.
	Response *http.Response
	// The response body. The body on the Response has already been consumed
	// and can not be read again.
	RespBody []byte
}

// Do performs an HTTP request, returning a pointer to a NetResponse instance
// or an error. User-Agent and Accept-Language headers are automatically added
// to the request.
func (c *ACMENet) Do(req *http.Request) (*NetResponse, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", locale)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
	}, nil
}

// Head performs a HEAD request to the given URL. The response body is
// discarded; only the status and headers are of interest.
func (c *ACMENet) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	return resp.Response, nil
}

// PostRequest constructs a POST request to the given URL with the given JWS
// body and the application/jose+json content type.
func (c *ACMENet) PostRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", acme.JOSE_CONTENT_TYPE)
	return req, nil
}

// Post POSTs the given body to the given URL. This is a wrapper combining
// PostRequest and Do.
func (c *ACMENet) Post(ctx context.Context, url string, body []byte) (*NetResponse, error) {
	req, err := c.PostRequest(ctx, url, body)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Get GETs the given URL.
func (c *ACMENet) Get(ctx context.Context, url string) (*NetResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
