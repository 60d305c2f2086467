package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lhoward/acmeissue/acme"
	acmenet "github.com/lhoward/acmeissue/net"
)

// Directory returns the resolved directory, fetching it first if no
// resolution has happened yet. A component needing the directory before it
// has been resolved triggers exactly one resolution; the result is reused for
// the process lifetime until an explicit UpdateDirectory.
func (c *Client) Directory(ctx context.Context) (*acme.Directory, error) {
	if c.directory == nil {
		if err := c.UpdateDirectory(ctx); err != nil {
			return nil, err
		}
	}
	return c.directory, nil
}

// UpdateDirectory explicitly (re-)fetches and validates the directory
// resource the Client references for the endpoints of every other operation.
//
// Only the request/response round trip is wrapped by the retry policy. A
// success response with a malformed or incomplete body is not a transient
// condition and propagates on the first attempt.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
func (c *Client) UpdateDirectory(ctx context.Context) error {
	url := c.DirectoryURL.String()

	resp, err := withRetry(ctx, c, "directory", func() (*acmenet.NetResponse, error) {
		resp, err := c.net.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		if resp.Response.StatusCode != http.StatusOK {
			return nil, statusError("directory", url, resp)
		}
		return resp, nil
	})
	if err != nil {
		return err
	}

	var directory acme.Directory
	if err := json.Unmarshal(resp.RespBody, &directory); err != nil {
		return fmt.Errorf("directory: %q returned invalid JSON: %s", url, err)
	}
	if err := validateDirectory(url, &directory); err != nil {
		return err
	}

	c.directory = &directory
	c.log.Debug().Str("url", url).Msg("updated directory")
	return nil
}

// validateDirectory rejects a directory response that is missing any of the
// five required endpoints or the meta block.
func validateDirectory(url string, d *acme.Directory) error {
	var missing []string
	for _, name := range acme.RequiredEndpoints() {
		if d.Endpoint(name) == "" {
			missing = append(missing, name)
		}
	}
	if d.Meta == nil {
		missing = append(missing, "meta")
	}

	if len(missing) > 0 {
		return &DirectoryIncompleteError{URL: url, Missing: missing}
	}
	return nil
}
