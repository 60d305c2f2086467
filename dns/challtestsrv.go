package dns

import (
	"context"

	"github.com/letsencrypt/challtestsrv"

	"github.com/lhoward/acmeissue/acme/keys"
)

// ChallSrv is a Provider backed by an in-process letsencrypt/challtestsrv
// DNS server. It is meant for development and tests against a local CA
// (e.g. Pebble): the challenge server answers TXT queries with the stored
// RFC 8555 §8.4 digest of the key authorization.
type ChallSrv struct {
	srv *challtestsrv.ChallSrv
}

var _ Provider = (*ChallSrv)(nil)

// NewChallSrv starts an in-process challenge test server answering DNS
// queries on the given address (e.g. ":8053"). Callers should Shutdown the
// returned provider when done.
func NewChallSrv(dnsAddr string) (*ChallSrv, error) {
	srv, err := challtestsrv.New(challtestsrv.Config{
		DNSOneAddrs: []string{dnsAddr},
	})
	if err != nil {
		return nil, err
	}
	go srv.Run()
	return &ChallSrv{srv: srv}, nil
}

// SetRecord stores the RFC 8555 §8.4 digest of the key authorization for the
// record. The challenge server serves stored content verbatim, so the digest
// must be computed here, same as for a real zone.
func (p *ChallSrv) SetRecord(ctx context.Context, domain string, recordName string, value string) error {
	p.srv.AddDNSOneChallenge(fqdn(recordName), keys.DNS01TXTValue(value))
	return nil
}

// RemoveRecord clears any stored challenge responses for the record.
func (p *ChallSrv) RemoveRecord(ctx context.Context, domain string, recordName string) error {
	p.srv.DeleteDNSOneChallenge(fqdn(recordName))
	return nil
}

// Shutdown stops the underlying challenge server.
func (p *ChallSrv) Shutdown() {
	p.srv.Shutdown()
}
