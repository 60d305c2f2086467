package client

import (
	"context"
	"fmt"

	"github.com/lhoward/acmeissue/acme"
	"github.com/lhoward/acmeissue/acme/keys"
	"github.com/lhoward/acmeissue/dns"
)

// dns01Solver completes dns-01 challenges through a dns.Provider.
type dns01Solver struct {
	client   *Client
	provider dns.Provider
	precheck *dns.Precheck
}

func (s *dns01Solver) Type() string {
	return acme.CHALLENGE_DNS01
}

// Solve computes the key authorization binding the challenge token to the
// account key, publishes it under _acme-challenge.<identifier>, and notifies
// the server. The record is not removed afterwards; cleanup belongs to the
// caller once the order has finalized.
func (s *dns01Solver) Solve(ctx context.Context, authz *acme.Authorization, chall *acme.Challenge) error {
	if chall.Token == "" {
		return fmt.Errorf("dns-01: challenge for %q has no token", authz.Identifier.Value)
	}

	keyAuth := keys.KeyAuth(s.client.Account.Signer, chall.Token)
	recordName := fmt.Sprintf("%s.%s", acme.DNS_CHALLENGE_PREFIX, authz.Identifier.Value)

	s.client.log.Info().
		Str("identifier", authz.Identifier.Value).
		Str("record", recordName).
		Msg("publishing dns-01 record")

	if err := s.provider.SetRecord(ctx, authz.Identifier.Value, recordName, keyAuth); err != nil {
		return fmt.Errorf("dns-01: publishing record for %q: %s",
			authz.Identifier.Value, err)
	}

	if s.precheck != nil {
		if err := s.precheck.Verify(ctx, recordName, keyAuth); err != nil {
			return fmt.Errorf("dns-01: record for %q did not propagate: %s",
				authz.Identifier.Value, err)
		}
	}

	if err := s.client.notifyChallenge(ctx, chall); err != nil {
		return err
	}

	// Observe the server's view once. Validation runs asynchronously; the
	// outcome is picked up by the finalize poll.
	updated, err := s.client.FetchChallenge(ctx, chall.URL)
	if err != nil {
		return err
	}
	s.client.log.Info().
		Str("challenge", chall.URL).
		Str("status", updated.Status).
		Msg("challenge response accepted")
	return nil
}
