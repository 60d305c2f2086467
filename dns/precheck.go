package dns

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/timetools"
	"github.com/miekg/dns"

	"github.com/lhoward/acmeissue/acme/keys"
)

// Precheck verifies that a published dns-01 TXT record is visible before the
// CA is told to validate. Notifying too early wastes a validation attempt
// while the zone change is still propagating.
type Precheck struct {
	// Resolver is the "host:port" of the DNS server to query, normally an
	// authoritative server for the zone.
	Resolver string
	// MaxAttempts bounds the number of queries. Defaults to 10.
	MaxAttempts int
	// Interval is the wait between queries. Defaults to 2s.
	Interval time.Duration
	// Clock used for the inter-query sleeps. Defaults to the real clock.
	Clock timetools.TimeProvider
}

func (p *Precheck) clock() timetools.TimeProvider {
	if p.Clock == nil {
		return &timetools.RealTime{}
	}
	return p.Clock
}

// Verify queries the resolver for recordName's TXT records until one matches
// the RFC 8555 §8.4 digest of the key authorization, or the attempt budget
// runs out.
func (p *Precheck) Verify(ctx context.Context, recordName string, keyAuth string) error {
	want := keys.DNS01TXTValue(keyAuth)

	maxAttempts := p.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 10
	}
	interval := p.Interval
	if interval == 0 {
		interval = 2 * time.Second
	}
	clock := p.clock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(interval):
			}
		}

		found, err := p.queryTXT(ctx, recordName)
		if err != nil {
			continue
		}
		for _, txt := range found {
			if txt == want {
				return nil
			}
		}
	}

	return fmt.Errorf("TXT record %q did not show the expected value at %q after %d attempts",
		recordName, p.Resolver, maxAttempts)
}

func (p *Precheck) queryTXT(ctx context.Context, recordName string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(recordName), dns.TypeTXT)

	client := &dns.Client{}
	in, _, err := client.ExchangeContext(ctx, m, p.Resolver)
	if err != nil {
		return nil, err
	}

	var values []string
	for _, rr := range in.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			values = append(values, txt.Txt...)
		}
	}
	return values, nil
}
