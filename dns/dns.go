// Package dns defines the DNS provider contract used to satisfy dns-01
// challenges, and ships two implementations: Amazon Route53 for real zones
// and an in-process challtestsrv-backed server for development and tests.
package dns

import "context"

// Provider publishes and removes TXT records for dns-01 challenges. Both
// operations are idempotent: setting the same record twice or removing an
// absent record is not an error.
//
// The value passed to SetRecord is the challenge's key authorization.
// Implementations are responsible for the wire representation a validating
// CA will look up; for a real zone that is the base64url encoded SHA-256
// digest of the key authorization (RFC 8555 §8.4).
type Provider interface {
	// SetRecord publishes the dns-01 response for domain under recordName
	// (e.g. "_acme-challenge.example.com").
	SetRecord(ctx context.Context, domain string, recordName string, value string) error
	// RemoveRecord removes a record previously published with SetRecord.
	RemoveRecord(ctx context.Context, domain string, recordName string) error
}
