package dns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/mailgun/timetools"

	"github.com/lhoward/acmeissue/acme/keys"
)

const (
	recordTTL = 300

	// Amazon documents 30 minutes as the maximum time for a record change to
	// reach INSYNC.
	syncTimeout  = 30 * time.Minute
	syncInterval = 30 * time.Second
)

// Route53 is a Provider that manages TXT records in an Amazon Route53 hosted
// zone. Credentials fall back to the environment and shared-credentials
// chain when the static fields are empty.
type Route53 struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	HostedZoneID    string
	// If true, SetRecord and RemoveRecord block until Route53 reports the
	// change has propagated to all authoritative servers.
	WaitForSync bool
	// Clock used for sync-wait sleeps. Defaults to the real clock.
	Clock timetools.TimeProvider

	sess *session.Session
}

var _ Provider = (*Route53)(nil)

func (r *Route53) clock() timetools.TimeProvider {
	if r.Clock == nil {
		return &timetools.RealTime{}
	}
	return r.Clock
}

func (r *Route53) session() (*session.Session, error) {
	if r.sess != nil {
		return r.sess, nil
	}

	cfg := &aws.Config{
		Region: aws.String(r.Region),
		Credentials: credentials.NewChainCredentials([]credentials.Provider{
			&credentials.StaticProvider{
				Value: credentials.Value{
					AccessKeyID:     r.AccessKeyID,
					SecretAccessKey: r.SecretAccessKey,
				},
			},
			&credentials.EnvProvider{},
			&credentials.SharedCredentialsProvider{},
		}),
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	r.sess = sess
	return sess, nil
}

// SetRecord upserts the TXT record for a dns-01 challenge. The published
// value is the RFC 8555 §8.4 digest of the key authorization.
func (r *Route53) SetRecord(ctx context.Context, domain string, recordName string, value string) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	svc := route53.New(sess)

	txtValue := fmt.Sprintf("%q", keys.DNS01TXTValue(value))
	output, err := svc.ChangeResourceRecordSetsWithContext(ctx,
		changeInput(r.HostedZoneID, route53.ChangeActionUpsert, recordName, txtValue))
	if err != nil {
		return err
	}

	if r.WaitForSync {
		return r.waitForSync(ctx, svc, aws.StringValue(output.ChangeInfo.Id))
	}
	return nil
}

// RemoveRecord deletes the challenge TXT record. A record that is already
// gone is not an error.
func (r *Route53) RemoveRecord(ctx context.Context, domain string, recordName string) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	svc := route53.New(sess)

	// Route53 deletes require the record's current value.
	currentValue, err := r.readRecord(ctx, svc, recordName)
	if err != nil {
		return nil
	}

	output, err := svc.ChangeResourceRecordSetsWithContext(ctx,
		changeInput(r.HostedZoneID, route53.ChangeActionDelete, recordName, currentValue))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return err
	}

	if r.WaitForSync {
		return r.waitForSync(ctx, svc, aws.StringValue(output.ChangeInfo.Id))
	}
	return nil
}

func (r *Route53) readRecord(ctx context.Context, svc *route53.Route53, recordName string) (string, error) {
	input := &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(r.HostedZoneID),
		MaxItems:        aws.String("1"),
		StartRecordName: aws.String(fqdn(recordName)),
		StartRecordType: aws.String(route53.RRTypeTxt),
	}

	output, err := svc.ListResourceRecordSetsWithContext(ctx, input)
	if err != nil {
		return "", err
	}
	if len(output.ResourceRecordSets) < 1 {
		return "", fmt.Errorf("found 0 record sets for %q", recordName)
	}
	rrs := output.ResourceRecordSets[0]
	if len(rrs.ResourceRecords) < 1 {
		return "", fmt.Errorf("found 0 records for %q", recordName)
	}

	return aws.StringValue(rrs.ResourceRecords[0].Value), nil
}

// waitForSync polls GetChange until the change reaches INSYNC.
func (r *Route53) waitForSync(ctx context.Context, svc *route53.Route53, changeID string) error {
	clock := r.clock()
	deadline := clock.UtcNow().Add(syncTimeout)

	for {
		if clock.UtcNow().After(deadline) {
			return fmt.Errorf("timed out waiting for DNS change %q to sync", changeID)
		}

		out, err := svc.GetChangeWithContext(ctx, &route53.GetChangeInput{
			Id: aws.String(changeID),
		})
		if err != nil {
			return err
		}
		if aws.StringValue(out.ChangeInfo.Status) == route53.ChangeStatusInsync {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(syncInterval):
		}
	}
}

func changeInput(zoneID, action, recordName, value string) *route53.ChangeResourceRecordSetsInput {
	return &route53.ChangeResourceRecordSetsInput{
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{
				{
					Action: aws.String(action),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name: aws.String(fqdn(recordName)),
						Type: aws.String(route53.RRTypeTxt),
						ResourceRecords: []*route53.ResourceRecord{
							{
								Value: aws.String(value),
							},
						},
						TTL: aws.Int64(recordTTL),
					},
				},
			},
		},
		HostedZoneId: aws.String(zoneID),
	}
}

func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}
