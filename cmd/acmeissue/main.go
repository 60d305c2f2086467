// acmeissue is a single-shot ACME client: it registers (or restores) an
// account, orders a certificate for the given domains, proves control with
// dns-01 challenges and writes the issued certificate chain and key to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lhoward/acmeissue/acme"
	acmeclient "github.com/lhoward/acmeissue/acme/client"
	"github.com/lhoward/acmeissue/acme/csr"
	"github.com/lhoward/acmeissue/cmd"
	"github.com/lhoward/acmeissue/dns"
)

const (
	directoryUsage = "Directory URL for the ACME server"
	caCertUsage    = "CA certificate(s) PEM file path for verifying the ACME server's HTTPS"
	emailUsage     = "Contact email address for a newly registered account"
	accountUsage   = "Path for loading/saving the account; registered on first use"
	dnsModeUsage   = "DNS provider: \"route53\" or \"challtestsrv\""
	dnsAddrUsage   = "Listen address for the challtestsrv DNS server"
	zoneUsage      = "Route53 hosted zone ID"
	regionUsage    = "Route53 AWS region"
	outUsage       = "Output path prefix; writes <out>.crt and <out>.key"
	postAsGetUsage = "Use POST-as-GET requests for resource fetches"
	cleanupUsage   = "Remove challenge TXT records after issuance"
	timeoutUsage   = "Overall deadline for the issuance flow"
	verboseUsage   = "Enable debug logging"
)

func main() {
	directory := flag.String("directory", "https://acme-staging-v02.api.letsencrypt.org/directory", directoryUsage)
	caCert := flag.String("cacert", "", caCertUsage)
	email := flag.String("email", "", emailUsage)
	accountPath := flag.String("account", "acmeissue.account.json", accountUsage)
	dnsMode := flag.String("dns", "route53", dnsModeUsage)
	dnsAddr := flag.String("dns-addr", ":8053", dnsAddrUsage)
	zoneID := flag.String("zone", "", zoneUsage)
	region := flag.String("region", "us-east-1", regionUsage)
	out := flag.String("out", "acmeissue", outUsage)
	postAsGet := flag.Bool("post-as-get", false, postAsGetUsage)
	cleanup := flag.Bool("cleanup", false, cleanupUsage)
	timeout := flag.Duration("timeout", 10*time.Minute, timeoutUsage)
	verbose := flag.Bool("verbose", false, verboseUsage)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.InfoLevel)
	}

	domains := flag.Args()
	if len(domains) == 0 {
		logger.Fatal().Msg("no domains specified; usage: acmeissue [flags] domain [domain...]")
	}

	provider, shutdown, err := newProvider(*dnsMode, *dnsAddr, *zoneID, *region)
	cmd.FailOnError(err, "unable to create DNS provider")
	if shutdown != nil {
		defer shutdown()
		go cmd.CatchSignals(shutdown)
	}

	client, err := acmeclient.New(acmeclient.Config{
		DirectoryURL: *directory,
		CACert:       *caCert,
		ContactEmail: *email,
		PostAsGet:    *postAsGet,
		DNS:          provider,
		Logger:       &logger,
	})
	cmd.FailOnError(err, "unable to create ACME client")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	acct, err := loadOrRegisterAccount(ctx, client, *accountPath, *email)
	cmd.FailOnError(err, "unable to set up account")
	logger.Info().Str("account", acct.ID).Msg("using account")

	order, err := client.CreateOrder(ctx, domains)
	cmd.FailOnError(err, "unable to create order")

	completed, err := client.CompleteDNS01Challenges(ctx, order)
	cmd.FailOnError(err, "unable to complete challenges")
	logger.Info().Int("authorizations", len(completed)).Msg("challenge responses accepted")

	request, err := csr.New(domains, nil)
	cmd.FailOnError(err, "unable to create CSR")

	chainPEM, err := client.Finalize(ctx, order, request.DER)
	cmd.FailOnError(err, "unable to finalize order")

	if *cleanup {
		for _, domain := range domains {
			recordName := fmt.Sprintf("%s.%s", acme.DNS_CHALLENGE_PREFIX, domain)
			if err := provider.RemoveRecord(ctx, domain, recordName); err != nil {
				logger.Warn().Err(err).Str("record", recordName).Msg("unable to remove record")
			}
		}
	}

	certPath := *out + ".crt"
	keyPath := *out + ".key"
	cmd.FailOnError(os.WriteFile(certPath, []byte(chainPEM), 0644), "unable to write certificate")
	cmd.FailOnError(os.WriteFile(keyPath, []byte(request.PrivateKeyPEM), 0600), "unable to write key")

	logger.Info().
		Str("certificate", certPath).
		Str("key", keyPath).
		Str("domains", strings.Join(domains, ",")).
		Msg("issued certificate")
}

func newProvider(mode, dnsAddr, zoneID, region string) (dns.Provider, func(), error) {
	switch mode {
	case "route53":
		if zoneID == "" {
			return nil, nil, fmt.Errorf("route53 provider requires -zone")
		}
		return &dns.Route53{
			Region:       region,
			HostedZoneID: zoneID,
			WaitForSync:  true,
		}, nil, nil
	case "challtestsrv":
		srv, err := dns.NewChallSrv(dnsAddr)
		if err != nil {
			return nil, nil, err
		}
		return srv, srv.Shutdown, nil
	}
	return nil, nil, fmt.Errorf("unknown DNS provider %q", mode)
}

// loadOrRegisterAccount restores a previously saved account when the file
// exists, and registers then saves a fresh one otherwise.
func loadOrRegisterAccount(ctx context.Context, client *acmeclient.Client, path, email string) (*acme.Account, error) {
	if _, err := os.Stat(path); err == nil {
		acct, err := acme.RestoreAccount(path)
		if err != nil {
			return nil, err
		}
		client.RestoreAccount(acct.ID, acct.Signer)
		return acct, nil
	}

	acct, err := client.CreateAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := acme.SaveAccount(path, acct); err != nil {
		return nil, err
	}
	return acct, nil
}
