// Package csr produces PKCS#10 certificate signing requests for order
// finalization. The protocol engine only consumes the resulting DER bytes;
// it never constructs ASN.1 itself.
package csr

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"

	"github.com/lhoward/acmeissue/acme/keys"
)

// CSR holds a generated certificate signing request along with the private
// key it was signed with. The key SHOULD NOT be the account key pair (RFC
// 8555 §11.1).
type CSR struct {
	// The DER encoding of the request, as submitted in a finalize payload.
	DER []byte
	// The PEM encoding of the request.
	PEM string
	// The certificate private key.
	PrivateKey crypto.Signer
	// The PEM encoding of the certificate private key.
	PrivateKeyPEM string
}

// New builds a CSR for the given names. The first name becomes the Subject
// CommonName; all names are included as SAN entries. If signer is nil
// a fresh ECDSA P-256 key is generated and returned with the CSR.
func New(names []string, signer crypto.Signer) (*CSR, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no names specified")
	}

	if signer == nil {
		var err error
		signer, err = keys.NewSigner("ecdsa")
		if err != nil {
			return nil, err
		}
	}

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: names[0],
		},
		DNSNames: names,
	}

	csrBytes, err := x509.CreateCertificateRequest(rand.Reader, &template, signer)
	if err != nil {
		return nil, err
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE REQUEST", Bytes: csrBytes,
	})

	keyPEM, err := keys.SignerToPEM(signer)
	if err != nil {
		return nil, err
	}

	return &CSR{
		DER:           csrBytes,
		PEM:           string(pemBytes),
		PrivateKey:    signer,
		PrivateKeyPEM: keyPEM,
	}, nil
}
