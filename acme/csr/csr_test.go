package csr

import (
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhoward/acmeissue/acme/keys"
)

func TestNew(t *testing.T) {
	names := []string{"example.com", "www.example.com"}

	request, err := New(names, nil)
	require.NoError(t, err)

	parsed, err := x509.ParseCertificateRequest(request.DER)
	require.NoError(t, err)
	require.NoError(t, parsed.CheckSignature())

	assert.Equal(t, "example.com", parsed.Subject.CommonName)
	assert.Equal(t, names, parsed.DNSNames)

	block, _ := pem.Decode([]byte(request.PEM))
	require.NotNil(t, block)
	assert.Equal(t, "CERTIFICATE REQUEST", block.Type)
	assert.Equal(t, request.DER, block.Bytes)

	require.NotNil(t, request.PrivateKey)
	assert.NotEmpty(t, request.PrivateKeyPEM)
}

func TestNewWithSigner(t *testing.T) {
	signer, err := keys.NewSigner("rsa")
	require.NoError(t, err)

	request, err := New([]string{"example.com"}, signer)
	require.NoError(t, err)
	assert.Same(t, signer, request.PrivateKey)

	parsed, err := x509.ParseCertificateRequest(request.DER)
	require.NoError(t, err)
	assert.Equal(t, signer.Public(), parsed.PublicKey)
}

func TestNewNoNames(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}
