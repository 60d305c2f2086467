package client

import (
	"context"
	"crypto"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/lhoward/acmeissue/acme/keys"
)

// SigningOptions allows specifying signature related options when calling the
// Client's Sign function.
type SigningOptions struct {
	// If true, embed the public key of the Signer as a JWK in the protected
	// header instead of using a Key ID. This is required for newAccount
	// requests, where no account URL exists yet. Setting EmbedKey is mutually
	// exclusive with a non-empty KeyID.
	EmbedKey bool
	// If not empty, a Key ID value for the JWS protected header identifying
	// the ACME account. If empty the Client's account ID is used. Providing
	// a KeyID is mutually exclusive with setting EmbedKey to true.
	KeyID string
	// If not nil, a private key to sign the JWS with. If nil the Client's
	// account key is used.
	Signer crypto.Signer
	// NonceSource provides the anti-replay token for the protected header. If
	// nil, a source drawing one fresh nonce from the server per signature is
	// used.
	NonceSource jose.NonceSource
}

// validate checks that the SigningOptions are sensible. It must only be
// called after defaults have been populated.
func (opts *SigningOptions) validate() error {
	if opts.KeyID != "" && opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: cannot specify both KeyID and EmbedKey")
	}
	if opts.KeyID == "" && !opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: you must specify a KeyID or EmbedKey")
	}
	if opts.NonceSource == nil {
		return fmt.Errorf("SigningOptions validate: you must specify a NonceSource")
	}
	if opts.Signer == nil {
		return fmt.Errorf("SigningOptions validate: you must specify a private key")
	}
	return nil
}

// SignResult holds the input and output from a Sign operation.
type SignResult struct {
	// The url argument given to Sign.
	InputURL string
	// The data argument given to Sign.
	InputData []byte
	// The JWS produced by signing the given data.
	JWS *jose.JSONWebSignature
	// The flattened JSON serialization of the JWS, suitable as the body of
	// an application/jose+json POST.
	SerializedJWS []byte
}

// Sign produces a SignResult by signing the provided data with a protected
// header carrying the signature algorithm, a fresh nonce and the target URL,
// plus either an embedded JWK or an account Key ID (never both). The same
// payload, header, key and nonce always yield the same envelope shape;
// replay protection comes from the nonce being single-use, not from the
// signature.
//
// If no Signer is specified in the SigningOptions the account's key is used.
// If the SigningOptions specify neither EmbedKey nor a KeyID, the account's
// ID is used as the JWS Key ID.
func (c *Client) Sign(ctx context.Context, url string, data []byte, opts *SigningOptions) (*SignResult, error) {
	if opts == nil {
		opts = &SigningOptions{}
	}

	if opts.Signer == nil && c.Account == nil {
		return nil, fmt.Errorf(
			"sign: account is nil and no Signer was specified in SigningOptions")
	}
	if opts.Signer == nil {
		opts.Signer = c.Account.Signer
	}

	if !opts.EmbedKey && opts.KeyID == "" {
		if c.AccountID() == "" {
			return nil, fmt.Errorf(
				"sign: EmbedKey was false, no KeyID was specified, and the " +
					"account has not been created")
		}
		opts.KeyID = c.Account.ID
	}

	if opts.NonceSource == nil {
		opts.NonceSource = nonceSource{c: c, ctx: ctx}
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	if opts.EmbedKey {
		return signEmbedded(url, data, *opts)
	}
	return signKeyID(url, data, *opts)
}

func signEmbedded(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	signingKey := jose.SigningKey{
		Key:       opts.Signer,
		Algorithm: keys.SignatureAlgForSigner(opts.Signer),
	}

	signer, err := jose.NewSigner(signingKey, &jose.SignerOptions{
		NonceSource: opts.NonceSource,
		EmbedJWK:    true,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	})
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data, opts)
}

func signKeyID(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	if opts.KeyID == "" {
		return nil, fmt.Errorf("sign: empty KeyID")
	}

	signerKey := keys.SigningKeyForSigner(opts.Signer, opts.KeyID)

	joseOpts := &jose.SignerOptions{
		NonceSource: opts.NonceSource,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	}

	signer, err := jose.NewSigner(signerKey, joseOpts)
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data, opts)
}

func sign(signer jose.Signer, url string, data []byte, opts SigningOptions) (*SignResult, error) {
	signed, err := signer.Sign(data)
	if err != nil {
		return nil, err
	}

	serialized := []byte(signed.FullSerialize())

	// Reparse the serialized body to get a fully populated JWS object
	parsedJWS, err := jose.ParseSigned(string(serialized),
		[]jose.SignatureAlgorithm{keys.SignatureAlgForSigner(opts.Signer)})
	if err != nil {
		return nil, err
	}

	return &SignResult{
		InputURL:      url,
		InputData:     data,
		JWS:           parsedJWS,
		SerializedJWS: serialized,
	}, nil
}
