package acme

import (
	"crypto"
	"encoding/json"
	"fmt"
	"os"

	"github.com/globalsign/pemfile"

	"github.com/lhoward/acmeissue/acme/keys"
)

// Account pairs the server-assigned account URL (the JWS "kid") with the
// private key that authenticated its creation. Both fields are read-only for
// the lifetime of a client once the account is registered or restored.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.2
type Account struct {
	// The server-assigned account URL, used as the JWS Key ID for all
	// authenticated requests after registration.
	ID string
	// Contact URIs (e.g. "mailto:admin@example.com") sent at registration.
	Contact []string
	// The account's private key. Never sent to the server; used to sign every
	// authenticated request.
	Signer crypto.Signer

	// URLs of orders created by this account during the process lifetime.
	Orders []string
}

// String returns the account's ID URL.
func (a Account) String() string {
	return a.ID
}

// NewAccount assembles an unregistered Account from the given contact email
// addresses and private key. A nil signer generates a fresh ECDSA P-256 key.
// The Account has no ID until it is registered with a server.
func NewAccount(emails []string, signer crypto.Signer) (*Account, error) {
	var contacts []string
	for _, e := range emails {
		if e == "" {
			continue
		}
		contacts = append(contacts, fmt.Sprintf("mailto:%s", e))
	}

	if signer == nil {
		randKey, err := keys.NewSigner("ecdsa")
		if err != nil {
			return nil, err
		}
		signer = randKey
	}

	return &Account{
		Contact: contacts,
		Signer:  signer,
	}, nil
}

// frozenAccount is the JSON form of a saved account. The private key lives in
// a separate PEM file next to it.
type frozenAccount struct {
	ID      string
	Contact []string
}

// keyPath returns the path of the PEM key file that accompanies a saved
// account file.
func keyPath(path string) string {
	return path + ".key"
}

// SaveAccount persists an account to path as JSON and its private key to
// path + ".key" as PEM. The key file is written with mode 0600.
func SaveAccount(path string, account *Account) error {
	frozen, err := json.MarshalIndent(frozenAccount{
		ID:      account.ID,
		Contact: account.Contact,
	}, "", "  ")
	if err != nil {
		return err
	}

	keyPEM, err := keys.SignerToPEM(account.Signer)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, frozen, 0644); err != nil {
		return err
	}
	return os.WriteFile(keyPath(path), []byte(keyPEM), 0600)
}

// RestoreAccount loads an account previously written by SaveAccount. No
// network calls are made; the restored account is immediately usable for
// authenticated requests.
func RestoreAccount(path string) (*Account, error) {
	frozenBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var frozen frozenAccount
	if err := json.Unmarshal(frozenBytes, &frozen); err != nil {
		return nil, fmt.Errorf("account file %q is malformed: %s", path, err)
	}

	key, err := pemfile.ReadPrivateKey(keyPath(path))
	if err != nil {
		return nil, err
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key file %q does not contain a signing key", keyPath(path))
	}

	return &Account{
		ID:      frozen.ID,
		Contact: frozen.Contact,
		Signer:  signer,
	}, nil
}
