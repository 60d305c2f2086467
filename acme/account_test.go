package acme

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountContacts(t *testing.T) {
	acct, err := NewAccount([]string{"admin@example.com", "", "ops@example.com"}, nil)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"mailto:admin@example.com", "mailto:ops@example.com"},
		acct.Contact)
	assert.Empty(t, acct.ID, "an unregistered account has no ID")
	require.NotNil(t, acct.Signer, "a nil signer generates a fresh key")
}

func TestSaveRestoreAccount(t *testing.T) {
	acct, err := NewAccount([]string{"admin@example.com"}, nil)
	require.NoError(t, err)
	acct.ID = "https://example.com/acme/acct/1"

	path := filepath.Join(t.TempDir(), "account.json")
	require.NoError(t, SaveAccount(path, acct))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path + ".key")
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	restored, err := RestoreAccount(path)
	require.NoError(t, err)

	assert.Equal(t, acct.ID, restored.ID)
	assert.Equal(t, acct.Contact, restored.Contact)
	require.NotNil(t, restored.Signer)
	assert.Equal(t, acct.Signer.Public(), restored.Signer.Public())
}

func TestRestoreAccountMissing(t *testing.T) {
	_, err := RestoreAccount(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestRestoreAccountMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := RestoreAccount(path)
	assert.ErrorContains(t, err, "malformed")
}
