package secret

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyRejectsEmptyPassphrase(t *testing.T) {
	_, err := DeriveKey("")
	assert.Error(t, err)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	k1, err := DeriveKey("hunter2")
	require.NoError(t, err)
	k2, err := DeriveKey("hunter2")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestDeriveKeyDiffersByPassphrase(t *testing.T) {
	k1, err := DeriveKey("hunter2")
	require.NoError(t, err)
	k2, err := DeriveKey("hunter3")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SOUL_ROOT=/var/soul\nFOO=bar\n"), 0o600))

	key, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)

	encPath, err := EncryptFile(envPath, key)
	require.NoError(t, err)
	assert.Equal(t, envPath+".enc", encPath)

	sealed, err := os.ReadFile(encPath)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "FOO=bar")

	outPath := filepath.Join(dir, "restored.env")
	require.NoError(t, DecryptFile(encPath, outPath, key))

	restored, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "SOUL_ROOT=/var/soul\nFOO=bar\n", string(restored))
}

func TestDecryptFailsWithWrongKey(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SECRET=1"), 0o600))

	key, err := DeriveKey("right-key")
	require.NoError(t, err)
	encPath, err := EncryptFile(envPath, key)
	require.NoError(t, err)

	wrongKey, err := DeriveKey("wrong-key")
	require.NoError(t, err)
	err = DecryptFile(encPath, filepath.Join(dir, "out.env"), wrongKey)
	assert.Error(t, err)
}

func TestRotateKeyReencryptsUnderNewKey(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TOKEN=abc123"), 0o600))

	oldKey, err := DeriveKey("old-passphrase")
	require.NoError(t, err)
	encPath, err := EncryptFile(envPath, oldKey)
	require.NoError(t, err)

	newKey, err := DeriveKey("new-passphrase")
	require.NoError(t, err)
	require.NoError(t, RotateKey(encPath, oldKey, newKey))

	// Old key no longer works.
	err = DecryptFile(encPath, filepath.Join(dir, "out-old.env"), oldKey)
	assert.Error(t, err)

	// New key recovers the original plaintext.
	outPath := filepath.Join(dir, "out-new.env")
	require.NoError(t, DecryptFile(encPath, outPath, newKey))
	restored, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN=abc123", string(restored))
}
