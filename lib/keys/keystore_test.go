package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ckeys "github.com/go-i2p/go-onionpath/lib/common/keys"
)

func TestNewKeystoreGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewRouterKeystore(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "router", ks.KeyID())
	assert.False(t, ks.RouterID().IsZero())
	assert.False(t, ks.EncryptionKeypair().Public.IsZero())

	require.NoError(t, ks.StoreKeys())
	info, err := os.Stat(filepath.Join(dir, "router.key"))
	require.NoError(t, err)
	assert.Equal(t, int64(KeyFileSize), info.Size())
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := NewRouterKeystore(dir, "router")
	require.NoError(t, err)
	assert.Equal(t, ks.RouterID(), loaded.RouterID())
	assert.Equal(t, ks.EncryptionKeypair(), loaded.EncryptionKeypair())
}

func TestRouterIDMatchesIdentity(t *testing.T) {
	ks, err := NewRouterKeystore(t.TempDir(), "a")
	require.NoError(t, err)
	assert.Equal(t, ckeys.RouterIDFromIdentity(ks.Identity()), ks.RouterID())
	assert.Len(t, ks.Identity(), 64)
}

func TestSignVerify(t *testing.T) {
	ks, err := NewRouterKeystore(t.TempDir(), "a")
	require.NoError(t, err)
	sig := ks.Sign([]byte("hello"))
	assert.True(t, VerifyIdentity(ks.Identity(), []byte("hello"), sig))
	assert.False(t, VerifyIdentity(ks.Identity(), []byte("other"), sig))
	assert.False(t, VerifyIdentity([]byte{1}, []byte("hello"), sig))
}

func TestLoadRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.key"), []byte("short"), 0o600))
	_, err := NewRouterKeystore(dir, "bad")
	assert.ErrorIs(t, err, ErrInvalidKeyFile)
}
