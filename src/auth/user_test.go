package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, key string) (*UserStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.dat")
	store, err := NewUserStore(path, key)
	require.NoError(t, err)
	return store, path
}

func TestAddUserAndVerify(t *testing.T) {
	store, _ := newTestStore(t, "test-key")

	require.NoError(t, store.AddUser("admin", "admin123"))

	ok, user, err := store.VerifyCredentials("admin", "admin123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "admin", user.Username)
	assert.NotEmpty(t, user.ID)

	ok, _, err = store.VerifyCredentials("admin", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = store.VerifyCredentials("nobody", "admin123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddUserRejectsDuplicateUsername(t *testing.T) {
	store, _ := newTestStore(t, "test-key")

	require.NoError(t, store.AddUser("admin", "one"))
	assert.ErrorContains(t, store.AddUser("admin", "two"), "already exists")
}

func TestListUsers(t *testing.T) {
	store, _ := newTestStore(t, "test-key")

	require.NoError(t, store.AddUser("admin", "one"))
	require.NoError(t, store.AddUser("viewer", "two"))

	assert.ElementsMatch(t, []string{"admin", "viewer"}, store.ListUsers())
}

func TestSaveAndReloadStore(t *testing.T) {
	store, path := newTestStore(t, "test-key")
	require.NoError(t, store.AddUser("admin", "admin123"))
	require.NoError(t, store.Save())

	// The file on disk must not contain plaintext usernames
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "admin")

	reopened, err := NewUserStore(path, "test-key")
	require.NoError(t, err)

	ok, _, err := reopened.VerifyCredentials("admin", "admin123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadRejectsWrongKey(t *testing.T) {
	store, path := newTestStore(t, "right-key")
	require.NoError(t, store.AddUser("admin", "admin123"))
	require.NoError(t, store.Save())

	_, err := NewUserStore(path, "wrong-key")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key := make([]byte, 32)
	copy(key, "some-key")

	plaintext := []byte("credentials payload")
	ciphertext, err := encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	// Tampered ciphertext fails authentication
	ciphertext[len(ciphertext)-1] ^= 0xFF
	_, err = decrypt(ciphertext, key)
	assert.Error(t, err)
}

func TestSlowEqual(t *testing.T) {
	assert.True(t, SlowEqual([]byte("abc"), []byte("abc")))
	assert.False(t, SlowEqual([]byte("abc"), []byte("abd")))
	assert.False(t, SlowEqual([]byte("abc"), []byte("abcd")))
}
