package filestore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-console-session/sessions"
	"github.com/jrsteele09/go-console-session/sessions/filestore"
	"github.com/jrsteele09/go-console-session/token/tokentest"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs, err := filestore.New(path)
	require.NoError(t, err)

	_, ok, err := fs.Get(sessions.KeyAuthToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, fs.Set(sessions.KeyAuthToken, "a.b.c"))
	require.NoError(t, fs.Set(sessions.KeyCSRFToken, "csrf"))

	reopened, err := filestore.New(path)
	require.NoError(t, err)
	value, ok, err := reopened.Get(sessions.KeyAuthToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a.b.c", value)

	require.NoError(t, reopened.Delete(sessions.KeyAuthToken))
	require.NoError(t, reopened.Delete("missing"))
	_, ok, err = fs.Get(sessions.KeyAuthToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStorage_Sealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	fs, err := filestore.New(path, filestore.WithHexKey(testKey))
	require.NoError(t, err)

	require.NoError(t, fs.Set(sessions.KeyAuthToken, "secret.token.value"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "secret.token.value"))

	value, ok, err := fs.Get(sessions.KeyAuthToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "secret.token.value", value)

	t.Run("wrong key", func(t *testing.T) {
		other, err := filestore.New(path, filestore.WithHexKey(strings.Repeat("ff", 32)))
		require.NoError(t, err)
		_, _, err = other.Get(sessions.KeyAuthToken)
		require.ErrorIs(t, err, filestore.ErrSealed)
	})
}

func TestFileStorage_BadKey(t *testing.T) {
	_, err := filestore.New(filepath.Join(t.TempDir(), "s"), filestore.WithHexKey("zz"))
	require.Error(t, err)

	_, err = filestore.New(filepath.Join(t.TempDir(), "s"), filestore.WithHexKey("abcd"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "32 bytes")
}

func TestFileStorage_BacksStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs, err := filestore.New(path)
	require.NoError(t, err)

	store := sessions.NewStore(fs)
	tok := tokentest.Mint(t, "user-1")
	require.NoError(t, store.SetSession(tok, "csrf", nil))

	fs2, err := filestore.New(path)
	require.NoError(t, err)
	restarted := sessions.NewStore(fs2)
	got, ok := restarted.Token()
	require.True(t, ok)
	require.Equal(t, tok, got)

	restarted.Clear()
	_, ok = sessions.NewStore(fs).Token()
	require.False(t, ok)
}
