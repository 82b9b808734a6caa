package cmdutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cntfs/internal/cli/credentials"
)

func TestNormalizeServer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "localhost:61324"},
		{"files.example.com", "files.example.com:61324"},
		{"files.example.com:7000", "files.example.com:7000"},
		{"127.0.0.1:9000", "127.0.0.1:9000"},
		{"::1", "[::1]:61324"},
		{"[::1]:7000", "[::1]:7000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeServer(tt.in))
		})
	}
}

func TestEmptyOr(t *testing.T) {
	assert.Equal(t, "-", EmptyOr("", "-"))
	assert.Equal(t, "x", EmptyOr("x", "-"))
}

func withFlags(t *testing.T, f GlobalFlags) {
	t.Helper()
	saved := *Flags
	*Flags = f
	t.Cleanup(func() { *Flags = saved })
}

func saveContext(t *testing.T, name string, ctx *credentials.Context) {
	t.Helper()
	store, err := CredentialStore()
	require.NoError(t, err)
	require.NoError(t, store.SetContext(name, ctx))
}

func TestResolveContext(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	withFlags(t, GlobalFlags{})
	_, err := ResolveContext()
	assert.ErrorIs(t, err, credentials.ErrNotLoggedIn)

	saveContext(t, "files", &credentials.Context{
		Server:       "files:61324",
		APIURL:       "http://files:8080",
		Username:     "alice",
		PasswordHash: "digest",
	})

	t.Run("saved context", func(t *testing.T) {
		withFlags(t, GlobalFlags{})
		rc, err := ResolveContext()
		require.NoError(t, err)
		assert.Equal(t, "files:61324", rc.Server)
		assert.Equal(t, "digest", rc.PasswordHash)
	})

	t.Run("same server keeps credentials", func(t *testing.T) {
		withFlags(t, GlobalFlags{Server: "files"})
		rc, err := ResolveContext()
		require.NoError(t, err)
		assert.Equal(t, "digest", rc.PasswordHash)
		assert.Equal(t, "http://files:8080", rc.APIURL)
	})

	t.Run("other server drops the digest", func(t *testing.T) {
		withFlags(t, GlobalFlags{Server: "elsewhere:7000"})
		rc, err := ResolveContext()
		require.NoError(t, err)
		assert.Equal(t, "elsewhere:7000", rc.Server)
		assert.Equal(t, "alice", rc.Username)
		assert.Empty(t, rc.PasswordHash)
		assert.Empty(t, rc.APIURL)
	})

	t.Run("other user drops the digest", func(t *testing.T) {
		withFlags(t, GlobalFlags{User: "bob", APIURL: "http://override"})
		rc, err := ResolveContext()
		require.NoError(t, err)
		assert.Equal(t, "bob", rc.Username)
		assert.Empty(t, rc.PasswordHash)
		assert.Equal(t, "http://override", rc.APIURL)
	})
}

func TestAPIClientNeedsURL(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	withFlags(t, GlobalFlags{Server: "files"})

	_, err := APIClient()
	assert.ErrorContains(t, err, "no API URL configured")

	withFlags(t, GlobalFlags{Server: "files", APIURL: "http://files:8080"})
	c, err := APIClient()
	require.NoError(t, err)
	assert.NotNil(t, c)
}
