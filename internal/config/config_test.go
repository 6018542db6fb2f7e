package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/jrsteele09/go-console-session/users"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("BASE_URL", "")
	t.Setenv("SESSION_STORAGE", "")

	c := config.New()
	require.Equal(t, "http://localhost:3000", c.GetBaseURL())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, 5*time.Minute, c.GetUploadTimeout())
	require.Equal(t, "file", c.GetStorage())
	require.Equal(t, string(users.RoleSuperAdmin), c.GetSuperAdminRole())
	require.Equal(t, time.Duration(0), c.GetProactiveRefresh())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("BASE_URL", "https://events.example.com")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	t.Setenv("UPLOAD_PATHS", "/api/media, ,/api/import")
	t.Setenv("REDIS_DB", "3")

	c := config.New()
	require.Equal(t, "https://events.example.com", c.GetBaseURL())
	require.Equal(t, 10*time.Second, c.GetRequestTimeout())
	require.Equal(t, []string{"/api/media", "/api/import"}, c.GetUploadPaths())
	require.Equal(t, 3, c.GetRedisDB())
}

func TestLoad(t *testing.T) {
	t.Run("file overrides env", func(t *testing.T) {
		t.Setenv("BASE_URL", "http://from-env:3000")
		path := writeFile(t, `
base_url: https://from-file.example.com
request_timeout: 15s
upload_timeout: 2m
storage: memory
super_admin_role: Super Admin
proactive_refresh: 30s
`)
		c, err := config.Load(path)
		require.NoError(t, err)
		require.Equal(t, "https://from-file.example.com", c.GetBaseURL())
		require.Equal(t, 15*time.Second, c.GetRequestTimeout())
		require.Equal(t, 2*time.Minute, c.GetUploadTimeout())
		require.Equal(t, "memory", c.GetStorage())
		require.Equal(t, "Super Admin", c.GetSuperAdminRole())
		require.Equal(t, 30*time.Second, c.GetProactiveRefresh())
	})

	t.Run("empty path uses env only", func(t *testing.T) {
		c, err := config.Load("")
		require.NoError(t, err)
		require.NotEmpty(t, c.GetBaseURL())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid storage backend", func(t *testing.T) {
		path := writeFile(t, "storage: browser\n")
		_, err := config.Load(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "validate config")
	})

	t.Run("redis requires an address", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "")
		path := writeFile(t, "storage: redis\n")
		_, err := config.Load(path)
		require.Error(t, err)
	})

	t.Run("upload timeout shorter than request timeout", func(t *testing.T) {
		path := writeFile(t, "request_timeout: 1m\nupload_timeout: 10s\n")
		_, err := config.Load(path)
		require.Error(t, err)
	})

	t.Run("storage key must be 32 hex bytes", func(t *testing.T) {
		path := writeFile(t, "storage_key: abc\n")
		_, err := config.Load(path)
		require.Error(t, err)
	})
}

func TestFromValues(t *testing.T) {
	values := config.FromEnv()
	values.BaseURL = "not a url"
	_, err := config.FromValues(values)
	require.Error(t, err)
}
