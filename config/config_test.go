package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilab-dev/shadow-admin/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty dir so no user config is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.APIBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, config.StoreBolt, cfg.TokenStore)
	assert.Equal(t, filepath.Join(home, ".adminctl", "tokens.db"), cfg.BoltPath)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "adminctl", cfg.RedisPrefix)
	assert.Zero(t, cfg.MemoryTokenTTL)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, "/profile", cfg.FallbackPath)
	assert.Empty(t, cfg.MetricsAddr)
	assert.False(t, cfg.TraceStdout)
	assert.Empty(t, cfg.AuditLog)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	home := isolate(t)
	t.Setenv("ADMIN_API_BASE_URL", "https://api.example.com")
	t.Setenv("ADMIN_LOG_LEVEL", "debug")
	t.Setenv("ADMIN_HTTP_TIMEOUT", "5s")
	t.Setenv("ADMIN_TOKEN_STORE", "REDIS")
	t.Setenv("ADMIN_REDIS_ADDR", "cache:6380")
	t.Setenv("ADMIN_REDIS_DB", "3")
	t.Setenv("ADMIN_MEMORY_TOKEN_TTL", "15m")
	t.Setenv("ADMIN_METRICS_ADDR", ":9100")
	t.Setenv("ADMIN_AUDIT_LOG", "$HOME/audit.log")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, config.StoreRedis, cfg.TokenStore)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 15*time.Minute, cfg.MemoryTokenTTL)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, filepath.Join(home, "audit.log"), cfg.AuditLog)
}

func TestLoadConfig_File(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "admin.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"api_base_url: https://admin.example.com:8443\n"+
			"token_store: memory\n"+
			"login_path: /signin\n"), 0o600))
	t.Setenv("ADMIN_LOGIN_PATH", "/env-signin")

	cfg, err := config.LoadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, "https://admin.example.com:8443", cfg.APIBaseURL)
	assert.Equal(t, config.StoreMemory, cfg.TokenStore)
	assert.Equal(t, "/env-signin", cfg.LoginPath, "env wins over file")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_SkipsValidation(t *testing.T) {
	isolate(t)
	t.Setenv("ADMIN_TOKEN_STORE", "floppy")

	_, err := config.LoadConfig("")
	require.ErrorContains(t, err, "unknown token_store")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.StoreType("floppy"), cfg.TokenStore)

	cfg.TokenStore = config.StoreMemory
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	isolate(t)
	t.Setenv("ADMIN_HTTP_TIMEOUT", "not_a_duration")

	_, err := config.LoadConfig("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			APIBaseURL:   "http://localhost:5000",
			TokenStore:   config.StoreMemory,
			LoginPath:    "/login",
			FallbackPath: "/profile",
		}
	}

	testCases := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"no scheme", func(c *config.Config) { c.APIBaseURL = "localhost:5000" }, "invalid api_base_url"},
		{"ftp scheme", func(c *config.Config) { c.APIBaseURL = "ftp://host" }, "invalid api_base_url"},
		{"unknown store", func(c *config.Config) { c.TokenStore = "sqlite" }, "unknown token_store"},
		{"bolt without path", func(c *config.Config) { c.TokenStore = config.StoreBolt }, "bolt_path"},
		{"redis without addr", func(c *config.Config) { c.TokenStore = config.StoreRedis }, "redis_addr"},
		{"negative timeout", func(c *config.Config) { c.HTTPTimeout = -time.Second }, "http_timeout"},
		{"relative login path", func(c *config.Config) { c.LoginPath = "login" }, "login_path"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
