package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validConfig = `{
	"http_port": 8080,
	"metrics_port": 9090,
	"db_path": "./test.db",
	"encryption_key": "0123456789abcdef0123456789abcdef",
	"provider": {
		"client_id": "cid",
		"sso_base": "https://sso.example.org",
		"api_base": "https://api.example.org/v2",
		"redirect_uri": "http://localhost:8080/auth/callback",
		"scopes": "openid email"
	},
	"feed": {"url": "https://api.example.org/v2/tracker/whazzup"}
}`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2, cfg.NumWorkers)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Refresh.PollInterval.Duration)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL.Duration)
}

func TestLoad_DerivedURLs(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://sso.example.org/auth", cfg.AuthURL())
	assert.Equal(t, "https://sso.example.org/token", cfg.TokenURL())
	assert.Equal(t, "https://api.example.org/v2/users/me", cfg.ProfileURL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROVIDER_CLIENT_ID", "env-cid")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REFRESH_INTERVAL", "45s")

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-cid", cfg.Provider.ClientID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.Refresh.Interval.Duration)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing client id", `{
			"db_path": "x", "encryption_key": "0123456789abcdef0123456789abcdef",
			"provider": {"sso_base": "https://s.example.org", "api_base": "https://a.example.org",
				"redirect_uri": "http://localhost/cb", "scopes": "openid"},
			"feed": {"url": "https://a.example.org/feed"}}`},
		{"short encryption key", `{
			"db_path": "x", "encryption_key": "tooshort",
			"provider": {"client_id": "c", "sso_base": "https://s.example.org",
				"api_base": "https://a.example.org", "redirect_uri": "http://localhost/cb",
				"scopes": "openid"},
			"feed": {"url": "https://a.example.org/feed"}}`},
		{"poll interval too long", `{
			"db_path": "x", "encryption_key": "0123456789abcdef0123456789abcdef",
			"provider": {"client_id": "c", "sso_base": "https://s.example.org",
				"api_base": "https://a.example.org", "redirect_uri": "http://localhost/cb",
				"scopes": "openid"},
			"feed": {"url": "https://a.example.org/feed"},
			"refresh": {"poll_interval": "5s"}}`},
		{"not json", `port: 8080`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, d.Duration)

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	out, err := Duration{time.Minute}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(out))
}
