package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server = "https://food.example.com/api"
	cfg.Credentials = Credentials{
		Backend:   auth.BackendRedis,
		RedisAddr: "localhost:6379",
		RedisDB:   2,
		RedisTTL:  "168h",
	}
	cfg.Events.RedisURL = "redis://localhost:6379/0"

	require.NoError(t, Save(path, &cfg))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
	require.NoError(t, loaded.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadDefaultsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://localhost:9000/api\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VersionV1, cfg.Version)
	assert.Equal(t, "http://localhost:9000/api", cfg.ServerOrDefault())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default is valid", mutate: func(*Config) {}},
		{name: "missing version", mutate: func(c *Config) { c.Version = "" }, wantErr: "version missing"},
		{name: "unknown version", mutate: func(c *Config) { c.Version = "v9" }, wantErr: "unsupported"},
		{name: "unknown backend", mutate: func(c *Config) { c.Credentials.Backend = "floppy" }, wantErr: "unknown credentials backend"},
		{name: "redis without addr", mutate: func(c *Config) { c.Credentials.Backend = auth.BackendRedis }, wantErr: "redis-addr"},
		{name: "bad ttl", mutate: func(c *Config) { c.Credentials.RedisTTL = "soon" }, wantErr: "redis-ttl"},
		{name: "bad timeout", mutate: func(c *Config) { c.Settings.Timeout = "3 parsecs" }, wantErr: "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSet(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Set("server", "http://api.local/api"))
	require.NoError(t, cfg.Set("credentials.backend", "keyring"))
	require.NoError(t, cfg.Set("credentials.redis-db", "3"))
	require.NoError(t, cfg.Set("settings.timeout", "5s"))
	require.NoError(t, cfg.Set("settings.insecure-skip-tls-verify", "true"))
	require.NoError(t, cfg.Set("events.topic", "food.sessions"))

	assert.Equal(t, "http://api.local/api", cfg.Server)
	assert.Equal(t, auth.BackendKeyring, cfg.Credentials.Backend)
	assert.Equal(t, 3, cfg.Credentials.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.Settings.TimeoutOrDefault())
	assert.True(t, cfg.Settings.InsecureSkipTLSVerify)
	assert.Equal(t, "food.sessions", cfg.Events.Topic)

	assert.Error(t, cfg.Set("credentials.redis-db", "two"))
	assert.Error(t, cfg.Set("settings.timeout", "later"))
	assert.Error(t, cfg.Set("settings.insecure-skip-tls-verify", "maybe"))
	assert.ErrorContains(t, cfg.Set("nope", "x"), "unknown config key")
}

func TestSetAcceptsEveryListedKey(t *testing.T) {
	values := map[string]string{
		"credentials.redis-db":              "1",
		"credentials.redis-ttl":             "1h",
		"settings.timeout":                  "10s",
		"settings.insecure-skip-tls-verify": "false",
	}
	for _, key := range Keys {
		cfg := DefaultConfig()
		value, ok := values[key]
		if !ok {
			value = "x"
		}
		assert.NoError(t, cfg.Set(key, value), key)
	}
}

func TestSettingsDefaults(t *testing.T) {
	var s Settings
	assert.Equal(t, DefaultTimeout, s.TimeoutOrDefault())
	assert.Equal(t, DefaultLanguage, s.LanguageOrDefault())

	s.Timeout = "-1s"
	assert.Equal(t, DefaultTimeout, s.TimeoutOrDefault())
}

func TestCredentialsBackendConfig(t *testing.T) {
	creds := Credentials{Backend: auth.BackendRedis, RedisAddr: "localhost:6379", RedisKey: "k", RedisTTL: "2h"}
	bc, err := creds.BackendConfig()
	require.NoError(t, err)
	assert.Equal(t, auth.BackendRedis, bc.Type)
	assert.Equal(t, "localhost:6379", bc.Redis.Addr)
	assert.Equal(t, 2*time.Hour, bc.Redis.TTL)
	assert.Equal(t, DefaultCredentialsPath(), bc.Path)

	_, err = Credentials{RedisTTL: "x"}.BackendConfig()
	assert.Error(t, err)
}
