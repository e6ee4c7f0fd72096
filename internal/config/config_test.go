package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvAPIURL, EnvEnvironment, EnvDataDir, EnvPollInterval, EnvLiveChatURL, EnvUIURL} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.True(t, cfg.SecureStorage)
	assert.Equal(t, api.ProductionURL, cfg.BaseURL())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: development
poll_interval: 10s
open_links: true
ui_url: https://wallet.example.com
prices:
  BTC:
    USD:
      price: 4000
      sign: "$"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, api.DevelopmentURL, cfg.BaseURL())
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.True(t, cfg.OpenLinks)
	d, ok := cfg.Catalog().Lookup("BTC", "USD")
	require.True(t, ok)
	assert.Equal(t, denomination.Denomination{Price: 4000, Sign: "$", Precision: 2, PrecisionMax: 2}, d)

	t.Setenv(EnvAPIURL, "https://staging.example.com/api")
	t.Setenv(EnvPollInterval, "1m")
	t.Setenv(EnvDataDir, "/tmp/bitlum")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", cfg.BaseURL())
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, "/tmp/bitlum", cfg.DataDir)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown env", yaml: "env: staging\n"},
		{name: "zero interval", yaml: "poll_interval: 0s\n"},
		{name: "relative url", yaml: "ui_url: /wallet\n"},
		{name: "not yaml", yaml: "env: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default("/home/test")
	cfg.LiveChatURL = "https://chat.example.com/unread"
	require.NoError(t, Write(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/bitlum.yaml")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/bitlum.yaml", p)

	t.Setenv(EnvConfig, "")
	p, err = DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("bitlum", "config.yaml"), filepath.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p)))
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvUIURL)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BITLUM_UI_URL=https://dotenv.example.com\n"), 0o600))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "https://dotenv.example.com", os.Getenv(EnvUIURL))
}
