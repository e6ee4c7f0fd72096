// Package config loads the client configuration from YAML, .env files, and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environments selectable with `env` or BITLUM_ENV.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Environment variables.
const (
	EnvConfig       = "BITLUM_CONFIG"
	EnvAPIURL       = "BITLUM_API_URL"
	EnvEnvironment  = "BITLUM_ENV"
	EnvDataDir      = "BITLUM_DATA_DIR"
	EnvPollInterval = "BITLUM_POLL_INTERVAL"
	EnvLiveChatURL  = "BITLUM_LIVECHAT_URL"
	EnvUIURL        = "BITLUM_UI_URL"
)

// Config is the client configuration.
type Config struct {
	// APIURL overrides the URL picked by Env.
	APIURL         string        `yaml:"api_url,omitempty"`
	Env            string        `yaml:"env"`
	UIURL          string        `yaml:"ui_url,omitempty"`
	LiveChatURL    string        `yaml:"livechat_url,omitempty"`
	DataDir        string        `yaml:"data_dir"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// SecureStorage keeps the session in the OS keyring instead of the data
	// directory.
	SecureStorage bool `yaml:"secure_storage"`
	// OpenLinks opens notification deep links in the browser.
	OpenLinks      bool     `yaml:"open_links"`
	Listen         string   `yaml:"listen,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	// Prices adds fiat denominations: asset -> currency -> price.
	Prices map[string]map[string]denomination.FiatPrice `yaml:"prices,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default(home string) Config {
	return Config{
		Env:            EnvProduction,
		DataDir:        filepath.Join(home, ".local", "share", "bitlum"),
		PollInterval:   3 * time.Second,
		RequestTimeout: 30 * time.Second,
		SecureStorage:  true,
	}
}

// DefaultPath is $BITLUM_CONFIG, or ~/.config/bitlum/config.yaml.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "bitlum", "config.yaml"), nil
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg := Default(home)

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write saves cfg to path, creating its directory.
func Write(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies BITLUM_* variables to cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvEnvironment)); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPollInterval)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLiveChatURL)); v != "" {
		cfg.LiveChatURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUIURL)); v != "" {
		cfg.UIURL = v
	}
}

// Validate checks the fields Load cannot default.
func (c Config) Validate() error {
	switch c.Env {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("config: env must be %q or %q, got %q", EnvProduction, EnvDevelopment, c.Env)
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll_interval must be positive")
	}
	if c.RequestTimeout < 0 {
		return errors.New("config: request_timeout must not be negative")
	}
	for name, raw := range map[string]string{"api_url": c.APIURL, "ui_url": c.UIURL, "livechat_url": c.LiveChatURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: %s is not an absolute URL: %q", name, raw)
		}
	}
	return nil
}

// BaseURL is the API URL to use: APIURL when set, else the one of Env.
func (c Config) BaseURL() string {
	if c.APIURL != "" {
		return api.StripAPIPrefix(c.APIURL)
	}
	if c.Env == EnvDevelopment {
		return api.DevelopmentURL
	}
	return api.ProductionURL
}

// Catalog returns the denomination catalog with configured fiat prices.
func (c Config) Catalog() denomination.Catalog {
	return denomination.DefaultCatalog().WithPrices(c.Prices)
}
