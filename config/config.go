// Package config — application configuration.
//
// Settings are stored in ~/.querybot/config.json. The backend URL,
// schema database URI and log level can also be set via environment
// variables (QUERYBOT_API_URL, QUERYBOT_DB_URI, QUERYBOT_LOG_LEVEL).
// QUERYBOT_HOME relocates the whole ~/.querybot directory.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AppConfig is the top-level config file structure (~/.querybot/config.json).
type AppConfig struct {
	Backend     BackendConfig `json:"backend"`
	Schema      SchemaConfig  `json:"schema"`
	UI          UISettings    `json:"ui"`
	DefaultMode string        `json:"default_mode"` // "chat" or "eda"
	LogLevel    string        `json:"log_level"`    // "debug", "info", "warn", "error"
}

// BackendConfig points the client at the analysis backend.
type BackendConfig struct {
	URL            string    `json:"url"`
	TimeoutSeconds int       `json:"timeout_seconds"` // 0 disables the client-side timeout
	SSH            SSHConfig `json:"ssh"`
}

// SSHConfig holds SSH tunnel settings. When enabled the backend host/port
// from Backend.URL is reached through the bastion and the client talks to
// the local end of the tunnel instead.
type SSHConfig struct {
	Enabled       bool   `json:"enabled,omitempty"`
	Host          string `json:"host,omitempty"`
	Port          int    `json:"port,omitempty"`
	User          string `json:"user,omitempty"`
	KeyPath       string `json:"key_path,omitempty"`
	KeyPassphrase string `json:"key_passphrase,omitempty"`
	// KnownHostsPath enables host key verification; empty accepts any key.
	KnownHostsPath string `json:"known_hosts_path,omitempty"`
}

// SchemaConfig controls where the schema sidebar gets its data.
type SchemaConfig struct {
	// DBURI is passed to GET /api/schema as db_uri; empty means the
	// backend's own default database.
	DBURI string `json:"db_uri,omitempty"`
	// Direct introspects DBURI with pgx instead of asking the backend.
	Direct bool `json:"direct,omitempty"`
}

// Timeout returns the configured request timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// RemoteAddr returns host:port of the backend, for tunnelling.
func (b BackendConfig) RemoteAddr() (string, error) {
	u, err := url.Parse(b.URL)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend url %q has no host", b.URL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// WithLocalEndpoint returns the backend URL rewritten to a local tunnel port.
func (b BackendConfig) WithLocalEndpoint(host string, port int) (string, error) {
	u, err := url.Parse(b.URL)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	u.Host = net.JoinHostPort(host, strconv.Itoa(port))
	return u.String(), nil
}

// DefaultAppConfig returns sensible defaults.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			URL:            "http://localhost:8000",
			TimeoutSeconds: 120,
			SSH: SSHConfig{
				Port: 22,
			},
		},
		UI: UISettings{
			Theme:       ThemeDark,
			SidebarOpen: true,
		},
		DefaultMode: "chat",
		LogLevel:    "info",
	}
}

// Dir returns the querybot state directory (~/.querybot unless QUERYBOT_HOME is set).
func Dir() (string, error) {
	if dir := os.Getenv("QUERYBOT_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".querybot"), nil
}

// DefaultPath returns the location of config.json.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadAppConfig reads the config at path; returns defaults if not found.
// An empty path means DefaultPath.
func LoadAppConfig(path string) (*AppConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			cfg := DefaultAppConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		path = p
	}

	cfg := DefaultAppConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	// Env vars override file config
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("QUERYBOT_API_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("QUERYBOT_DB_URI"); v != "" {
		cfg.Schema.DBURI = v
	}
	if v := os.Getenv("QUERYBOT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// SaveAppConfig writes the config to path (DefaultPath when empty).
func SaveAppConfig(path string, cfg *AppConfig) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
