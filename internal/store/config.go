package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultPageLength = 200
	DefaultSession    = "default"
	DefaultTimeout    = 30 * time.Second
)

// LengthMenu lists the page lengths grids accept.
var LengthMenu = []int{10, 50, 100, 200, 500, 1000}

type Config struct {
	// BaseURL is the console root, e.g. https://sner.example.org.
	BaseURL string `json:"baseUrl,omitempty"`

	// CSRFToken skips reading the token from the console's meta tag when set.
	CSRFToken string `json:"csrfToken,omitempty"`

	// Session scopes persisted grid states, like a browser session.
	Session string `json:"session,omitempty"`

	// StateDB overrides <config dir>/state.sqlite.
	StateDB string `json:"stateDb,omitempty"`

	PageLength int `json:"pageLength,omitempty"`

	// Timeout is a Go duration string ("30s").
	Timeout string `json:"timeout,omitempty"`

	// Headers are attached to every request (e.g. an api key header).
	Headers map[string]string `json:"headers,omitempty"`

	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// Theme is one of light|dark|auto.
	Theme string `json:"theme,omitempty"`
}

func (c Config) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(c.Timeout)); err == nil && d > 0 {
		return d
	}
	return DefaultTimeout
}

func (c Config) EffectivePageLength() int {
	if ValidPageLength(c.PageLength) {
		return c.PageLength
	}
	return DefaultPageLength
}

func ValidPageLength(n int) bool {
	for _, v := range LengthMenu {
		if v == n {
			return true
		}
	}
	return false
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.sner).
	if v := strings.TrimSpace(os.Getenv("SNER_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sner"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// 0600: the file may hold a csrf token or api key headers.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}
