package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a string ("3s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.chatsync/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// APIBaseURL is the chat server's HTTP API, e.g. http://127.0.0.1:8484.
	APIBaseURL string `toml:"api_base_url"`
	// PushURL is the websocket insert stream. Empty selects polling.
	PushURL string `toml:"push_url"`
	UserID  string `toml:"user_id"`
	Token   string `toml:"token"`

	PollInterval         Duration `toml:"poll_interval"`
	PollTimeout          Duration `toml:"poll_timeout"`
	SendTimeout          Duration `toml:"send_timeout"`
	HistoryTimeout       Duration `toml:"history_timeout"`
	HistoryPageSize      int      `toml:"history_page_size"`
	ReconnectDelay       Duration `toml:"reconnect_delay"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile:       "main",
		APIBaseURL:           "http://127.0.0.1:8484",
		PushURL:              "ws://127.0.0.1:8484/api/ws",
		PollInterval:         Duration{3 * time.Second},
		PollTimeout:          Duration{5 * time.Second},
		SendTimeout:          Duration{15 * time.Second},
		HistoryTimeout:       Duration{15 * time.Second},
		HistoryPageSize:      50,
		ReconnectDelay:       Duration{2 * time.Second},
		MaxReconnectAttempts: 5,
	}
}

// Load reads config from the given path on top of Default. Returns nil and
// an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base_url %q: must be an http(s) URL", c.APIBaseURL)
	}
	if c.PushURL != "" {
		u, err := url.Parse(c.PushURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("push_url %q: must be a ws(s) URL or empty", c.PushURL)
		}
	}
	if c.HistoryPageSize <= 0 {
		return fmt.Errorf("history_page_size must be positive, got %d", c.HistoryPageSize)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must not be negative, got %d", c.MaxReconnectAttempts)
	}
	for name, d := range map[string]Duration{
		"poll_interval":   c.PollInterval,
		"poll_timeout":    c.PollTimeout,
		"send_timeout":    c.SendTimeout,
		"history_timeout": c.HistoryTimeout,
		"reconnect_delay": c.ReconnectDelay,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}
