package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultBaseURL         = "http://127.0.0.1:8080"
	DefaultMessageInterval = 3 * time.Second
	DefaultUnreadInterval  = 30 * time.Second
	DefaultClientTimeout   = 10 * time.Second

	clientConfigEnvKey = "FLULANCE_CONFIG"
	envPrefix          = "FLULANCE_"
)

// ClientConfig configures the command line client.
type ClientConfig struct {
	BaseURL         string        `toml:"base_url"`
	Token           string        `toml:"token"`
	MessageInterval time.Duration `toml:"message_interval"`
	UnreadInterval  time.Duration `toml:"unread_interval"`
	Timeout         time.Duration `toml:"timeout"`
	LogLevel        string        `toml:"log_level"`

	Path string `toml:"-"`
}

var clientKeys = []string{"base_url", "token", "message_interval", "unread_interval", "timeout", "log_level"}

func DefaultClient() ClientConfig {
	return ClientConfig{
		BaseURL:         DefaultBaseURL,
		MessageInterval: DefaultMessageInterval,
		UnreadInterval:  DefaultUnreadInterval,
		Timeout:         DefaultClientTimeout,
		LogLevel:        "warn",
	}
}

// ClientConfigPath is $FLULANCE_CONFIG or ~/.config/flulance/cli.toml.
func ClientConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv(clientConfigEnvKey)); path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "flulance", "cli.toml"), nil
}

// LoadClient reads the TOML file if present and applies FLULANCE_* overrides.
// Flags are applied by the caller on top.
func LoadClient() (*ClientConfig, error) {
	cfg := DefaultClient()

	path, err := ClientConfigPath()
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	for _, key := range clientKeys {
		raw, ok := os.LookupEnv(envPrefix + strings.ToUpper(key))
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := cfg.Set(key, raw); err != nil {
			return nil, fmt.Errorf("%s%s: %w", envPrefix, strings.ToUpper(key), err)
		}
	}
	return &cfg, nil
}

func ClientKeys() []string {
	return slices.Clone(clientKeys)
}

func (c *ClientConfig) Get(key string) (string, error) {
	switch key {
	case "base_url":
		return c.BaseURL, nil
	case "token":
		return c.Token, nil
	case "message_interval":
		return c.MessageInterval.String(), nil
	case "unread_interval":
		return c.UnreadInterval.String(), nil
	case "timeout":
		return c.Timeout.String(), nil
	case "log_level":
		return c.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(clientKeys, ", "))
	}
}

// Set parses value into the field named by key.
func (c *ClientConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "base_url":
		c.BaseURL = strings.TrimRight(value, "/")
	case "token":
		c.Token = value
	case "message_interval", "unread_interval", "timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration like 3s, got %q", key, value)
		}
		switch key {
		case "message_interval":
			c.MessageInterval = d
		case "unread_interval":
			c.UnreadInterval = d
		default:
			c.Timeout = d
		}
	case "log_level":
		c.LogLevel = value
	default:
		return fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(clientKeys, ", "))
	}
	return nil
}

// SetClientKey updates one key in the TOML file at path, keeping the rest.
func SetClientKey(path, key, value string) error {
	var parsed ClientConfig
	if err := parsed.Set(key, value); err != nil {
		return err
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	stored, _ := parsed.Get(key)
	data[key] = stored

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	// The file may hold a bearer token.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(data)
}
