// Package config loads the YAML configuration shared by the client and the
// reference server.
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

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Customer CustomerConfig `yaml:"customer" toml:"customer"`
	Backend  BackendConfig  `yaml:"backend" toml:"backend"`
	Realtime RealtimeConfig `yaml:"realtime" toml:"realtime"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Mock     MockConfig     `yaml:"mock" toml:"mock"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

type CustomerConfig struct {
	Name string `yaml:"name" toml:"name"`
}

type BackendConfig struct {
	URL           string        `yaml:"url" toml:"url"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	UnloadTimeout time.Duration `yaml:"unload_timeout" toml:"unload_timeout"`
}

type RealtimeConfig struct {
	URL string `yaml:"url" toml:"url"`
	// AutoGrant answers the device permission prompt without asking.
	AutoGrant bool `yaml:"auto_grant" toml:"auto_grant"`
}

type ServerConfig struct {
	Port   int    `yaml:"port" toml:"port"`
	Host   string `yaml:"host" toml:"host"`
	APIKey string `yaml:"api_key" toml:"api_key"`
}

type MockConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	Name         string        `yaml:"name" toml:"name"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	CallDuration time.Duration `yaml:"call_duration" toml:"call_duration"`
	Reply        string        `yaml:"reply" toml:"reply"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	// File is where the client writes its log. The terminal belongs to the
	// UI, so an empty value discards client logs. The server always logs to
	// stderr.
	File string `yaml:"file" toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Customer: CustomerConfig{
			Name: "Guest",
		},
		Backend: BackendConfig{
			URL:           "http://127.0.0.1:8080",
			Timeout:       10 * time.Second,
			UnloadTimeout: 2 * time.Second,
		},
		Realtime: RealtimeConfig{
			URL: "ws://127.0.0.1:8080/rt",
		},
		Server: ServerConfig{
			Port:   8080,
			Host:   "127.0.0.1",
			APIKey: "otfcs-dev",
		},
		Mock: MockConfig{
			Enabled:      true,
			Name:         "Representative",
			PollInterval: 2 * time.Second,
			CallDuration: 2 * time.Minute,
			Reply:        "Thanks for reaching out! How can I help?",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. Files ending in .toml are parsed as
// TOML, anything else as YAML. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Customer.Name) == "" {
		return errors.New("customer.name is empty")
	}
	if err := checkURL("backend.url", c.Backend.URL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("realtime.url", c.Realtime.URL, "ws", "wss"); err != nil {
		return err
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Backend.UnloadTimeout <= 0 {
		return fmt.Errorf("backend.unload_timeout must be positive, got %s", c.Backend.UnloadTimeout)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Mock.Enabled && c.Mock.PollInterval <= 0 {
		return fmt.Errorf("mock.poll_interval must be positive, got %s", c.Mock.PollInterval)
	}
	return nil
}

// Addr is the server's listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: want %s URL, got %q", key, strings.Join(schemes, " or "), raw)
}
