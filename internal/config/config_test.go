package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
customer:
  name: "Ada"
backend:
  url: "http://help.example.com"
  timeout: 3s
realtime:
  url: "wss://help.example.com/rt"
  auto_grant: true
server:
  port: 9090
mock:
  call_duration: 30s
log:
  level: debug
  file: /tmp/otfcs.log
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Customer.Name != "Ada" {
		t.Errorf("Customer.Name = %q, want Ada", cfg.Customer.Name)
	}
	if cfg.Backend.URL != "http://help.example.com" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 3*time.Second {
		t.Errorf("Backend.Timeout = %s, want 3s", cfg.Backend.Timeout)
	}
	if !cfg.Realtime.AutoGrant {
		t.Error("Realtime.AutoGrant = false, want true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Mock.CallDuration != 30*time.Second {
		t.Errorf("Mock.CallDuration = %s, want 30s", cfg.Mock.CallDuration)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/tmp/otfcs.log" {
		t.Errorf("Log = %+v", cfg.Log)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Backend.UnloadTimeout != 2*time.Second {
		t.Errorf("Backend.UnloadTimeout = %s, want default 2s", cfg.Backend.UnloadTimeout)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Mock.Reply == "" {
		t.Error("Mock.Reply lost its default")
	}
}

func TestLoadTOML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	data := `
[customer]
name = "Grace"

[backend]
timeout = "4s"

[server]
port = 9191
`
	if err := os.WriteFile(cfgPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Customer.Name != "Grace" {
		t.Errorf("Customer.Name = %q, want Grace", cfg.Customer.Name)
	}
	if cfg.Backend.Timeout != 4*time.Second {
		t.Errorf("Backend.Timeout = %s, want 4s", cfg.Backend.Timeout)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Backend.URL != "http://127.0.0.1:8080" {
		t.Errorf("Backend.URL = %q, want default", cfg.Backend.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Customer.Name != "Guest" {
		t.Errorf("Customer.Name = %q, want Guest", cfg.Customer.Name)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"blank name", func(c *Config) { c.Customer.Name = "  " }, "customer.name"},
		{"ws backend", func(c *Config) { c.Backend.URL = "ws://x" }, "backend.url"},
		{"http realtime", func(c *Config) { c.Realtime.URL = "http://x/rt" }, "realtime.url"},
		{"no host", func(c *Config) { c.Realtime.URL = "ws:///rt" }, "realtime.url"},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, "backend.timeout"},
		{"zero unload timeout", func(c *Config) { c.Backend.UnloadTimeout = 0 }, "backend.unload_timeout"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"mock poll", func(c *Config) { c.Mock.PollInterval = 0 }, "mock.poll_interval"},
		{"mock disabled", func(c *Config) {
			c.Mock.Enabled = false
			c.Mock.PollInterval = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9000
	if got := cfg.Addr(); got != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", got)
	}
}
