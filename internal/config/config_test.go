package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.ReconnectDelay != 3000*time.Millisecond {
		t.Errorf("reconnect delay = %v, want 3s", cfg.Server.ReconnectDelay)
	}
	if cfg.Sync.ThrottleInterval != 500*time.Millisecond {
		t.Errorf("throttle = %v, want 500ms", cfg.Sync.ThrottleInterval)
	}
	if cfg.Sync.GuardWindow != 100*time.Millisecond {
		t.Errorf("guard window = %v, want 100ms", cfg.Sync.GuardWindow)
	}
	if cfg.Control.Host != "127.0.0.1" {
		t.Errorf("control host = %q, want loopback", cfg.Control.Host)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing token allowed", func(c *Config) { c.Server.Token = "" }, false},
		{"missing session allowed", func(c *Config) { c.Server.SessionID = "" }, false},
		{"http scheme rejected", func(c *Config) { c.Server.BaseURL = "http://localhost" }, true},
		{"wss accepted", func(c *Config) { c.Server.BaseURL = "wss://example.com" }, false},
		{"zero reconnect delay", func(c *Config) { c.Server.ReconnectDelay = 0 }, true},
		{"empty cache path", func(c *Config) { c.Cache.Path = "" }, true},
		{"zero cache timeout", func(c *Config) { c.Cache.Timeout = 0 }, true},
		{"zero throttle", func(c *Config) { c.Sync.ThrottleInterval = 0 }, true},
		{"zero guard", func(c *Config) { c.Sync.GuardWindow = 0 }, true},
		{"port too high", func(c *Config) { c.Control.Port = 70000 }, true},
		{"zero port", func(c *Config) { c.Control.Port = 0 }, true},
		{"nil media", func(c *Config) { c.Media = nil }, true},
		{"sentinel session id", func(c *Config) { c.Server.SessionID = "undefined" }, true},
		{"malformed user id", func(c *Config) { c.Server.UserID = "has space" }, true},
		{"sentinel token", func(c *Config) { c.Server.Token = "null" }, true},
		{"well-formed identity", func(c *Config) {
			c.Server.SessionID = "sess-1"
			c.Server.UserID = "u1"
			c.Server.Token = "tok"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LINKLEARN_SERVER_URL", "wss://sessions.example.com")
	t.Setenv("LINKLEARN_TOKEN", "env-token")
	t.Setenv("LINKLEARN_SESSION_ID", "sess-env")
	t.Setenv("LINKLEARN_USER_ID", "u-env")
	t.Setenv("LINKLEARN_RECONNECT_DELAY", "5s")
	t.Setenv("LINKLEARN_ICE_SERVERS", "stun:a.example.com:3478,turn:b.example.com:3478")
	t.Setenv("LINKLEARN_SYNC_THROTTLE", "250ms")
	t.Setenv("LINKLEARN_CONTROL_PORT", "9000")

	cfg := LoadFromEnv()
	if cfg.Server.BaseURL != "wss://sessions.example.com" {
		t.Errorf("base URL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.Token != "env-token" || cfg.Server.SessionID != "sess-env" || cfg.Server.UserID != "u-env" {
		t.Errorf("identity fields not read from environment: %+v", cfg.Server)
	}
	if cfg.Server.ReconnectDelay != 5*time.Second {
		t.Errorf("reconnect delay = %v, want 5s", cfg.Server.ReconnectDelay)
	}
	if len(cfg.Media.ICEServers) != 2 {
		t.Errorf("ICE servers = %v, want 2 entries", cfg.Media.ICEServers)
	}
	if cfg.Sync.ThrottleInterval != 250*time.Millisecond {
		t.Errorf("throttle = %v, want 250ms", cfg.Sync.ThrottleInterval)
	}
	if cfg.Control.Port != 9000 {
		t.Errorf("control port = %d, want 9000", cfg.Control.Port)
	}
}

func TestLoadFromEnvIgnoresUnparseable(t *testing.T) {
	t.Setenv("LINKLEARN_RECONNECT_DELAY", "not-a-duration")
	t.Setenv("LINKLEARN_CONTROL_PORT", "not-a-port")

	cfg := LoadFromEnv()
	if cfg.Server.ReconnectDelay != 3000*time.Millisecond {
		t.Errorf("reconnect delay = %v, want default kept", cfg.Server.ReconnectDelay)
	}
	if cfg.Control.Port != 7880 {
		t.Errorf("control port = %d, want default kept", cfg.Control.Port)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"server": {
			"base_url": "wss://file.example.com",
			"token": "file-token",
			"session_id": "sess-file",
			"reconnect_delay": "2s"
		},
		"sync": {"throttle_interval": "750ms"},
		"control": {"port": 8100}
	}`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Server.BaseURL != "wss://file.example.com" || cfg.Server.Token != "file-token" {
		t.Errorf("server config not read from file: %+v", cfg.Server)
	}
	if cfg.Server.ReconnectDelay != 2*time.Second {
		t.Errorf("reconnect delay = %v, want 2s", cfg.Server.ReconnectDelay)
	}
	if cfg.Sync.ThrottleInterval != 750*time.Millisecond {
		t.Errorf("throttle = %v, want 750ms", cfg.Sync.ThrottleInterval)
	}
	if cfg.Control.Port != 8100 {
		t.Errorf("control port = %d, want 8100", cfg.Control.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Cache.Path != "./linklearn.db" {
		t.Errorf("cache path = %q, want default", cfg.Cache.Path)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeConfigFile(t, "{not json")
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed file")
	}

	invalid := writeConfigFile(t, `{"server": {"base_url": "http://plain.example.com"}}`)
	if _, err := LoadFromFile(invalid); err == nil {
		t.Error("expected validation error for non-websocket scheme")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("LINKLEARN_TOKEN", "env-token")

	path := writeConfigFile(t, `{"server": {"token": "file-token"}}`)
	cfg := LoadConfigWithPrecedence(path)
	if cfg.Server.Token != "file-token" {
		t.Errorf("token = %q, want file value to win", cfg.Server.Token)
	}

	// A broken file leaves the environment overlay in place.
	cfg = LoadConfigWithPrecedence(filepath.Join(t.TempDir(), "absent.json"))
	if cfg.Server.Token != "env-token" {
		t.Errorf("token = %q, want environment fallback", cfg.Server.Token)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	prefs := LoadPreferences(path)
	if !prefs.VideoEnabled || prefs.Muted {
		t.Errorf("missing file prefs = %+v, want defaults", prefs)
	}

	prefs.VideoEnabled = false
	prefs.Muted = true
	if err := prefs.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := LoadPreferences(path)
	if reloaded.VideoEnabled || !reloaded.Muted {
		t.Errorf("reloaded prefs = %+v, want saved values", reloaded)
	}
}

func TestPreferencesCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatalf("writing corrupt prefs: %v", err)
	}
	prefs := LoadPreferences(path)
	if !prefs.VideoEnabled || prefs.Muted {
		t.Errorf("corrupt file prefs = %+v, want defaults", prefs)
	}
}
