package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"linklearn/pkg/types"
)

// Config collects the settings for one session client instance.
type Config struct {
	Server  *ServerConfig  `json:"server"`
	Cache   *CacheConfig   `json:"cache"`
	Media   *MediaConfig   `json:"media"`
	Sync    *SyncConfig    `json:"sync"`
	Control *ControlConfig `json:"control"`
}

// ServerConfig identifies the session-scoped server endpoint and the
// local participant.
type ServerConfig struct {
	BaseURL        string        `json:"base_url"`
	Token          string        `json:"token"`
	SessionID      string        `json:"session_id"`
	UserID         string        `json:"user_id"`
	ReconnectDelay time.Duration `json:"reconnect_delay"`
}

// CacheConfig locates the durable document cache.
type CacheConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// MediaConfig holds peer-link settings: ICE servers for candidate
// gathering and the path where the video/mute preference persists.
type MediaConfig struct {
	ICEServers      []string `json:"ice_servers"`
	PreferencesPath string   `json:"preferences_path"`
}

// SyncConfig tunes the collaborative sync engine.
type SyncConfig struct {
	ThrottleInterval time.Duration `json:"throttle_interval"`
	GuardWindow      time.Duration `json:"guard_window"`
}

// ControlConfig binds the local presentation-boundary HTTP server.
type ControlConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultConfig returns working defaults: local server, 3 second linear
// reconnection, 500 ms broadcast throttle, 100 ms import guard.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			BaseURL:        "ws://localhost:8000",
			ReconnectDelay: 3000 * time.Millisecond,
		},
		Cache: &CacheConfig{
			Path:    "./linklearn.db",
			Timeout: 30 * time.Second,
		},
		Media: &MediaConfig{
			ICEServers:      []string{"stun:stun.l.google.com:19302"},
			PreferencesPath: "./linklearn_prefs.json",
		},
		Sync: &SyncConfig{
			ThrottleInterval: 500 * time.Millisecond,
			GuardWindow:      100 * time.Millisecond,
		},
		Control: &ControlConfig{
			Host: "127.0.0.1",
			Port: 7880,
		},
	}
}

// Validate rejects configurations that cannot produce a working client.
// Session id and token are deliberately not required here: connect treats
// their absence as a silent no-op, not a configuration error.
func (c *Config) Validate() error {
	if c.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "ws://") && !strings.HasPrefix(c.Server.BaseURL, "wss://") {
		return fmt.Errorf("server base URL must use ws:// or wss://")
	}
	if c.Server.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.Server.SessionID != "" && !types.IsValidSessionID(c.Server.SessionID) {
		return fmt.Errorf("session id %q: %w", c.Server.SessionID, types.ErrInvalidSessionID)
	}
	if c.Server.UserID != "" && !types.IsValidUserID(c.Server.UserID) {
		return fmt.Errorf("user id %q: %w", c.Server.UserID, types.ErrInvalidUserID)
	}
	if c.Server.Token != "" && !types.IsValidToken(c.Server.Token) {
		return fmt.Errorf("token is a serialized-absent sentinel: %w", types.ErrInvalidToken)
	}
	if c.Cache == nil {
		return fmt.Errorf("cache configuration is required")
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache path cannot be empty")
	}
	if c.Cache.Timeout <= 0 {
		return fmt.Errorf("cache timeout must be positive")
	}
	if c.Media == nil {
		return fmt.Errorf("media configuration is required")
	}
	if c.Sync == nil {
		return fmt.Errorf("sync configuration is required")
	}
	if c.Sync.ThrottleInterval <= 0 {
		return fmt.Errorf("sync throttle interval must be positive")
	}
	if c.Sync.GuardWindow <= 0 {
		return fmt.Errorf("sync guard window must be positive")
	}
	if c.Control == nil {
		return fmt.Errorf("control configuration is required")
	}
	if c.Control.Port <= 0 || c.Control.Port > 65535 {
		return fmt.Errorf("control port must be between 1 and 65535")
	}
	return nil
}

// LoadFromEnv overlays LINKLEARN_* environment variables on the defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if baseURL := os.Getenv("LINKLEARN_SERVER_URL"); baseURL != "" {
		config.Server.BaseURL = baseURL
	}
	if token := os.Getenv("LINKLEARN_TOKEN"); token != "" {
		config.Server.Token = token
	}
	if sessionID := os.Getenv("LINKLEARN_SESSION_ID"); sessionID != "" {
		config.Server.SessionID = sessionID
	}
	if userID := os.Getenv("LINKLEARN_USER_ID"); userID != "" {
		config.Server.UserID = userID
	}
	if delay := os.Getenv("LINKLEARN_RECONNECT_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Server.ReconnectDelay = d
		}
	}
	if cachePath := os.Getenv("LINKLEARN_CACHE_PATH"); cachePath != "" {
		config.Cache.Path = cachePath
	}
	if cacheTimeout := os.Getenv("LINKLEARN_CACHE_TIMEOUT"); cacheTimeout != "" {
		if d, err := time.ParseDuration(cacheTimeout); err == nil {
			config.Cache.Timeout = d
		}
	}
	if iceServers := os.Getenv("LINKLEARN_ICE_SERVERS"); iceServers != "" {
		config.Media.ICEServers = strings.Split(iceServers, ",")
	}
	if prefsPath := os.Getenv("LINKLEARN_PREFERENCES_PATH"); prefsPath != "" {
		config.Media.PreferencesPath = prefsPath
	}
	if throttle := os.Getenv("LINKLEARN_SYNC_THROTTLE"); throttle != "" {
		if d, err := time.ParseDuration(throttle); err == nil {
			config.Sync.ThrottleInterval = d
		}
	}
	if guard := os.Getenv("LINKLEARN_SYNC_GUARD"); guard != "" {
		if d, err := time.ParseDuration(guard); err == nil {
			config.Sync.GuardWindow = d
		}
	}
	if host := os.Getenv("LINKLEARN_CONTROL_HOST"); host != "" {
		config.Control.Host = host
	}
	if port := os.Getenv("LINKLEARN_CONTROL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Control.Port = p
		}
	}

	return config
}

// ConfigFile mirrors Config for JSON parsing, with durations as strings.
type ConfigFile struct {
	Server  *ServerConfigFile  `json:"server"`
	Cache   *CacheConfigFile   `json:"cache"`
	Media   *MediaConfig       `json:"media"`
	Sync    *SyncConfigFile    `json:"sync"`
	Control *ControlConfig     `json:"control"`
}

type ServerConfigFile struct {
	BaseURL        string `json:"base_url"`
	Token          string `json:"token"`
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	ReconnectDelay string `json:"reconnect_delay"`
}

type CacheConfigFile struct {
	Path    string `json:"path"`
	Timeout string `json:"timeout"`
}

type SyncConfigFile struct {
	ThrottleInterval string `json:"throttle_interval"`
	GuardWindow      string `json:"guard_window"`
}

// LoadFromFile reads a JSON configuration file and applies it over the
// defaults, parsing duration strings.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.Server != nil {
		if configFile.Server.BaseURL != "" {
			config.Server.BaseURL = configFile.Server.BaseURL
		}
		if configFile.Server.Token != "" {
			config.Server.Token = configFile.Server.Token
		}
		if configFile.Server.SessionID != "" {
			config.Server.SessionID = configFile.Server.SessionID
		}
		if configFile.Server.UserID != "" {
			config.Server.UserID = configFile.Server.UserID
		}
		if configFile.Server.ReconnectDelay != "" {
			if d, err := time.ParseDuration(configFile.Server.ReconnectDelay); err == nil {
				config.Server.ReconnectDelay = d
			}
		}
	}

	if configFile.Cache != nil {
		if configFile.Cache.Path != "" {
			config.Cache.Path = configFile.Cache.Path
		}
		if configFile.Cache.Timeout != "" {
			if d, err := time.ParseDuration(configFile.Cache.Timeout); err == nil {
				config.Cache.Timeout = d
			}
		}
	}

	if configFile.Media != nil {
		if len(configFile.Media.ICEServers) > 0 {
			config.Media.ICEServers = configFile.Media.ICEServers
		}
		if configFile.Media.PreferencesPath != "" {
			config.Media.PreferencesPath = configFile.Media.PreferencesPath
		}
	}

	if configFile.Sync != nil {
		if configFile.Sync.ThrottleInterval != "" {
			if d, err := time.ParseDuration(configFile.Sync.ThrottleInterval); err == nil {
				config.Sync.ThrottleInterval = d
			}
		}
		if configFile.Sync.GuardWindow != "" {
			if d, err := time.ParseDuration(configFile.Sync.GuardWindow); err == nil {
				config.Sync.GuardWindow = d
			}
		}
	}

	if configFile.Control != nil {
		if configFile.Control.Host != "" {
			config.Control.Host = configFile.Control.Host
		}
		if configFile.Control.Port > 0 {
			config.Control.Port = configFile.Control.Port
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. File errors are silently ignored so environment and defaults
// still apply.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
