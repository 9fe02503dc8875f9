package config

import (
	"encoding/json"
	"os"
)

// Preferences are the per-user media settings that survive process
// restart: whether video capture is acquired on session entry and whether
// the microphone starts muted.
type Preferences struct {
	VideoEnabled bool `json:"video_enabled"`
	Muted        bool `json:"muted"`
}

// DefaultPreferences: video on, microphone live.
func DefaultPreferences() *Preferences {
	return &Preferences{VideoEnabled: true}
}

// LoadPreferences reads persisted preferences, falling back to defaults
// when the file is missing or unreadable.
func LoadPreferences(path string) *Preferences {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPreferences()
	}
	prefs := DefaultPreferences()
	if err := json.Unmarshal(data, prefs); err != nil {
		return DefaultPreferences()
	}
	return prefs
}

// Save writes preferences to disk. Errors are returned for logging but
// never block a media toggle.
func (p *Preferences) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
