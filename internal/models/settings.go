package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Settings contains all client settings. Connection and alarm preferences
// come from the settings file; focus hours and forecast types are also
// written back when changed from the UI.
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Connection settings
	ServerURL string `json:"serverUrl"`
	APISecret string `json:"apiSecret"` // Plain API secret (will be hashed)
	APIToken  string `json:"apiToken"`  // Token-based auth
	UseToken  bool   `json:"useToken"`  // Use token instead of secret

	// Display settings
	Units       string `json:"units"`      // "mg/dl" or "mmol"
	TimeFormat  int    `json:"timeFormat"` // 12 or 24
	Theme       string `json:"theme"`      // "default", "colors"
	CustomTitle string `json:"customTitle"`
	NightMode   bool   `json:"nightMode"`

	// Focus window preferences (persisted on change)
	FocusHours   int    `json:"focusHours"`
	ShowForecast string `json:"showForecast"` // space-separated forecast types

	// Glucose alarm toggles
	AlarmHigh       bool `json:"alarmHigh"`
	AlarmLow        bool `json:"alarmLow"`
	AlarmUrgentHigh bool `json:"alarmUrgentHigh"`
	AlarmUrgentLow  bool `json:"alarmUrgentLow"`

	// Stale-data alarm toggles and thresholds (minutes since last reading)
	AlarmTimeagoWarn       bool `json:"alarmTimeagoWarn"`
	AlarmTimeagoWarnMins   int  `json:"alarmTimeagoWarnMins"`
	AlarmTimeagoUrgent     bool `json:"alarmTimeagoUrgent"`
	AlarmTimeagoUrgentMins int  `json:"alarmTimeagoUrgentMins"`

	// Snooze duration choices offered per alarm severity, in minutes
	SnoozeMinsWarn   []int `json:"snoozeMinsWarn"`
	SnoozeMinsUrgent []int `json:"snoozeMinsUrgent"`

	Thresholds Thresholds `json:"thresholds"`

	// Raw-BG reconstruction
	EnableRawBG bool `json:"enableRawbg"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		ServerURL: "",
		APISecret: "",
		APIToken:  "",
		UseToken:  false,

		Units:       "mg/dl",
		TimeFormat:  12,
		Theme:       "colors",
		CustomTitle: "Nightscout",

		FocusHours:   3,
		ShowForecast: "ar2",

		AlarmHigh:       true,
		AlarmLow:        true,
		AlarmUrgentHigh: true,
		AlarmUrgentLow:  true,

		AlarmTimeagoWarn:       true,
		AlarmTimeagoWarnMins:   15,
		AlarmTimeagoUrgent:     true,
		AlarmTimeagoUrgentMins: 30,

		SnoozeMinsWarn:   []int{15, 30, 45, 60},
		SnoozeMinsUrgent: []int{30, 60, 90, 120},

		Thresholds: Thresholds{
			BGHigh:         260,
			BGLow:          55,
			BGTargetTop:    180,
			BGTargetBottom: 80,
		},

		EnableRawBG: false,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "nightscout-sync")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from disk
func (s *Settings) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app, not user input
	if err != nil {
		if os.IsNotExist(err) {
			// Use defaults if file doesn't exist
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	return json.Unmarshal(data, s)
}

// Save saves settings to disk
func (s *Settings) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex.
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.ServerURL = other.ServerURL
	s.APISecret = other.APISecret
	s.APIToken = other.APIToken
	s.UseToken = other.UseToken
	s.Units = other.Units
	s.TimeFormat = other.TimeFormat
	s.Theme = other.Theme
	s.CustomTitle = other.CustomTitle
	s.NightMode = other.NightMode
	s.FocusHours = other.FocusHours
	s.ShowForecast = other.ShowForecast
	s.AlarmHigh = other.AlarmHigh
	s.AlarmLow = other.AlarmLow
	s.AlarmUrgentHigh = other.AlarmUrgentHigh
	s.AlarmUrgentLow = other.AlarmUrgentLow
	s.AlarmTimeagoWarn = other.AlarmTimeagoWarn
	s.AlarmTimeagoWarnMins = other.AlarmTimeagoWarnMins
	s.AlarmTimeagoUrgent = other.AlarmTimeagoUrgent
	s.AlarmTimeagoUrgentMins = other.AlarmTimeagoUrgentMins
	s.SnoozeMinsWarn = append([]int(nil), other.SnoozeMinsWarn...)
	s.SnoozeMinsUrgent = append([]int(nil), other.SnoozeMinsUrgent...)
	s.Thresholds = other.Thresholds
	s.EnableRawBG = other.EnableRawBG
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ServerURL != ""
}

// SnoozeMinsForAlarmEvent returns the snooze duration choices to offer for
// the given notify.
func (s *Settings) SnoozeMinsForAlarmEvent(notify *Notify) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if notify != nil && notify.Level >= LevelUrgent {
		return append([]int(nil), s.SnoozeMinsUrgent...)
	}
	return append([]int(nil), s.SnoozeMinsWarn...)
}

// SetFocusHours records a new focus-range preference.
func (s *Settings) SetFocusHours(hours int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FocusHours = hours
}

// AddForecast adds a forecast display type to the persisted preference.
func (s *Settings) AddForecast(forecastType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range strings.Fields(s.ShowForecast) {
		if t == forecastType {
			return
		}
	}
	s.ShowForecast = strings.TrimSpace(s.ShowForecast + " " + forecastType)
}

// RemoveForecast removes a forecast display type from the persisted
// preference.
func (s *Settings) RemoveForecast(forecastType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]string, 0, 4)
	for _, t := range strings.Fields(s.ShowForecast) {
		if t != forecastType {
			kept = append(kept, t)
		}
	}
	s.ShowForecast = strings.Join(kept, " ")
}

// ShowsForecast reports whether a forecast display type is enabled.
func (s *Settings) ShowsForecast(forecastType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range strings.Fields(s.ShowForecast) {
		if t == forecastType {
			return true
		}
	}
	return false
}
