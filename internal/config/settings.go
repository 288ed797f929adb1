package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/surge-downloader/ytdlp-remote/internal/core"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General  GeneralSettings  `json:"general"`
	Endpoint EndpointSettings `json:"endpoint"`
	Polling  PollingSettings  `json:"polling"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	LogLevel             string `json:"log_level"`
	LogRetentionCount    int    `json:"log_retention_count"`
	HistoryRetentionDays int    `json:"history_retention_days"`
	Theme                int    `json:"theme"`
	DefaultLocation      string `json:"default_location"`
	DefaultAudioOnly     bool   `json:"default_audio_only"`
}

const (
	ThemeAdaptive = 0
	ThemeLight    = 1
	ThemeDark     = 2
)

// EndpointSettings locates the remote WebUI.
type EndpointSettings struct {
	Host    string        `json:"host"`
	Port    int           `json:"port"`
	Timeout time.Duration `json:"timeout"`
}

// PollingSettings controls the queue poller and the serve daemon.
type PollingSettings struct {
	Interval   time.Duration `json:"interval"`
	ListenAddr string        `json:"listen_addr"`
}

// SettingMeta provides metadata for a single setting (for UI rendering).
type SettingMeta struct {
	Key         string // Key accepted by Get and Set
	Label       string // Human-readable label
	Description string // Help text
	Type        string // "string", "int", "bool", "duration"
}

// GetSettingsMetadata returns metadata for all settings organized by category.
func GetSettingsMetadata() map[string][]SettingMeta {
	return map[string][]SettingMeta{
		"General": {
			{Key: "log_level", Label: "Log Level", Description: "Minimum log level (debug, info, warn, error).", Type: "string"},
			{Key: "log_retention_count", Label: "Log Retention Count", Description: "Number of recent log files to keep.", Type: "int"},
			{Key: "history_retention_days", Label: "History Retention", Description: "Days of dispatch history to keep. 0 keeps everything.", Type: "int"},
			{Key: "theme", Label: "App Theme", Description: "UI Theme (System, Light, Dark).", Type: "int"},
			{Key: "default_location", Label: "Default Location", Description: "WebUI download location used when none is given. Leave empty for the WebUI default.", Type: "string"},
			{Key: "default_audio_only", Label: "Default Audio Only", Description: "Request audio-only downloads unless overridden.", Type: "bool"},
		},
		"Endpoint": {
			{Key: "host", Label: "Host", Description: "Hostname or IP of the yt-dlp WebUI (required).", Type: "string"},
			{Key: "port", Label: "Port", Description: "Port of the yt-dlp WebUI (1-65535).", Type: "int"},
			{Key: "timeout", Label: "Request Timeout", Description: "Timeout for each request to the WebUI (e.g., 10s).", Type: "duration"},
		},
		"Polling": {
			{Key: "poll_interval", Label: "Poll Interval", Description: "How often the queue state is fetched (e.g., 30s).", Type: "duration"},
			{Key: "listen_addr", Label: "Listen Address", Description: "Local address the serve daemon binds to.", Type: "string"},
		},
	}
}

// CategoryOrder returns the order of categories for display.
func CategoryOrder() []string {
	return []string{"General", "Endpoint", "Polling"}
}

// DefaultSettings returns a new Settings instance with sensible defaults.
// Host has no default; it must be configured.
func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			LogLevel:             "info",
			LogRetentionCount:    5,
			HistoryRetentionDays: 30,
			Theme:                ThemeAdaptive,
		},
		Endpoint: EndpointSettings{
			Port:    core.DefaultPort,
			Timeout: core.DefaultTimeout,
		},
		Polling: PollingSettings{
			Interval:   30 * time.Second,
			ListenAddr: "127.0.0.1:8787",
		},
	}
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetConfigDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path, filling missing fields with defaults.
func LoadSettingsFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(GetSettingsPath(), s)
}

// SaveSettingsTo writes s to path through a temp file and rename.
func SaveSettingsTo(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// EndpointConfig returns the validated endpoint. A missing host is a
// *core.ValidationError.
func (s *Settings) EndpointConfig() (core.EndpointConfig, error) {
	return core.NewEndpointConfig(s.Endpoint.Host, s.Endpoint.Port)
}

// Validate checks the settings that have fixed ranges. The host is checked
// separately by EndpointConfig since commands like config work without one.
func (s *Settings) Validate() error {
	if s.Endpoint.Port < 0 || s.Endpoint.Port > 65535 {
		return core.NewValidationError("port", fmt.Sprintf("%d out of range 1-65535", s.Endpoint.Port))
	}
	if s.Endpoint.Timeout < 0 {
		return core.NewValidationError("timeout", "must not be negative")
	}
	if s.Polling.Interval < time.Second {
		return core.NewValidationError("poll_interval", "must be at least 1s")
	}
	if s.General.LogRetentionCount < 0 {
		return core.NewValidationError("log_retention_count", "must not be negative")
	}
	if s.General.HistoryRetentionDays < 0 {
		return core.NewValidationError("history_retention_days", "must not be negative")
	}
	return nil
}

// Keys returns every setting key in display order.
func Keys() []string {
	meta := GetSettingsMetadata()
	var keys []string
	for _, cat := range CategoryOrder() {
		for _, m := range meta[cat] {
			keys = append(keys, m.Key)
		}
	}
	return keys
}

// Get returns the value of key formatted for display.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "log_level":
		return s.General.LogLevel, nil
	case "log_retention_count":
		return strconv.Itoa(s.General.LogRetentionCount), nil
	case "history_retention_days":
		return strconv.Itoa(s.General.HistoryRetentionDays), nil
	case "theme":
		return strconv.Itoa(s.General.Theme), nil
	case "default_location":
		return s.General.DefaultLocation, nil
	case "default_audio_only":
		return strconv.FormatBool(s.General.DefaultAudioOnly), nil
	case "host":
		return s.Endpoint.Host, nil
	case "port":
		return strconv.Itoa(s.Endpoint.Port), nil
	case "timeout":
		return s.Endpoint.Timeout.String(), nil
	case "poll_interval":
		return s.Polling.Interval.String(), nil
	case "listen_addr":
		return s.Polling.ListenAddr, nil
	}
	return "", fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(sortedKeys(), ", "))
}

// Set parses value according to the type of key and stores it. The result
// is validated; on error s is left unchanged.
func (s *Settings) Set(key, value string) error {
	next := *s
	value = strings.TrimSpace(value)

	var err error
	switch key {
	case "log_level":
		next.General.LogLevel = strings.ToLower(value)
	case "log_retention_count":
		next.General.LogRetentionCount, err = strconv.Atoi(value)
	case "history_retention_days":
		next.General.HistoryRetentionDays, err = strconv.Atoi(value)
	case "theme":
		next.General.Theme, err = strconv.Atoi(value)
		if err == nil && (next.General.Theme < ThemeAdaptive || next.General.Theme > ThemeDark) {
			err = fmt.Errorf("theme must be 0, 1 or 2")
		}
	case "default_location":
		next.General.DefaultLocation = value
	case "default_audio_only":
		next.General.DefaultAudioOnly, err = strconv.ParseBool(value)
	case "host":
		next.Endpoint.Host = value
		if value != "" {
			_, err = core.NewEndpointConfig(value, next.Endpoint.Port)
		}
	case "port":
		next.Endpoint.Port, err = strconv.Atoi(value)
	case "timeout":
		next.Endpoint.Timeout, err = time.ParseDuration(value)
	case "poll_interval":
		next.Polling.Interval, err = time.ParseDuration(value)
	case "listen_addr":
		next.Polling.ListenAddr = value
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(sortedKeys(), ", "))
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

func sortedKeys() []string {
	keys := Keys()
	sort.Strings(keys)
	return keys
}
