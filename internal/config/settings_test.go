package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/surge-downloader/ytdlp-remote/internal/core"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings == nil {
		t.Fatal("DefaultSettings returned nil")
	}

	t.Run("GeneralSettings", func(t *testing.T) {
		if settings.General.LogLevel != "info" {
			t.Errorf("LogLevel should default to info, got: %s", settings.General.LogLevel)
		}
		if settings.General.LogRetentionCount <= 0 {
			t.Errorf("LogRetentionCount should be positive, got: %d", settings.General.LogRetentionCount)
		}
		if settings.General.DefaultAudioOnly {
			t.Error("DefaultAudioOnly should be false by default")
		}
	})

	t.Run("EndpointSettings", func(t *testing.T) {
		if settings.Endpoint.Host != "" {
			t.Errorf("Host should have no default, got: %s", settings.Endpoint.Host)
		}
		if settings.Endpoint.Port != core.DefaultPort {
			t.Errorf("Port should default to %d, got: %d", core.DefaultPort, settings.Endpoint.Port)
		}
		if settings.Endpoint.Timeout <= 0 {
			t.Errorf("Timeout should be positive, got: %v", settings.Endpoint.Timeout)
		}
	})

	t.Run("PollingSettings", func(t *testing.T) {
		if settings.Polling.Interval != 30*time.Second {
			t.Errorf("Interval should default to 30s, got: %v", settings.Polling.Interval)
		}
		if settings.Polling.ListenAddr == "" {
			t.Error("ListenAddr should not be empty")
		}
	})

	if err := settings.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaultSettings_Consistency(t *testing.T) {
	s1 := DefaultSettings()
	s2 := DefaultSettings()

	if s1 == s2 {
		t.Error("DefaultSettings should return new instance each time")
	}
	if *s1 != *s2 {
		t.Error("Default settings should be consistent")
	}
}

func TestGetSettingsPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	path := GetSettingsPath()
	if path != filepath.Join(home, "settings.json") {
		t.Errorf("Settings path should be under %s, got: %s", home, path)
	}
	if !strings.HasPrefix(GetLogsDir(), home) {
		t.Errorf("Logs dir should be under %s, got: %s", home, GetLogsDir())
	}
	if !strings.HasPrefix(GetRuntimeDir(), home) {
		t.Errorf("Runtime dir should be under %s, got: %s", home, GetRuntimeDir())
	}

	if err := EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{GetStateDir(), GetLogsDir(), GetRuntimeDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s should exist: %v", dir, err)
		}
	}
}

func TestSaveAndLoadSettings(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	original := DefaultSettings()
	original.General.LogLevel = "debug"
	original.General.DefaultLocation = "Music"
	original.Endpoint.Host = "nas.local"
	original.Endpoint.Port = 8080
	original.Endpoint.Timeout = 3 * time.Second
	original.Polling.Interval = time.Minute

	if err := SaveSettings(original); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if _, err := os.Stat(GetSettingsPath() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	loaded, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if *loaded != *original {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *loaded, *original)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	settings, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if *settings != *DefaultSettings() {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadSettings_CorruptedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := LoadSettingsFrom(path); err == nil {
		t.Error("Expected error when loading invalid JSON")
	}
}

func TestLoadSettings_PartialJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	partial := `{"endpoint": {"host": "192.168.1.20"}}`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettingsFrom(path)
	if err != nil {
		t.Fatalf("LoadSettingsFrom: %v", err)
	}
	if settings.Endpoint.Host != "192.168.1.20" {
		t.Errorf("Custom field not set: %s", settings.Endpoint.Host)
	}
	if settings.Endpoint.Port != core.DefaultPort {
		t.Errorf("Port should keep its default, got %d", settings.Endpoint.Port)
	}
	if settings.Polling.Interval != 30*time.Second {
		t.Error("Default values should be preserved for missing fields")
	}
}

func TestEndpointConfig(t *testing.T) {
	settings := DefaultSettings()

	_, err := settings.EndpointConfig()
	if !core.IsValidation(err) {
		t.Fatalf("missing host should be a validation error, got %v", err)
	}

	settings.Endpoint.Host = "nas.local"
	ep, err := settings.EndpointConfig()
	if err != nil {
		t.Fatalf("EndpointConfig: %v", err)
	}
	if ep.BaseURL() != "http://nas.local:3000" {
		t.Errorf("BaseURL = %s", ep.BaseURL())
	}
}

func TestSettingsGetSet(t *testing.T) {
	settings := DefaultSettings()

	tests := []struct {
		key, value, want string
		wantErr          bool
	}{
		{key: "host", value: "nas.local", want: "nas.local"},
		{key: "port", value: "8080", want: "8080"},
		{key: "timeout", value: "5s", want: "5s"},
		{key: "poll_interval", value: "1m", want: "1m0s"},
		{key: "default_audio_only", value: "true", want: "true"},
		{key: "log_level", value: "DEBUG", want: "debug"},
		{key: "theme", value: "2", want: "2"},
		{key: "port", value: "70000", wantErr: true},
		{key: "port", value: "abc", wantErr: true},
		{key: "poll_interval", value: "10ms", wantErr: true},
		{key: "host", value: "http://nas.local", wantErr: true},
		{key: "theme", value: "9", wantErr: true},
		{key: "nope", value: "1", wantErr: true},
	}

	for _, tt := range tests {
		before := *settings
		err := settings.Set(tt.key, tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Set(%s, %s) should fail", tt.key, tt.value)
			}
			if *settings != before {
				t.Errorf("Set(%s, %s) changed settings on error", tt.key, tt.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("Set(%s, %s): %v", tt.key, tt.value, err)
			continue
		}
		got, err := settings.Get(tt.key)
		if err != nil || got != tt.want {
			t.Errorf("Get(%s) = %q, %v; want %q", tt.key, got, err, tt.want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvHost:         " 10.0.0.5 ",
		EnvPort:         "3100",
		EnvTimeout:      "2s",
		EnvPollInterval: "15s",
		EnvLogLevel:     "WARN",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	settings := DefaultSettings()
	if err := settings.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if settings.Endpoint.Host != "10.0.0.5" || settings.Endpoint.Port != 3100 {
		t.Errorf("endpoint not overridden: %+v", settings.Endpoint)
	}
	if settings.Endpoint.Timeout != 2*time.Second || settings.Polling.Interval != 15*time.Second {
		t.Error("durations not overridden")
	}
	if settings.General.LogLevel != "warn" {
		t.Errorf("LogLevel = %s", settings.General.LogLevel)
	}

	env[EnvPort] = "lots"
	if err := DefaultSettings().ApplyEnv(lookup); !core.IsValidation(err) {
		t.Errorf("bad port should be a validation error, got %v", err)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("YTDLP_WEBUI_HOST=from-file\nYTDLP_WEBUI_PORT=4000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvHost, "from-env")
	t.Setenv(EnvPort, "")
	os.Unsetenv(EnvPort)

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv(EnvHost); got != "from-env" {
		t.Errorf("existing variable overridden: %s", got)
	}
	if got := os.Getenv(EnvPort); got != "4000" {
		t.Errorf("file variable not loaded: %q", got)
	}
}

func TestGetSettingsMetadata(t *testing.T) {
	metadata := GetSettingsMetadata()

	for _, cat := range CategoryOrder() {
		if _, ok := metadata[cat]; !ok {
			t.Errorf("Missing metadata for category: %s", cat)
		}
	}

	settings := DefaultSettings()
	validTypes := map[string]bool{"string": true, "int": true, "bool": true, "duration": true}
	for category, metas := range metadata {
		for i, setting := range metas {
			if setting.Key == "" || setting.Label == "" || setting.Description == "" {
				t.Errorf("Category %s, index %d: incomplete metadata %+v", category, i, setting)
			}
			if !validTypes[setting.Type] {
				t.Errorf("Category %s, key %s: Invalid type %q", category, setting.Key, setting.Type)
			}
			if _, err := settings.Get(setting.Key); err != nil {
				t.Errorf("key %s has metadata but no getter: %v", setting.Key, err)
			}
		}
	}
}

func TestSettingsJSON_Keys(t *testing.T) {
	data, err := json.Marshal(DefaultSettings())
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	for _, key := range []string{`"general"`, `"endpoint"`, `"polling"`, `"log_retention_count"`, `"listen_addr"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("serialized settings missing %s", key)
		}
	}
}
