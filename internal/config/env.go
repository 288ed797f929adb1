package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/surge-downloader/ytdlp-remote/internal/core"
)

// Environment overrides.
const (
	EnvHost         = "YTDLP_WEBUI_HOST"
	EnvPort         = "YTDLP_WEBUI_PORT"
	EnvTimeout      = "YTDLP_WEBUI_TIMEOUT"
	EnvPollInterval = "YTDLP_REMOTE_POLL_INTERVAL"
	EnvLogLevel     = "LOG_LEVEL"
)

// LoadEnvFiles loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables already set. Missing files are
// skipped; with no arguments ".env" in the working directory is tried.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment overrides on s. lookup is usually os.LookupEnv.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvHost); ok && strings.TrimSpace(v) != "" {
		s.Endpoint.Host = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return core.NewValidationError("port", fmt.Sprintf("%s=%q is not a number", EnvPort, v))
		}
		s.Endpoint.Port = port
	}
	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return core.NewValidationError("timeout", fmt.Sprintf("%s=%q: %v", EnvTimeout, v, err))
		}
		s.Endpoint.Timeout = d
	}
	if v, ok := lookup(EnvPollInterval); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return core.NewValidationError("poll_interval", fmt.Sprintf("%s=%q: %v", EnvPollInterval, v, err))
		}
		s.Polling.Interval = d
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		s.General.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	return s.Validate()
}
