package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the per-user directories.
const AppName = "ytdlp-remote"

// HomeEnv relocates every directory below one root when set.
const HomeEnv = "YTDLP_REMOTE_HOME"

// GetConfigDir returns the directory holding settings.json.
func GetConfigDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// GetStateDir returns the directory for persistent state such as history.
func GetStateDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, "state")
	}
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", AppName)
	}
	return filepath.Join(GetConfigDir(), "state")
}

// GetLogsDir returns the directory log files are written to.
func GetLogsDir() string {
	return filepath.Join(GetStateDir(), "logs")
}

// GetRuntimeDir returns the directory for the daemon's lock, pid and port files.
func GetRuntimeDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", AppName, os.Getuid()))
}

// EnsureDirs creates the state, logs and runtime directories.
func EnsureDirs() error {
	for _, dir := range []string{GetConfigDir(), GetStateDir(), GetLogsDir(), GetRuntimeDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
