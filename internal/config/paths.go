package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "gdrive-mirror"

// File names inside the application directories.
const (
	configFileName       = "config.toml"
	clientSecretFileName = "client_secret.json"
	tokenFileName        = "token.json"
	historyFileName      = "history.db"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/gdrive-mirror).
// On macOS, uses ~/Library/Application Support/gdrive-mirror.
// Other platforms fall back to ~/.config/gdrive-mirror.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_CONFIG_HOME", home, ".config")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for application
// data (token, history database).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/gdrive-mirror).
// On macOS, config and data share one directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_DATA_HOME", home, ".local", "share")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// xdgDir returns $envVar/gdrive-mirror, or home/fallback.../gdrive-mirror
// when the variable is unset.
func xdgDir(envVar, home string, fallback ...string) string {
	if xdg := os.Getenv(envVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	parts := append([]string{home}, fallback...)
	parts = append(parts, appName)

	return filepath.Join(parts...)
}

// DefaultConfigPath returns the full path to the default config file.
// Used when neither GDRIVE_MIRROR_CONFIG nor --config is specified.
func DefaultConfigPath() string {
	return inDir(DefaultConfigDir(), configFileName)
}

// DefaultClientSecretPath returns where the OAuth client secret downloaded
// from the Google Cloud console is looked for by default.
func DefaultClientSecretPath() string {
	return inDir(DefaultConfigDir(), clientSecretFileName)
}

// DefaultTokenPath returns the default OAuth token file location.
func DefaultTokenPath() string {
	return inDir(DefaultDataDir(), tokenFileName)
}

// DefaultHistoryPath returns the default run history database location.
func DefaultHistoryPath() string {
	return inDir(DefaultDataDir(), historyFileName)
}

func inDir(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}
