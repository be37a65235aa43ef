package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"time"

	"github.com/tonimelisma/gdrive-mirror/internal/mirror"
)

// Validation range constants.
const (
	minWorkers     = 1
	maxWorkers     = 64
	minTimeout     = 1 * time.Second
	octalBase      = 8
	minOctalDigits = 3
	maxOctalDigits = 4
	maxOctalValue  = 0o777
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateMirror(&cfg.Mirror)...)
	errs = append(errs, validateExports(cfg.Exports)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateMirror(m *MirrorConfig) []error {
	var errs []error

	if m.ParallelDownloads < minWorkers || m.ParallelDownloads > maxWorkers {
		errs = append(errs, fmt.Errorf("parallel_downloads: must be between %d and %d, got %d",
			minWorkers, maxWorkers, m.ParallelDownloads))
	}

	if m.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth: must be >= 0 (0 = unlimited), got %d", m.MaxDepth))
	}

	if _, err := parsePermissions(m.DirPermissions); err != nil {
		errs = append(errs, fmt.Errorf("dir_permissions: %w", err))
	}

	if _, err := parsePermissions(m.FilePermissions); err != nil {
		errs = append(errs, fmt.Errorf("file_permissions: %w", err))
	}

	return errs
}

func validateExports(exports map[string]string) []error {
	var errs []error

	kinds := make([]string, 0, len(exports))
	for k := range exports {
		kinds = append(kinds, k)
	}

	// Sorted so the joined error reads the same on every run.
	slices.Sort(kinds)

	for _, kind := range kinds {
		if err := mirror.ValidateExportOverride(kind, exports[kind]); err != nil {
			errs = append(errs, fmt.Errorf("exports.%s: %w", kind, err))
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !slices.Contains(validLogLevels, l.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level: must be one of %v, got %q", validLogLevels, l.LogLevel))
	}

	if !slices.Contains(validLogFormats, l.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format: must be one of %v, got %q", validLogFormats, l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("timeout: invalid duration %q: %w", n.Timeout, err))
	} else if d < minTimeout {
		errs = append(errs, fmt.Errorf("timeout: must be at least %s, got %s", minTimeout, d))
	}

	if _, err := parseBandwidth(n.BandwidthLimit); err != nil {
		errs = append(errs, fmt.Errorf("bandwidth_limit: %w", err))
	}

	return errs
}

// parsePermissions parses a 3- or 4-digit octal permission string such as
// "0755".
func parsePermissions(s string) (fs.FileMode, error) {
	if len(s) < minOctalDigits || len(s) > maxOctalDigits {
		return 0, fmt.Errorf("must be a 3 or 4 digit octal value, got %q", s)
	}

	v, err := strconv.ParseUint(s, octalBase, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal value %q", s)
	}

	if v > maxOctalValue {
		return 0, fmt.Errorf("value %q exceeds 0777", s)
	}

	return fs.FileMode(v), nil
}
