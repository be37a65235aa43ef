package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"

	"github.com/tonimelisma/gdrive-mirror/internal/mirror"
)

// Resolved is the effective configuration after every override layer has
// been applied, with paths expanded and string settings parsed.
type Resolved struct {
	Config

	ConfigPath string // file the values were read from; may not exist
	DirPerm    fs.FileMode
	FilePerm   fs.FileMode
	Timeout    time.Duration
	Bandwidth  int64 // bytes per second, 0 = unlimited
}

// SyncConfig returns the walker settings for a run.
func (r *Resolved) SyncConfig() mirror.SyncConfig {
	return mirror.SyncConfig{
		Destination:    r.Destination,
		ForceDocs:      r.Mirror.ForceDocs,
		ForceFiles:     r.Mirror.ForceFiles,
		IncludeTrashed: r.Mirror.IncludeTrashed,
		Workers:        r.Mirror.ParallelDownloads,
		MaxDepth:       r.Mirror.MaxDepth,
		DryRun:         r.Mirror.DryRun,
	}
}

// ExportTable builds the export table with the configured overrides.
func (r *Resolved) ExportTable() (*mirror.ExportTable, error) {
	return mirror.NewExportTable(r.Exports)
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Config file (defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Environment
	applyEnv(cfg, env)

	// 4. CLI flags (nil = not specified)
	applyCLI(cfg, cli)

	// 5. Platform defaults for unset paths, then ~ expansion.
	fillDefaultPaths(cfg)

	if err := expandPaths(cfg); err != nil {
		return nil, err
	}

	resolved := &Resolved{Config: *cfg, ConfigPath: cfgPath}

	if err := finish(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

func applyEnv(cfg *Config, env EnvOverrides) {
	if env.Destination != "" {
		cfg.Destination = env.Destination
	}

	if env.ClientSecretFile != "" {
		cfg.ClientSecretFile = env.ClientSecretFile
	}
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	setIf(&cfg.Destination, cli.Destination)
	setIf(&cfg.ClientSecretFile, cli.ClientSecretFile)
	setIf(&cfg.Mirror.ForceDocs, cli.ForceDocs)
	setIf(&cfg.Mirror.ForceFiles, cli.ForceFiles)
	setIf(&cfg.Mirror.IncludeTrashed, cli.IncludeTrashed)
	setIf(&cfg.Mirror.DryRun, cli.DryRun)
	setIf(&cfg.Mirror.ParallelDownloads, cli.Workers)
	setIf(&cfg.Mirror.MaxDepth, cli.MaxDepth)
	setIf(&cfg.Metrics.Textfile, cli.MetricsFile)
	setIf(&cfg.Network.BandwidthLimit, cli.BandwidthLimit)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func fillDefaultPaths(cfg *Config) {
	if cfg.ClientSecretFile == "" {
		cfg.ClientSecretFile = DefaultClientSecretPath()
	}

	if cfg.TokenFile == "" {
		cfg.TokenFile = DefaultTokenPath()
	}

	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath()
	}
}

// expandPaths expands a leading ~ in every path setting and makes the
// destination absolute, so the lock file and log lines name one place
// regardless of the working directory.
func expandPaths(cfg *Config) error {
	for _, p := range []*string{
		&cfg.Destination, &cfg.ClientSecretFile, &cfg.TokenFile,
		&cfg.History.Path, &cfg.Metrics.Textfile,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}

		*p = expanded
	}

	if cfg.Destination != "" && !filepath.IsAbs(cfg.Destination) {
		abs, err := filepath.Abs(cfg.Destination)
		if err != nil {
			return fmt.Errorf("resolving destination %q: %w", cfg.Destination, err)
		}

		cfg.Destination = abs
	}

	return nil
}

// finish validates the merged values and stores their parsed forms.
func finish(r *Resolved) error {
	if err := Validate(&r.Config); err != nil {
		return err
	}

	// Validate has already checked these parse.
	r.DirPerm, _ = parsePermissions(r.Mirror.DirPermissions)
	r.FilePerm, _ = parsePermissions(r.Mirror.FilePermissions)
	r.Timeout, _ = time.ParseDuration(r.Network.Timeout)
	r.Bandwidth, _ = parseBandwidth(r.Network.BandwidthLimit)

	return nil
}
