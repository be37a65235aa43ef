// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for gdrive-mirror. It supports a
// four-layer override chain: defaults -> config file -> environment -> CLI
// flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Destination      string            `toml:"destination"`
	ClientSecretFile string            `toml:"client_secret_file"`
	TokenFile        string            `toml:"token_file"`
	Mirror           MirrorConfig      `toml:"mirror"`
	Exports          map[string]string `toml:"exports"`
	Logging          LoggingConfig     `toml:"logging"`
	Network          NetworkConfig     `toml:"network"`
	History          HistoryConfig     `toml:"history"`
	Metrics          MetricsConfig     `toml:"metrics"`
}

// MirrorConfig controls how the tree walker decides and writes.
type MirrorConfig struct {
	ForceDocs         bool   `toml:"force_docs"`
	ForceFiles        bool   `toml:"force_files"`
	IncludeTrashed    bool   `toml:"include_trashed"`
	ParallelDownloads int    `toml:"parallel_downloads"`
	MaxDepth          int    `toml:"max_depth"`
	DryRun            bool   `toml:"dry_run"`
	DirPermissions    string `toml:"dir_permissions"`
	FilePermissions   string `toml:"file_permissions"`
}

// LoggingConfig controls log output: level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	Timeout        string `toml:"timeout"`
	UserAgent      string `toml:"user_agent"`
	BandwidthLimit string `toml:"bandwidth_limit"` // e.g. "5MB/s"; "0" = unlimited
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
// An empty Textfile disables it.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value": --dry-run=false must override a
// config file that sets dry_run = true.
type CLIOverrides struct {
	ConfigPath       string  // --config flag (empty = use default)
	Destination      *string // positional destination argument
	ClientSecretFile *string // --credentials
	ForceDocs        *bool   // --force-docs
	ForceFiles       *bool   // --force-files
	IncludeTrashed   *bool   // --trashed
	DryRun           *bool   // --dry-run
	Workers          *int    // --workers
	MaxDepth         *int    // --max-depth
	MetricsFile      *string // --metrics-file
	BandwidthLimit   *string // --bandwidth-limit
}
