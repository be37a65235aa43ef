package config

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file.
const (
	defaultParallelDownloads = 4
	defaultDirPermissions    = "0755"
	defaultFilePermissions   = "0644"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultTimeout           = "60s"
	defaultHistoryEnabled    = true
)

// DefaultConfig returns a Config populated with all default values.
// It is both the starting point for TOML decoding (so unset fields keep
// their defaults) and the fallback when no config file exists. Path fields
// stay empty here and are filled from the platform directories by Resolve.
func DefaultConfig() *Config {
	return &Config{
		Mirror:  defaultMirrorConfig(),
		Exports: make(map[string]string),
		Logging: defaultLoggingConfig(),
		Network: defaultNetworkConfig(),
		History: HistoryConfig{Enabled: defaultHistoryEnabled},
	}
}

func defaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		ParallelDownloads: defaultParallelDownloads,
		DirPermissions:    defaultDirPermissions,
		FilePermissions:   defaultFilePermissions,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Timeout: defaultTimeout,
	}
}
