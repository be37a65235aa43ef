package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func ptr[T any](v T) *T {
	return &v
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
destination = "/srv/backup/drive"
client_secret_file = "/etc/gdrive-mirror/client_secret.json"
token_file = "/var/lib/gdrive-mirror/token.json"

[mirror]
force_docs = true
force_files = true
include_trashed = true
parallel_downloads = 8
max_depth = 3
dry_run = true
dir_permissions = "0700"
file_permissions = "0600"

[exports]
document = "pdf"
spreadsheet = "ods"

[logging]
log_level = "debug"
log_format = "json"

[network]
timeout = "2m"
user_agent = "backup-host/1.0"

[history]
enabled = false
path = "/var/lib/gdrive-mirror/runs.db"

[metrics]
textfile = "/var/lib/node_exporter/gdrive.prom"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/backup/drive", cfg.Destination)
	assert.Equal(t, "/etc/gdrive-mirror/client_secret.json", cfg.ClientSecretFile)
	assert.Equal(t, "/var/lib/gdrive-mirror/token.json", cfg.TokenFile)
	assert.Equal(t, MirrorConfig{
		ForceDocs:         true,
		ForceFiles:        true,
		IncludeTrashed:    true,
		ParallelDownloads: 8,
		MaxDepth:          3,
		DryRun:            true,
		DirPermissions:    "0700",
		FilePermissions:   "0600",
	}, cfg.Mirror)
	assert.Equal(t, map[string]string{"document": "pdf", "spreadsheet": "ods"}, cfg.Exports)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
	assert.Equal(t, "2m", cfg.Network.Timeout)
	assert.Equal(t, "backup-host/1.0", cfg.Network.UserAgent)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "/var/lib/gdrive-mirror/runs.db", cfg.History.Path)
	assert.Equal(t, "/var/lib/node_exporter/gdrive.prom", cfg.Metrics.Textfile)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[mirror]
force_docs = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Mirror.ForceDocs)
	assert.Equal(t, defaultParallelDownloads, cfg.Mirror.ParallelDownloads)
	assert.Equal(t, defaultDirPermissions, cfg.Mirror.DirPermissions)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
	assert.True(t, cfg.History.Enabled)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "destination = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationErrorsAreJoined(t *testing.T) {
	path := writeTestConfig(t, `
[mirror]
parallel_downloads = 0
max_depth = -1

[logging]
log_level = "loud"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel_downloads")
	assert.Contains(t, err.Error(), "max_depth")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoad_InvalidExportOverride(t *testing.T) {
	path := writeTestConfig(t, `
[exports]
drawing = "docx"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exports.drawing")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_Precedence(t *testing.T) {
	path := writeTestConfig(t, `
destination = "/from/file"
client_secret_file = "/file/secret.json"

[mirror]
dry_run = true
parallel_downloads = 2
`)

	// File only.
	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "/from/file", r.Destination)
	assert.Equal(t, "/file/secret.json", r.ClientSecretFile)
	assert.True(t, r.Mirror.DryRun)
	assert.Equal(t, path, r.ConfigPath)

	// Env beats file.
	r, err = Resolve(EnvOverrides{ConfigPath: path, Destination: "/from/env", ClientSecretFile: "/env/secret.json"}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "/from/env", r.Destination)
	assert.Equal(t, "/env/secret.json", r.ClientSecretFile)

	// CLI beats env, and an explicit false beats the file's true.
	r, err = Resolve(
		EnvOverrides{ConfigPath: path, Destination: "/from/env"},
		CLIOverrides{Destination: ptr("/from/cli"), DryRun: ptr(false), Workers: ptr(6), ForceDocs: ptr(true)},
	)
	require.NoError(t, err)
	assert.Equal(t, "/from/cli", r.Destination)
	assert.False(t, r.Mirror.DryRun)
	assert.Equal(t, 6, r.Mirror.ParallelDownloads)

	sc := r.SyncConfig()
	assert.Equal(t, "/from/cli", sc.Destination)
	assert.Equal(t, 6, sc.Workers)
	assert.True(t, sc.ForceDocs)
}

func TestResolve_CLIConfigPathBeatsEnv(t *testing.T) {
	envPath := writeTestConfig(t, `destination = "/env/file"`)
	cliPath := writeTestConfig(t, `destination = "/cli/file"`)

	r, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, "/cli/file", r.Destination)
}

func TestResolve_ParsedValues(t *testing.T) {
	path := writeTestConfig(t, `
[mirror]
dir_permissions = "0750"
file_permissions = "640"

[network]
timeout = "90s"
`)

	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o750), r.DirPerm)
	assert.Equal(t, fs.FileMode(0o640), r.FilePerm)
	assert.Equal(t, 90*time.Second, r.Timeout)
}

func TestResolve_BandwidthLimit(t *testing.T) {
	path := writeTestConfig(t, "[network]\nbandwidth_limit = \"2MB/s\"\n")

	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), r.Bandwidth)

	r, err = Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{BandwidthLimit: ptr("0")})
	require.NoError(t, err)
	assert.Zero(t, r.Bandwidth, "--bandwidth-limit 0 lifts the configured limit")

	r, err = Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{MaxDepth: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Mirror.MaxDepth)
}

func TestResolve_ExpandsPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := writeTestConfig(t, `
destination = "~/DriveBackup"
token_file = "~/.tok.json"
`)

	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{MetricsFile: ptr("~/m.prom")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "DriveBackup"), r.Destination)
	assert.Equal(t, filepath.Join(home, ".tok.json"), r.TokenFile)
	assert.Equal(t, filepath.Join(home, "m.prom"), r.Metrics.Textfile)
}

func TestResolve_RelativeDestinationBecomesAbsolute(t *testing.T) {
	path := writeTestConfig(t, "")

	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{Destination: ptr("backup")})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(r.Destination))
	assert.Equal(t, "backup", filepath.Base(r.Destination))
}

func TestResolve_DefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	path := writeTestConfig(t, "")

	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)

	if DefaultConfigDir() == filepath.Join("/xdg/config", appName) {
		assert.Equal(t, "/xdg/config/gdrive-mirror/client_secret.json", r.ClientSecretFile)
		assert.Equal(t, "/xdg/data/gdrive-mirror/token.json", r.TokenFile)
		assert.Equal(t, "/xdg/data/gdrive-mirror/history.db", r.History.Path)
	}
}

func TestResolve_InvalidCLIWorkers(t *testing.T) {
	path := writeTestConfig(t, "")

	_, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{Workers: ptr(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel_downloads")
}

func TestResolved_ExportTable(t *testing.T) {
	path := writeTestConfig(t, `
[exports]
presentation = "pdf"
`)

	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)

	table, err := r.ExportTable()
	require.NoError(t, err)

	e, ok := table.Lookup("application/vnd.google-apps.presentation")
	require.True(t, ok)
	assert.Equal(t, "pdf", e.Extension)
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfig, "/env/config.toml")
	t.Setenv(EnvDestination, "/env/dst")
	t.Setenv(EnvCredentials, "/env/secret.json")

	assert.Equal(t, EnvOverrides{
		ConfigPath:       "/env/config.toml",
		Destination:      "/env/dst",
		ClientSecretFile: "/env/secret.json",
	}, ReadEnvOverrides())
}
