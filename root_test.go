package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/gdrive-mirror/internal/config"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests must either:
//   - Set globals AFTER newRootCmd() returns (direct function tests), or
//   - Use cmd.SetArgs() + cmd.Execute() to let Cobra parse flags (integration tests).
//
// Setting a global before newRootCmd() and expecting it to survive is a bug.

// saveGlobals restores every package-level flag and the resolved config when
// the test ends.
func saveGlobals(t *testing.T) {
	t.Helper()

	oldVerbose, oldQuiet, oldJSON := flagVerbose, flagQuiet, flagJSON
	oldCfg, oldBase := resolvedCfg, driveBaseURL

	t.Cleanup(func() {
		flagVerbose, flagQuiet, flagJSON = oldVerbose, oldQuiet, oldJSON
		resolvedCfg, driveBaseURL = oldCfg, oldBase
	})
}

func TestNewLogger_Default(t *testing.T) {
	saveGlobals(t)

	flagVerbose, flagQuiet, resolvedCfg = false, false, nil

	logger := newLogger(&bytes.Buffer{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_VerboseAndQuiet(t *testing.T) {
	saveGlobals(t)

	resolvedCfg = nil

	flagVerbose, flagQuiet = true, false
	assert.True(t, newLogger(&bytes.Buffer{}).Handler().Enabled(context.Background(), slog.LevelDebug))

	flagVerbose, flagQuiet = false, true
	logger := newLogger(&bytes.Buffer{})
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
}

func TestNewLogger_ConfigLevelAndFormat(t *testing.T) {
	saveGlobals(t)

	flagVerbose, flagQuiet = false, false
	resolvedCfg = &config.Resolved{Config: *config.DefaultConfig()}
	resolvedCfg.Logging.LogLevel = "warn"
	resolvedCfg.Logging.LogFormat = "json"

	var buf bytes.Buffer

	logger := newLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	saveGlobals(t)

	cmd := newRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"backup", "login", "logout", "whoami", "history", "exports", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	saveGlobals(t)
	isolateHome(t)

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.toml", `
destination = "/from/file"

[mirror]
parallel_downloads = 2
dry_run = true
`)

	cmd := newRootCmd()
	backup, _, err := cmd.Find([]string{"backup"})
	require.NoError(t, err)

	require.NoError(t, cmd.PersistentFlags().Set("config", cfgPath))
	require.NoError(t, backup.Flags().Set("workers", "7"))
	require.NoError(t, backup.Flags().Set("dry-run", "false"))

	require.NoError(t, loadConfig(backup, []string{filepath.Join(dir, "dst")}))

	assert.Equal(t, cfgPath, resolvedCfg.ConfigPath)
	assert.Equal(t, filepath.Join(dir, "dst"), resolvedCfg.Destination)
	assert.Equal(t, 7, resolvedCfg.Mirror.ParallelDownloads)
	assert.False(t, resolvedCfg.Mirror.DryRun, "--dry-run=false beats the file")
	assert.False(t, resolvedCfg.Mirror.ForceDocs, "unset flags leave file values alone")
}

func TestLoadConfig_InvalidFileFails(t *testing.T) {
	saveGlobals(t)
	isolateHome(t)

	cfgPath := writeFile(t, t.TempDir(), "config.toml", "[mirror]\nparalel_downloads = 2\n")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "exports"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean")
}
