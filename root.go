package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-mirror/internal/config"
	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath  string
	flagCredentials string
	flagJSON        bool
	flagVerbose     bool
	flagQuiet       bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Resolved

// driveBaseURL is the Drive API endpoint. Tests point it at an httptest server.
var driveBaseURL = gdrive.DefaultBaseURL

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gdrive-mirror",
		Short:   "One-way Google Drive backup",
		Long:    "Mirror a Google Drive onto a local directory, incrementally and idempotently.",
		Version: version,
		// Errors are printed by main; usage only on flag errors.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, args)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagCredentials, "credentials", "", "OAuth client secret JSON file")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newExportsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg. Only flags the user
// explicitly set take part, so config file values are not clobbered by flag
// defaults.
func loadConfig(cmd *cobra.Command, args []string) error {
	cli := config.CLIOverrides{
		ConfigPath:       flagConfigPath,
		ClientSecretFile: changedString(cmd, "credentials"),
		ForceDocs:        changedBool(cmd, "force-docs"),
		ForceFiles:       changedBool(cmd, "force-files"),
		IncludeTrashed:   changedBool(cmd, "trashed"),
		DryRun:           changedBool(cmd, "dry-run"),
		Workers:          changedInt(cmd, "workers"),
		MaxDepth:         changedInt(cmd, "max-depth"),
		MetricsFile:      changedString(cmd, "metrics-file"),
		BandwidthLimit:   changedString(cmd, "bandwidth-limit"),
	}

	if cmd.Name() == backupCmdName && len(args) == 1 {
		cli.Destination = &args[0]
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

func changedString(cmd *cobra.Command, name string) *string {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v := f.Value.String()
		return &v
	}

	return nil
}

func changedBool(cmd *cobra.Command, name string) *bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v, err := cmd.Flags().GetBool(name)
		if err == nil {
			return &v
		}
	}

	return nil
}

func changedInt(cmd *cobra.Command, name string) *int {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v, err := cmd.Flags().GetInt(name)
		if err == nil {
			return &v
		}
	}

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it.
func buildLogger() *slog.Logger {
	return newLogger(os.Stderr)
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	format := "auto"

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = resolvedCfg.Logging.LogFormat
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// newHTTPClient returns an HTTP client whose timeout bounds waiting for
// response headers. The body of a large download may take longer.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{Transport: transport}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
