package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-mirror/internal/config"
	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
	"github.com/tonimelisma/gdrive-mirror/internal/history"
	"github.com/tonimelisma/gdrive-mirror/internal/metrics"
	"github.com/tonimelisma/gdrive-mirror/internal/mirror"
)

// backupCmdName is checked by loadConfig to bind the positional destination.
const backupCmdName = "backup"

// backupClock stamps history rows. Tests replace it with a fake clock.
var backupClock = clockwork.NewRealClock()

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   backupCmdName + " [destination]",
		Short: "Mirror the Drive into a local directory",
		Long: `Walk the whole Drive and bring the destination up to date.

Native documents are exported (docx, xlsx, svg, pptx, json by default) and
rewritten when the remote copy is newer. Binary files are downloaded when
their content hash differs from the local copy. Nothing is ever deleted.

With --trashed, the trash is mirrored instead of the live Drive.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBackup,
	}

	cmd.Flags().Bool("force-docs", false, "re-export every native document")
	cmd.Flags().Bool("force-files", false, "re-download every binary file")
	cmd.Flags().Bool("trashed", false, "mirror trashed items instead of the live Drive")
	cmd.Flags().Bool("dry-run", false, "report what would be fetched without writing")
	cmd.Flags().Int("workers", 0, "number of concurrent downloads (default from config)")
	cmd.Flags().Int("max-depth", 0, "descend at most this many folder levels (0 = unlimited)")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	cmd.Flags().String("bandwidth-limit", "", "cap download throughput, e.g. 5MB/s (0 = unlimited)")

	return cmd
}

// backupOutput is the JSON schema for `backup --json`.
type backupOutput struct {
	Destination  string          `json:"destination"`
	DryRun       bool            `json:"dry_run"`
	Trashed      bool            `json:"trashed"`
	Folders      int             `json:"folders"`
	Fetched      int             `json:"fetched"`
	Skipped      int             `json:"skipped"`
	Unsupported  int             `json:"unsupported"`
	Collisions   int             `json:"collisions"`
	DepthLimited int             `json:"depth_limited"`
	BytesWritten int64           `json:"bytes_written"`
	DurationMs   int64           `json:"duration_ms"`
	Warnings     []warningOutput `json:"warnings"`
	Error        string          `json:"error,omitempty"`
}

type warningOutput struct {
	Kind     string `json:"kind"`
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Path     string `json:"path"`
	Detail   string `json:"detail,omitempty"`
}

func runBackup(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg

	if cfg.Destination == "" {
		return errors.New("no destination: pass it as an argument, set GDRIVE_MIRROR_DESTINATION, " +
			"or set destination in the config file")
	}

	ctx := shutdownContext(cmd.Context(), logger)

	release, err := acquireLock(lockPathFor(config.DefaultDataDir(), cfg.Destination))
	if err != nil {
		return err
	}
	defer release()

	client, err := newDriveClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	exports, err := cfg.ExportTable()
	if err != nil {
		return err
	}

	sc := cfg.SyncConfig()
	collector := metrics.New()

	walker, err := mirror.NewWalker(mirror.WalkerConfig{
		Remote:  client,
		FS:      afero.NewOsFs(),
		Exports: exports,
		Observer: mirror.MultiObserver{
			mirror.LogObserver{Logger: logger},
			newProgressObserver(os.Stderr, os.Stderr.Fd()),
			collector,
		},
		Logger:    logger,
		Sync:      sc,
		DirPerm:   cfg.DirPerm,
		FilePerm:  cfg.FilePerm,
		Bandwidth: mirror.NewBandwidthLimiter(cfg.Bandwidth, logger),
	})
	if err != nil {
		return err
	}

	store, run := beginHistory(ctx, cfg, sc, logger)
	if store != nil {
		defer store.Close()
	}

	logger.Info("backup started",
		slog.String("destination", sc.Destination),
		slog.Bool("trashed", sc.IncludeTrashed),
		slog.Bool("dry_run", sc.DryRun),
		slog.Int("workers", sc.Workers),
	)

	report, runErr := walker.Run(ctx)

	finishHistory(store, run, report, runErr, logger)
	writeMetrics(collector, cfg.Metrics.Textfile, report, runErr, logger)

	logger.Info("backup finished",
		slog.Int("fetched", report.Fetched),
		slog.Int("skipped", report.Skipped),
		slog.Int("warnings", len(report.Warnings)),
		slog.Duration("duration", report.Duration()),
	)

	if flagJSON {
		if err := printJSON(cmd.OutOrStdout(), newBackupOutput(sc, report, runErr)); err != nil {
			return err
		}
	} else {
		printBackupSummary(sc, report)
	}

	return runErr
}

// newDriveClient builds an authenticated Drive client from the saved token.
func newDriveClient(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*gdrive.Client, error) {
	creds, err := gdrive.LoadCredentials(cfg.ClientSecretFile)
	if err != nil {
		return nil, err
	}

	ts, err := gdrive.TokenSourceFromPath(ctx, creds, cfg.TokenFile, logger)
	if err != nil {
		if errors.Is(err, gdrive.ErrNotLoggedIn) {
			return nil, errors.New("not logged in, run 'gdrive-mirror login' first")
		}

		return nil, err
	}

	return gdrive.NewClient(driveBaseURL, newHTTPClient(cfg.Timeout), ts, logger, cfg.Network.UserAgent), nil
}

// beginHistory opens the history database and records the run start.
// History is bookkeeping: failures are logged and the backup proceeds
// without it.
func beginHistory(
	ctx context.Context, cfg *config.Resolved, sc mirror.SyncConfig, logger *slog.Logger,
) (*history.Store, *history.Run) {
	if !cfg.History.Enabled {
		return nil, nil
	}

	store, err := history.Open(ctx, cfg.History.Path, backupClock, logger)
	if err != nil {
		logger.Warn("run history unavailable", slog.String("error", err.Error()))
		return nil, nil
	}

	run, err := store.Begin(ctx, sc)
	if err != nil {
		logger.Warn("recording run start failed", slog.String("error", err.Error()))
		store.Close()

		return nil, nil
	}

	return store, run
}

func finishHistory(store *history.Store, run *history.Run, report *mirror.Report, runErr error, logger *slog.Logger) {
	if store == nil || run == nil {
		return
	}

	// The run context may already be canceled; the row must still be closed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Finish(ctx, run, report, runErr); err != nil {
		logger.Warn("recording run result failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

func writeMetrics(collector *metrics.Collector, path string, report *mirror.Report, runErr error, logger *slog.Logger) {
	if path == "" {
		return
	}

	collector.Finish(report.Duration(), report.Finished, runErr)

	if err := collector.WriteTextfile(path); err != nil {
		logger.Warn("writing metrics textfile failed", slog.String("error", err.Error()))
		return
	}

	logger.Debug("metrics written", slog.String("path", path))
}

func newBackupOutput(sc mirror.SyncConfig, report *mirror.Report, runErr error) backupOutput {
	out := backupOutput{
		Destination:  sc.Destination,
		DryRun:       sc.DryRun,
		Trashed:      sc.IncludeTrashed,
		Folders:      report.Folders,
		Fetched:      report.Fetched,
		Skipped:      report.Skipped,
		Unsupported:  report.Unsupported,
		Collisions:   report.Collisions,
		DepthLimited: report.DepthLimited,
		BytesWritten: report.BytesWritten,
		DurationMs:   report.Duration().Milliseconds(),
		Warnings:     make([]warningOutput, 0, len(report.Warnings)),
	}

	for _, w := range report.Warnings {
		out.Warnings = append(out.Warnings, warningOutput{
			Kind:     w.Kind.String(),
			ItemID:   w.ItemID,
			Name:     w.Name,
			MimeType: w.MimeType,
			Path:     w.Path,
			Detail:   w.Detail,
		})
	}

	if runErr != nil {
		out.Error = runErr.Error()
	}

	return out
}

func printBackupSummary(sc mirror.SyncConfig, report *mirror.Report) {
	verb := "Fetched"
	if sc.DryRun {
		verb = "Would fetch"
	}

	statusf("%s %d, skipped %d, %d folders, %s written in %s.\n",
		verb, report.Fetched, report.Skipped, report.Folders,
		formatSize(report.BytesWritten), formatDuration(report.Duration()))

	if n := len(report.Warnings); n > 0 {
		statusf("%d warnings (%d unsupported, %d name collisions, %d beyond max depth).\n",
			n, report.Unsupported, report.Collisions, report.DepthLimited)
	}
}

