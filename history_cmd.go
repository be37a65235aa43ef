package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-mirror/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent backup runs",
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", history.DefaultListLimit, "maximum number of runs to show")

	return cmd
}

// historyRunOutput is one element of `history --json`.
type historyRunOutput struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Trashed     bool   `json:"trashed"`
	DryRun      bool   `json:"dry_run"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	Status      string `json:"status"`
	Folders     int    `json:"folders"`
	Fetched     int    `json:"fetched"`
	Skipped     int    `json:"skipped"`
	Warnings    int    `json:"warnings"`
	Bytes       int64  `json:"bytes_written"`
	Error       string `json:"error,omitempty"`
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if !resolvedCfg.History.Enabled {
		return fmt.Errorf("run history is disabled in %s", resolvedCfg.ConfigPath)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	logger := buildLogger()

	store, err := history.Open(cmd.Context(), resolvedCfg.History.Path, backupClock, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		out := make([]historyRunOutput, 0, len(runs))
		for i := range runs {
			out = append(out, newHistoryRunOutput(&runs[i]))
		}

		return printJSON(cmd.OutOrStdout(), out)
	}

	if len(runs) == 0 {
		statusf("No runs recorded.\n")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for i := range runs {
		r := &runs[i]
		rows = append(rows, []string{
			formatTime(r.StartedAt.Local()),
			runMode(r),
			r.Status,
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Warnings),
			formatSize(r.Bytes),
			formatDuration(r.Duration()),
			r.Destination,
		})
	}

	printTable(cmd.OutOrStdout(),
		[]string{"STARTED", "MODE", "STATUS", "FETCHED", "SKIPPED", "WARNINGS", "WRITTEN", "DURATION", "DESTINATION"},
		rows)

	return nil
}

func runMode(r *history.Run) string {
	mode := "live"
	if r.Trashed {
		mode = "trash"
	}

	if r.DryRun {
		mode += ",dry-run"
	}

	return mode
}

func newHistoryRunOutput(r *history.Run) historyRunOutput {
	out := historyRunOutput{
		ID:          r.ID,
		Destination: r.Destination,
		Trashed:     r.Trashed,
		DryRun:      r.DryRun,
		StartedAt:   r.StartedAt.UTC().Format(time.RFC3339),
		Status:      r.Status,
		Folders:     r.Folders,
		Fetched:     r.Fetched,
		Skipped:     r.Skipped,
		Warnings:    r.Warnings,
		Bytes:       r.Bytes,
		Error:       r.Error,
	}

	if !r.FinishedAt.IsZero() {
		out.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}

	return out
}
