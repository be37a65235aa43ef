package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
)

// openBrowser launches the system browser. Tests replace it.
var openBrowser = func(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize read-only access to Google Drive in the browser",
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved authentication token",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated user and storage quota",
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	creds, err := gdrive.LoadCredentials(resolvedCfg.ClientSecretFile)
	if err != nil {
		return err
	}

	logger.Info("login started", "token_path", resolvedCfg.TokenFile)

	if _, err := gdrive.LoginWithBrowser(cmd.Context(), creds, resolvedCfg.TokenFile, openBrowser, logger); err != nil {
		return err
	}

	logger.Info("login successful", "token_path", resolvedCfg.TokenFile)
	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := gdrive.Logout(resolvedCfg.TokenFile, logger); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	QuotaUsed   int64  `json:"quota_used"`
	QuotaTotal  int64  `json:"quota_total"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	creds, err := gdrive.LoadCredentials(resolvedCfg.ClientSecretFile)
	if err != nil {
		return err
	}

	ts, err := gdrive.TokenSourceFromPath(ctx, creds, resolvedCfg.TokenFile, logger)
	if err != nil {
		if errors.Is(err, gdrive.ErrNotLoggedIn) {
			return errors.New("not logged in, run 'gdrive-mirror login' first")
		}

		return err
	}

	client := gdrive.NewClient(driveBaseURL, newHTTPClient(resolvedCfg.Timeout), ts, logger, resolvedCfg.Network.UserAgent)

	about, err := client.About(ctx)
	if err != nil {
		return fmt.Errorf("fetching account info: %w", err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), whoamiOutput{
			DisplayName: about.DisplayName,
			Email:       about.EmailAddress,
			QuotaUsed:   about.QuotaUsage,
			QuotaTotal:  about.QuotaLimit,
		})
	}

	printWhoamiText(cmd.OutOrStdout(), about)

	return nil
}

func printWhoamiText(w io.Writer, about *gdrive.About) {
	fmt.Fprintf(w, "User:  %s (%s)\n", about.DisplayName, about.EmailAddress)

	if about.QuotaLimit == 0 {
		fmt.Fprintf(w, "Quota: %s used (unlimited)\n", formatSize(about.QuotaUsage))
		return
	}

	fmt.Fprintf(w, "Quota: %s / %s\n", formatSize(about.QuotaUsage), formatSize(about.QuotaLimit))
}
