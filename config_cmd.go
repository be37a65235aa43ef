package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-mirror/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

// configShowOutput is the JSON schema for `config show --json`.
type configShowOutput struct {
	ConfigPath  string               `json:"config_path"`
	Destination string               `json:"destination"`
	Credentials string               `json:"client_secret_file"`
	TokenFile   string               `json:"token_file"`
	Mirror      config.MirrorConfig  `json:"mirror"`
	Exports     map[string]string    `json:"exports"`
	Logging     config.LoggingConfig `json:"logging"`
	Network     config.NetworkConfig `json:"network"`
	History     config.HistoryConfig `json:"history"`
	Metrics     config.MetricsConfig `json:"metrics"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return errors.New("no configuration loaded")
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), configShowOutput{
			ConfigPath:  resolvedCfg.ConfigPath,
			Destination: resolvedCfg.Destination,
			Credentials: resolvedCfg.ClientSecretFile,
			TokenFile:   resolvedCfg.TokenFile,
			Mirror:      resolvedCfg.Mirror,
			Exports:     resolvedCfg.Exports,
			Logging:     resolvedCfg.Logging,
			Network:     resolvedCfg.Network,
			History:     resolvedCfg.History,
			Metrics:     resolvedCfg.Metrics,
		})
	}

	return config.RenderEffective(resolvedCfg, cmd.OutOrStdout())
}
