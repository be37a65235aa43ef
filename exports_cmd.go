package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-mirror/internal/mirror"
)

func newExportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "Show how each native document type is exported",
		Long: `Show the export format used for each Google-native document type,
after [exports] overrides from the config file. The formats column lists
every extension accepted in [exports], default first.`,
		RunE: runExports,
	}
}

// exportOutput is one element of `exports --json`.
type exportOutput struct {
	NativeType string   `json:"native_type"`
	MimeType   string   `json:"mime_type"`
	Extension  string   `json:"extension"`
	Formats    []string `json:"formats"`
}

func runExports(cmd *cobra.Command, _ []string) error {
	table, err := resolvedCfg.ExportTable()
	if err != nil {
		return err
	}

	entries := table.Entries()

	if flagJSON {
		out := make([]exportOutput, 0, len(entries))
		for _, e := range entries {
			out = append(out, exportOutput{
				NativeType: e.NativeType,
				MimeType:   e.MimeType,
				Extension:  e.Extension,
				Formats:    mirror.ExportFormats(shortKind(e.NativeType)),
			})
		}

		return printJSON(cmd.OutOrStdout(), out)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		kind := shortKind(e.NativeType)
		rows = append(rows, []string{
			kind,
			e.Extension,
			e.MimeType,
			strings.Join(mirror.ExportFormats(kind), ","),
		})
	}

	printTable(cmd.OutOrStdout(), []string{"KIND", "EXT", "EXPORT TYPE", "FORMATS"}, rows)

	return nil
}

// shortKind turns "application/vnd.google-apps.document" into "document".
func shortKind(nativeType string) string {
	return nativeType[strings.LastIndexByte(nativeType, '.')+1:]
}
