package config

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// RenderEffective writes the resolved configuration to w as annotated TOML,
// after all four override layers have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)
	ew.printf("destination        = %q\n", r.Destination)
	ew.printf("client_secret_file = %q\n", r.ClientSecretFile)
	ew.printf("token_file         = %q\n\n", r.TokenFile)

	renderMirrorSection(ew, &r.Mirror)
	renderExportsSection(ew, r.Exports)

	ew.printf("[logging]\n")
	ew.printf("log_level  = %q\n", r.Logging.LogLevel)
	ew.printf("log_format = %q\n\n", r.Logging.LogFormat)

	ew.printf("[network]\n")
	ew.printf("timeout         = %q\n", r.Network.Timeout)
	ew.printf("user_agent      = %q\n", r.Network.UserAgent)
	ew.printf("bandwidth_limit = %q\n\n", r.Network.BandwidthLimit)

	ew.printf("[history]\n")
	ew.printf("enabled = %t\n", r.History.Enabled)
	ew.printf("path    = %q\n\n", r.History.Path)

	ew.printf("[metrics]\n")
	ew.printf("textfile = %q\n", r.Metrics.Textfile)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error, so
// callers can chain printf calls without checking each one.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderMirrorSection(ew *errWriter, m *MirrorConfig) {
	ew.printf("[mirror]\n")
	ew.printf("force_docs         = %t\n", m.ForceDocs)
	ew.printf("force_files        = %t\n", m.ForceFiles)
	ew.printf("include_trashed    = %t\n", m.IncludeTrashed)
	ew.printf("parallel_downloads = %d\n", m.ParallelDownloads)
	ew.printf("max_depth          = %d\n", m.MaxDepth)
	ew.printf("dry_run            = %t\n", m.DryRun)
	ew.printf("dir_permissions    = %q\n", m.DirPermissions)
	ew.printf("file_permissions   = %q\n\n", m.FilePermissions)
}

func renderExportsSection(ew *errWriter, exports map[string]string) {
	ew.printf("[exports]\n")

	if len(exports) == 0 {
		ew.printf("# defaults for every document kind\n\n")
		return
	}

	kinds := make([]string, 0, len(exports))
	for k := range exports {
		kinds = append(kinds, k)
	}

	slices.Sort(kinds)

	width := 0
	for _, k := range kinds {
		width = max(width, len(k))
	}

	for _, k := range kinds {
		ew.printf("%s%s = %q\n", k, strings.Repeat(" ", width-len(k)), strings.ToLower(exports[k]))
	}

	ew.printf("\n")
}
