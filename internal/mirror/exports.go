package mirror

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
)

// nativePrefix is shared by every Google-native document type.
const nativePrefix = "application/vnd.google-apps."

// Export is the conversion applied to a native document: the content type
// requested from the export endpoint and the extension of the local file.
type Export struct {
	MimeType  string
	Extension string
}

// ExportEntry is one row of an ExportTable, for display.
type ExportEntry struct {
	NativeType string
	Export
}

// exportCatalogue lists the formats Drive can export each native kind to,
// keyed by the short kind name used in config. The first entry of each list
// is the default.
var exportCatalogue = map[string][]Export{
	"document": {
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "docx"},
		{"application/vnd.oasis.opendocument.text", "odt"},
		{"application/rtf", "rtf"},
		{"application/pdf", "pdf"},
		{"text/plain", "txt"},
		{"text/html", "html"},
		{"application/epub+zip", "epub"},
	},
	"spreadsheet": {
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
		{"application/x-vnd.oasis.opendocument.spreadsheet", "ods"},
		{"application/pdf", "pdf"},
		{"text/csv", "csv"},
		{"text/tab-separated-values", "tsv"},
	},
	"drawing": {
		{"image/svg+xml", "svg"},
		{"image/png", "png"},
		{"image/jpeg", "jpg"},
		{"application/pdf", "pdf"},
	},
	"presentation": {
		{"application/vnd.openxmlformats-officedocument.presentationml.presentation", "pptx"},
		{"application/vnd.oasis.opendocument.presentation", "odp"},
		{"application/pdf", "pdf"},
		{"text/plain", "txt"},
	},
	"script": {
		{"application/vnd.google-apps.script+json", "json"},
	},
}

// ExportKinds returns the short native kind names that accept an export
// override, sorted.
func ExportKinds() []string {
	kinds := make([]string, 0, len(exportCatalogue))
	for k := range exportCatalogue {
		kinds = append(kinds, k)
	}

	slices.Sort(kinds)

	return kinds
}

// ExportFormats returns the extensions kind can be exported to, default first.
// Returns nil for an unknown kind.
func ExportFormats(kind string) []string {
	formats := exportCatalogue[kind]
	if formats == nil {
		return nil
	}

	exts := make([]string, 0, len(formats))
	for _, f := range formats {
		exts = append(exts, f.Extension)
	}

	return exts
}

// ValidateExportOverride checks that kind is a known native kind and ext one
// of its export formats.
func ValidateExportOverride(kind, ext string) error {
	formats := ExportFormats(kind)
	if formats == nil {
		return fmt.Errorf("unknown document kind %q (valid: %s)", kind, strings.Join(ExportKinds(), ", "))
	}

	if !slices.Contains(formats, strings.ToLower(ext)) {
		return fmt.Errorf("%s cannot be exported as %q (valid: %s)", kind, ext, strings.Join(formats, ", "))
	}

	return nil
}

// ExportTable maps native document types to their export. It is immutable
// after construction and safe for concurrent use.
type ExportTable struct {
	byType map[string]Export
}

// DefaultExportTable returns the table with the default format for every
// native kind: docx, xlsx, svg, pptx and json.
func DefaultExportTable() *ExportTable {
	t, _ := NewExportTable(nil) //nolint:errcheck // nil overrides cannot fail

	return t
}

// NewExportTable builds a table from the defaults with per-kind extension
// overrides applied (for example {"document": "pdf"}).
func NewExportTable(overrides map[string]string) (*ExportTable, error) {
	t := &ExportTable{byType: make(map[string]Export, len(exportCatalogue))}

	for kind, formats := range exportCatalogue {
		t.byType[nativePrefix+kind] = formats[0]
	}

	for kind, ext := range overrides {
		if err := ValidateExportOverride(kind, ext); err != nil {
			return nil, err
		}

		ext = strings.ToLower(ext)
		for _, f := range exportCatalogue[kind] {
			if f.Extension == ext {
				t.byType[nativePrefix+kind] = f
				break
			}
		}
	}

	return t, nil
}

// Lookup returns the export for a native document type. ok is false when
// the type has no export, which callers treat as unsupported.
func (t *ExportTable) Lookup(nativeType string) (Export, bool) {
	e, ok := t.byType[nativeType]
	return e, ok
}

// Classify derives an item's Kind from its type string. Folders are the
// folder sentinel, native documents are keys of the table, anything else
// with a size is a binary file, and the rest is unsupported.
func (t *ExportTable) Classify(item *gdrive.Item) Kind {
	if item.IsFolder() {
		return KindFolder
	}

	if _, ok := t.byType[item.MimeType]; ok {
		return KindNativeDocument
	}

	if item.HasSize {
		return KindBinaryFile
	}

	return KindUnsupported
}

// Entries returns every mapping sorted by native type.
func (t *ExportTable) Entries() []ExportEntry {
	entries := make([]ExportEntry, 0, len(t.byType))
	for nt, e := range t.byType {
		entries = append(entries, ExportEntry{NativeType: nt, Export: e})
	}

	slices.SortFunc(entries, func(a, b ExportEntry) int {
		return strings.Compare(a.NativeType, b.NativeType)
	})

	return entries
}
