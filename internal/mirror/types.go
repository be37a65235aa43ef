package mirror

import (
	"fmt"
	"time"

	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
)

// Kind classifies a remote item by how it is mirrored.
type Kind int

const (
	KindUnsupported Kind = iota
	KindFolder
	KindNativeDocument
	KindBinaryFile
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindNativeDocument:
		return "document"
	case KindBinaryFile:
		return "file"
	case KindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Decision is what the walker does with one item.
type Decision int

const (
	// Fetch downloads or exports the item and rewrites the local file.
	Fetch Decision = iota + 1
	// Skip leaves an up-to-date local file untouched.
	Skip
	// Traverse enters a folder.
	Traverse
)

func (d Decision) String() string {
	switch d {
	case Fetch:
		return "fetch"
	case Skip:
		return "skip"
	case Traverse:
		return "traverse"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// SyncConfig is the run-level configuration handed to the walker by the CLI.
type SyncConfig struct {
	Destination    string
	ForceDocs      bool // re-export native documents even when timestamps match
	ForceFiles     bool // re-download binary files even when hashes match
	IncludeTrashed bool // mirror the trashed listing instead of live items
	Workers        int  // concurrent fetches per listing page; <= 1 is sequential
	MaxDepth       int  // folder nesting limit below Destination; 0 = unlimited
	DryRun         bool // report decisions without fetching or writing
}

// Timestamps are the access and modification times stamped on a written file.
type Timestamps struct {
	Access time.Time
	Modify time.Time
}

// TimestampsFor derives the stamp for a remote item. The access time falls
// back to the modification time when the item was never viewed.
func TimestampsFor(item *gdrive.Item) Timestamps {
	atime := item.ViewedAt
	if atime.IsZero() {
		atime = item.ModifiedAt
	}

	return Timestamps{Access: atime, Modify: item.ModifiedAt}
}
