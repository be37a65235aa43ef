package gdrive

import "time"

// FolderMimeType is the sentinel type Drive reports for folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// RootFolderID is the alias Drive accepts for the user's My Drive root.
const RootFolderID = "root"

// Item is one Drive file entry as reported by a listing.
// Fields are normalized from the API response: timestamps are truncated to
// whole seconds and zero when absent; hashes are lowercase hex or empty.
type Item struct {
	ID             string
	Name           string
	MimeType       string
	Size           int64
	HasSize        bool // Drive omits size for folders and native documents
	MD5Checksum    string
	SHA1Checksum   string
	SHA256Checksum string
	ModifiedAt     time.Time
	ViewedAt       time.Time // last viewed by the authenticated user
	Trashed        bool
}

// IsFolder reports whether the item is a Drive folder.
func (it *Item) IsFolder() bool {
	return it.MimeType == FolderMimeType
}

// Page is one page of a children listing. NextPageToken is empty on the
// last page.
type Page struct {
	Items         []Item
	NextPageToken string
}

// About describes the authenticated user and their storage quota.
type About struct {
	DisplayName  string
	EmailAddress string
	QuotaLimit   int64 // 0 when the account has unlimited storage
	QuotaUsage   int64
}
