package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// listPageSize is the pageSize value for children listings.
// 1000 is the maximum Drive accepts for files.list.
const listPageSize = 1000

// listFields restricts files.list responses to what the mirror needs.
const listFields = "nextPageToken,files(id,name,mimeType,size,md5Checksum," +
	"sha1Checksum,sha256Checksum,modifiedTime,viewedByMeTime,trashed)"

// fileResponse mirrors the Drive v3 File resource for the requested fields.
// Unexported: callers use Item via toItem() normalization.
type fileResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	MimeType       string `json:"mimeType"`
	Size           string `json:"size"` // int64 encoded as a JSON string
	MD5Checksum    string `json:"md5Checksum"`
	SHA1Checksum   string `json:"sha1Checksum"`
	SHA256Checksum string `json:"sha256Checksum"`
	ModifiedTime   string `json:"modifiedTime"`
	ViewedByMeTime string `json:"viewedByMeTime"`
	Trashed        bool   `json:"trashed"`
}

type fileListResponse struct {
	Files         []fileResponse `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

// toItem normalizes a Drive File response into our Item type.
func (f *fileResponse) toItem(logger *slog.Logger) Item {
	item := Item{
		ID:             f.ID,
		Name:           f.Name,
		MimeType:       f.MimeType,
		MD5Checksum:    strings.ToLower(f.MD5Checksum),
		SHA1Checksum:   strings.ToLower(f.SHA1Checksum),
		SHA256Checksum: strings.ToLower(f.SHA256Checksum),
		Trashed:        f.Trashed,
	}

	if f.Size != "" {
		n, err := strconv.ParseInt(f.Size, 10, 64)
		if err != nil || n < 0 {
			logger.Warn("invalid size, treating item as sizeless",
				slog.String("item_id", f.ID),
				slog.String("raw", f.Size),
			)
		} else {
			item.Size = n
			item.HasSize = true
		}
	}

	item.ModifiedAt = parseTimestamp(f.ModifiedTime, "modifiedTime", f.ID, logger)
	item.ViewedAt = parseTimestamp(f.ViewedByMeTime, "viewedByMeTime", f.ID, logger)

	return item
}

// parseTimestamp parses an RFC3339 timestamp and truncates it to whole
// seconds. Empty or invalid values yield the zero time; invalid ones are logged.
func parseTimestamp(raw, field, itemID string, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		logger.Warn("invalid timestamp, ignoring",
			slog.String("field", field),
			slog.String("item_id", itemID),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t.Truncate(time.Second).UTC()
}

// childrenQuery builds the files.list q parameter selecting the direct
// children of folderID with the given trashed state.
func childrenQuery(folderID string, includeTrashed bool) string {
	escaped := strings.ReplaceAll(folderID, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)

	return fmt.Sprintf("trashed = %t and '%s' in parents", includeTrashed, escaped)
}

// ListChildren fetches one page of the children of folderID. Pass an empty
// pageToken for the first page; the returned Page carries the token for the
// next one. includeTrashed selects trashed children instead of live ones.
func (c *Client) ListChildren(ctx context.Context, folderID string, includeTrashed bool, pageToken string) (*Page, error) {
	q := url.Values{}
	q.Set("q", childrenQuery(folderID, includeTrashed))
	q.Set("fields", listFields)
	q.Set("pageSize", strconv.Itoa(listPageSize))

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	resp, err := c.Do(ctx, http.MethodGet, "/files?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("gdrive: listing children of %s: %w", folderID, err)
	}
	defer resp.Body.Close()

	var flr fileListResponse
	if err := json.NewDecoder(resp.Body).Decode(&flr); err != nil {
		return nil, fmt.Errorf("gdrive: decoding children response: %w", err)
	}

	page := &Page{
		Items:         make([]Item, 0, len(flr.Files)),
		NextPageToken: flr.NextPageToken,
	}

	for i := range flr.Files {
		page.Items = append(page.Items, flr.Files[i].toItem(c.logger))
	}

	c.logger.Debug("fetched children page",
		slog.String("folder_id", folderID),
		slog.Int("count", len(page.Items)),
		slog.Bool("has_next", page.NextPageToken != ""),
	)

	return page, nil
}

// Download streams the raw content of a binary file to w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, itemID string, w io.Writer) (int64, error) {
	c.logger.Debug("downloading item", slog.String("item_id", itemID))

	return c.stream(ctx, fmt.Sprintf("/files/%s?alt=media", url.PathEscape(itemID)), w)
}

// Export streams a native document converted to mimeType to w and returns
// the number of bytes written.
func (c *Client) Export(ctx context.Context, itemID, mimeType string, w io.Writer) (int64, error) {
	c.logger.Debug("exporting item",
		slog.String("item_id", itemID),
		slog.String("mime_type", mimeType),
	)

	q := url.Values{}
	q.Set("mimeType", mimeType)

	return c.stream(ctx, fmt.Sprintf("/files/%s/export?%s", url.PathEscape(itemID), q.Encode()), w)
}

// stream issues a GET and copies the response body to w. Only the request
// is retried; a failure while copying is returned to the caller, which
// discards the partial output.
func (c *Client) stream(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.Do(ctx, http.MethodGet, path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("gdrive: streaming content: %w", err)
	}

	return n, nil
}
