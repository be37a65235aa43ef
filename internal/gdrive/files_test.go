package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListChildren_QueryAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "trashed = false and 'F1' in parents", r.URL.Query().Get("q"))
		assert.Equal(t, "1000", r.URL.Query().Get("pageSize"))
		assert.Contains(t, r.URL.Query().Get("fields"), "md5Checksum")
		assert.Empty(t, r.URL.Query().Get("pageToken"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"nextPageToken": "tok-2",
			"files": [
				{"id": "B1", "name": "draft.txt", "mimeType": "text/plain", "size": "42",
				 "md5Checksum": "ABCDEF", "modifiedTime": "2020-01-01T00:00:00.789Z",
				 "viewedByMeTime": "2020-02-01T10:00:00.000Z"},
				{"id": "D1", "name": "Q1", "mimeType": "application/vnd.google-apps.spreadsheet",
				 "modifiedTime": "2020-01-01T00:00:00.000Z"},
				{"id": "F2", "name": "Sub", "mimeType": "application/vnd.google-apps.folder"}
			]
		}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	page, err := client.ListChildren(context.Background(), "F1", false, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "tok-2", page.NextPageToken)

	bin := page.Items[0]
	assert.Equal(t, "B1", bin.ID)
	assert.True(t, bin.HasSize)
	assert.Equal(t, int64(42), bin.Size)
	assert.Equal(t, "abcdef", bin.MD5Checksum)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), bin.ModifiedAt)
	assert.Equal(t, time.Date(2020, 2, 1, 10, 0, 0, 0, time.UTC), bin.ViewedAt)

	doc := page.Items[1]
	assert.False(t, doc.HasSize)
	assert.True(t, doc.ViewedAt.IsZero())

	assert.True(t, page.Items[2].IsFolder())
}

func TestListChildren_TrashedAndPageToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trashed = true and 'root' in parents", r.URL.Query().Get("q"))
		assert.Equal(t, "tok-2", r.URL.Query().Get("pageToken"))
		fmt.Fprint(w, `{"files": []}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	page, err := client.ListChildren(context.Background(), RootFolderID, true, "tok-2")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextPageToken)
}

func TestListChildren_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.ListChildren(context.Background(), "missing", false, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestChildrenQuery_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `trashed = false and 'a\'b' in parents`, childrenQuery("a'b", false))
}

func TestToItem_InvalidFieldsAreDropped(t *testing.T) {
	f := fileResponse{ID: "x", Size: "-3", ModifiedTime: "yesterday"}
	item := f.toItem(slog.Default())

	assert.False(t, item.HasSize)
	assert.True(t, item.ModifiedAt.IsZero())
}

func TestDownload_StreamsMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/B1", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), "B1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", buf.String())
}

func TestExport_PassesMimeType(t *testing.T) {
	const xlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/D1/export", r.URL.Path)
		assert.Equal(t, xlsx, r.URL.Query().Get("mimeType"))
		_, _ = w.Write([]byte("PK"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer
	_, err := client.Export(context.Background(), "D1", xlsx, &buf)
	require.NoError(t, err)
	assert.Equal(t, "PK", buf.String())
}

func TestAbout_DecodesQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about", r.URL.Path)
		fmt.Fprint(w, `{"user":{"displayName":"Alice","emailAddress":"alice@example.com"},
			"storageQuota":{"limit":"16106127360","usage":"1024"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	about, err := client.About(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice", about.DisplayName)
	assert.Equal(t, "alice@example.com", about.EmailAddress)
	assert.Equal(t, int64(16106127360), about.QuotaLimit)
	assert.Equal(t, int64(1024), about.QuotaUsage)
}
