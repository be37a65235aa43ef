package mirror

import (
	"crypto/md5"  //nolint:gosec // test fixture digests
	"crypto/sha1" //nolint:gosec // test fixture digests
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
)

var (
	testMtime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	docMime   = "application/vnd.google-apps.document"
)

func md5Hex(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec // test fixture digest
	return hex.EncodeToString(sum[:])
}

func writeLocal(t *testing.T, fsys afero.Fs, path string, data []byte, mtime time.Time) {
	t.Helper()

	require.NoError(t, afero.WriteFile(fsys, path, data, 0o644))

	if !mtime.IsZero() {
		require.NoError(t, fsys.Chtimes(path, mtime, mtime))
	}
}

func TestSelectHash_Preference(t *testing.T) {
	t.Parallel()

	item := gdrive.Item{MD5Checksum: "m", SHA1Checksum: "s1", SHA256Checksum: "s256"}

	h, ok := SelectHash(&item)
	require.True(t, ok)
	assert.Equal(t, ContentHash{HashSHA256, "s256"}, h)

	item.SHA256Checksum = ""
	h, _ = SelectHash(&item)
	assert.Equal(t, HashSHA1, h.Algorithm)

	item.SHA1Checksum = ""
	h, _ = SelectHash(&item)
	assert.Equal(t, HashMD5, h.Algorithm)

	item.MD5Checksum = ""
	_, ok = SelectHash(&item)
	assert.False(t, ok)
}

func TestComputeHash(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	data := []byte("hello mirror")
	writeLocal(t, fsys, "/f", data, time.Time{})

	s256 := sha256.Sum256(data)
	s1 := sha1.Sum(data) //nolint:gosec // test fixture digest

	got, err := ComputeHash(fsys, "/f", HashSHA256)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(s256[:]), got)

	got, err = ComputeHash(fsys, "/f", HashSHA1)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(s1[:]), got)

	got, err = ComputeHash(fsys, "/f", HashMD5)
	require.NoError(t, err)
	assert.Equal(t, md5Hex(data), got)

	_, err = ComputeHash(fsys, "/f", "crc32")
	require.Error(t, err)

	_, err = ComputeHash(fsys, "/missing", HashMD5)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOracle_Document(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		localMtime time.Time // zero: no local file
		remote     time.Time
		force      bool
		want       Decision
	}{
		{"missing locally", time.Time{}, testMtime, false, Fetch},
		{"unchanged", testMtime, testMtime, false, Skip},
		{"unchanged with sub-second local", testMtime.Add(400 * time.Millisecond), testMtime, false, Skip},
		{"remote one second newer", testMtime, testMtime.Add(time.Second), false, Fetch},
		{"remote one second older", testMtime, testMtime.Add(-time.Second), false, Fetch},
		{"forced", testMtime, testMtime, true, Fetch},
		{"remote without mtime", testMtime, time.Time{}, false, Fetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := afero.NewMemMapFs()
			if !tt.localMtime.IsZero() {
				writeLocal(t, fsys, "/dst/Doc.docx", []byte("x"), tt.localMtime)
			}

			item := gdrive.Item{ID: "D", MimeType: docMime, ModifiedAt: tt.remote}

			got, err := NewOracle(fsys, nil).Decide(&item, KindNativeDocument, "/dst/Doc.docx", tt.force)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOracle_BinaryFile(t *testing.T) {
	t.Parallel()

	content := []byte("payload")

	tests := []struct {
		name  string
		local []byte // nil: no local file
		item  gdrive.Item
		force bool
		want  Decision
	}{
		{
			name:  "identical",
			local: content,
			item:  gdrive.Item{Size: int64(len(content)), HasSize: true, MD5Checksum: md5Hex(content)},
			want:  Skip,
		},
		{
			name: "missing locally",
			item: gdrive.Item{Size: int64(len(content)), HasSize: true, MD5Checksum: md5Hex(content)},
			want: Fetch,
		},
		{
			name:  "size mismatch with matching hash",
			local: append([]byte(nil), content[:3]...),
			item:  gdrive.Item{Size: int64(len(content)), HasSize: true, MD5Checksum: md5Hex(content[:3])},
			want:  Fetch,
		},
		{
			name:  "same size different content",
			local: []byte("PAYLOAD"),
			item:  gdrive.Item{Size: int64(len(content)), HasSize: true, MD5Checksum: md5Hex(content)},
			want:  Fetch,
		},
		{
			name:  "no remote hash",
			local: content,
			item:  gdrive.Item{Size: int64(len(content)), HasSize: true},
			want:  Fetch,
		},
		{
			name:  "forced",
			local: content,
			item:  gdrive.Item{Size: int64(len(content)), HasSize: true, MD5Checksum: md5Hex(content)},
			force: true,
			want:  Fetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := afero.NewMemMapFs()
			if tt.local != nil {
				writeLocal(t, fsys, "/dst/file.bin", tt.local, time.Time{})
			}

			item := tt.item
			item.ID = "F"

			got, err := NewOracle(fsys, nil).Decide(&item, KindBinaryFile, "/dst/file.bin", tt.force)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOracle_LocalDirectoryAtFilePathFetches(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/dst/file.bin", 0o755))

	item := gdrive.Item{ID: "F", Size: 0, HasSize: true, MD5Checksum: md5Hex(nil)}

	got, err := NewOracle(fsys, nil).Decide(&item, KindBinaryFile, "/dst/file.bin", false)
	require.NoError(t, err)
	assert.Equal(t, Fetch, got)
}

func TestOracle_RejectsUndecidableKinds(t *testing.T) {
	t.Parallel()

	o := NewOracle(afero.NewMemMapFs(), nil)

	for _, kind := range []Kind{KindFolder, KindUnsupported} {
		_, err := o.Decide(&gdrive.Item{ID: "x"}, kind, "/dst/x", false)
		assert.Error(t, err, kind.String())
	}
}

// statFailFs fails every Stat with a permission error.
type statFailFs struct {
	afero.Fs
}

func (statFailFs) Stat(string) (os.FileInfo, error) {
	return nil, fs.ErrPermission
}

func TestOracle_StatFailureIsLocalReadFailure(t *testing.T) {
	t.Parallel()

	o := NewOracle(statFailFs{afero.NewMemMapFs()}, nil)
	item := gdrive.Item{ID: "F", Size: 1, HasSize: true, MD5Checksum: "abc", ModifiedAt: testMtime}

	_, err := o.Decide(&item, KindBinaryFile, "/dst/f", false)
	require.Error(t, err)
	assert.True(t, IsKind(err, LocalReadFailure))
	assert.True(t, errors.Is(err, fs.ErrPermission))

	_, err = o.Decide(&item, KindNativeDocument, "/dst/f", false)
	assert.True(t, IsKind(err, LocalReadFailure))
}
