package mirror

import (
	"crypto/md5"  //nolint:gosec // Drive publishes MD5 content hashes
	"crypto/sha1" //nolint:gosec // Drive publishes SHA-1 content hashes
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
)

// HashAlgorithm names a content hash Drive may report.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA1   HashAlgorithm = "sha1"
	HashMD5    HashAlgorithm = "md5"
)

// ContentHash is a remote digest and the algorithm that produced it.
type ContentHash struct {
	Algorithm HashAlgorithm
	Value     string // lowercase hex
}

// SelectHash picks the strongest hash the item carries, preferring SHA-256,
// then SHA-1, then MD5. ok is false when the item has none.
func SelectHash(item *gdrive.Item) (ContentHash, bool) {
	switch {
	case item.SHA256Checksum != "":
		return ContentHash{HashSHA256, item.SHA256Checksum}, true
	case item.SHA1Checksum != "":
		return ContentHash{HashSHA1, item.SHA1Checksum}, true
	case item.MD5Checksum != "":
		return ContentHash{HashMD5, item.MD5Checksum}, true
	default:
		return ContentHash{}, false
	}
}

// ComputeHash streams the file at path through algo and returns the
// lowercase hex digest.
func ComputeHash(fsys afero.Fs, path string, algo HashAlgorithm) (string, error) {
	var h hash.Hash

	switch algo {
	case HashSHA256:
		h = sha256.New()
	case HashSHA1:
		h = sha1.New() //nolint:gosec // matches the remote digest
	case HashMD5:
		h = md5.New() //nolint:gosec // matches the remote digest
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", algo)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Oracle decides whether a local copy of a remote item is current. It reads
// local state fresh on every call and keeps nothing between calls.
type Oracle struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewOracle returns an oracle reading through fsys.
func NewOracle(fsys afero.Fs, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}

	return &Oracle{fs: fsys, logger: logger}
}

// Decide returns Skip when the file at localPath already matches item and
// force is false, Fetch otherwise. Only documents and binary files can be
// decided; other kinds return an error. A local stat or read failure other
// than a missing file is a LocalReadFailure.
func (o *Oracle) Decide(item *gdrive.Item, kind Kind, localPath string, force bool) (Decision, error) {
	switch kind {
	case KindNativeDocument:
		if force {
			return Fetch, nil
		}

		return o.decideDocument(item, localPath)
	case KindBinaryFile:
		if force {
			return Fetch, nil
		}

		return o.decideFile(item, localPath)
	case KindFolder, KindUnsupported:
		return 0, fmt.Errorf("mirror: no freshness decision for %s item %s", kind, item.ID)
	default:
		return 0, fmt.Errorf("mirror: unknown kind %d for item %s", int(kind), item.ID)
	}
}

// decideDocument compares whole-second modification times. Exported
// documents have no remote hash, so the stamped mtime is the only evidence
// the export is current.
func (o *Oracle) decideDocument(item *gdrive.Item, localPath string) (Decision, error) {
	if item.ModifiedAt.IsZero() {
		return Fetch, nil
	}

	info, found, err := o.stat(localPath)
	if err != nil || !found {
		return Fetch, err
	}

	local := info.ModTime().Truncate(time.Second).UTC()
	if !local.Equal(item.ModifiedAt) {
		o.logger.Debug("document modified remotely",
			slog.String("path", localPath),
			slog.Time("local", local),
			slog.Time("remote", item.ModifiedAt),
		)

		return Fetch, nil
	}

	return Skip, nil
}

// decideFile compares size first and only hashes when sizes agree.
func (o *Oracle) decideFile(item *gdrive.Item, localPath string) (Decision, error) {
	want, ok := SelectHash(item)
	if !ok {
		return Fetch, nil
	}

	info, found, err := o.stat(localPath)
	if err != nil || !found {
		return Fetch, err
	}

	if !info.Mode().IsRegular() || info.Size() != item.Size {
		return Fetch, nil
	}

	got, err := ComputeHash(o.fs, localPath, want.Algorithm)
	if err != nil {
		return 0, &Error{Kind: LocalReadFailure, Path: localPath, Err: err}
	}

	if got != want.Value {
		o.logger.Debug("content hash mismatch",
			slog.String("path", localPath),
			slog.String("algorithm", string(want.Algorithm)),
		)

		return Fetch, nil
	}

	return Skip, nil
}

// stat reports found=false for a missing path and wraps any other failure.
func (o *Oracle) stat(localPath string) (fs.FileInfo, bool, error) {
	info, err := o.fs.Stat(localPath)
	if err == nil {
		return info, true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}

	return nil, false, &Error{Kind: LocalReadFailure, Path: localPath, Err: err}
}
