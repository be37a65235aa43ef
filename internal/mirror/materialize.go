package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Default permissions for created directories and files.
const (
	DefaultDirPerm  fs.FileMode = 0o755
	DefaultFilePerm fs.FileMode = 0o644
)

// partialSuffix marks an in-flight write. A crash leaves the temp file
// behind under a hidden name; it is never mistaken for the target.
const partialSuffix = ".partial"

// Materializer writes content to the local filesystem: directories are
// created on demand and files appear atomically with remote timestamps
// already applied.
type Materializer struct {
	fs       afero.Fs
	dirPerm  fs.FileMode
	filePerm fs.FileMode
	logger   *slog.Logger
}

// NewMaterializer returns a materializer writing through fsys. Zero
// permissions fall back to the defaults.
func NewMaterializer(fsys afero.Fs, dirPerm, filePerm fs.FileMode, logger *slog.Logger) *Materializer {
	if dirPerm == 0 {
		dirPerm = DefaultDirPerm
	}

	if filePerm == 0 {
		filePerm = DefaultFilePerm
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Materializer{fs: fsys, dirPerm: dirPerm, filePerm: filePerm, logger: logger}
}

// EnsureDir creates path and any missing parents. An existing directory is
// fine; anything else at path is a DirectoryCreateFailure.
func (m *Materializer) EnsureDir(path string) error {
	if err := m.fs.MkdirAll(path, m.dirPerm); err != nil {
		return &Error{Kind: DirectoryCreateFailure, Path: path, Err: err}
	}

	// Some filesystems report success when a file already occupies path.
	info, err := m.fs.Stat(path)
	if err != nil {
		return &Error{Kind: DirectoryCreateFailure, Path: path, Err: err}
	}

	if !info.IsDir() {
		return &Error{
			Kind: DirectoryCreateFailure,
			Path: path,
			Err:  fmt.Errorf("%w: not a directory", fs.ErrExist),
		}
	}

	return nil
}

// WriteContent writes data to path atomically and stamps it with times.
func (m *Materializer) WriteContent(path string, data []byte, times Timestamps) error {
	_, err := m.WriteFrom(path, times, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})

	return err
}

// WriteFrom streams fill's output into a hidden temp file next to path, stamps
// it, and renames it over path. On any failure the temp file is removed and
// the previous content of path, if any, is left intact.
//
// A failure writing to the temp file is a LocalWriteFailure. Any other error
// returned by fill is taken to come from the remote side and is a
// RemoteFetchFailure.
func (m *Materializer) WriteFrom(path string, times Timestamps, fill func(io.Writer) (int64, error)) (int64, error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	if err := m.EnsureDir(dir); err != nil {
		return 0, err
	}

	tmp, err := afero.TempFile(m.fs, dir, "."+name+".*"+partialSuffix)
	if err != nil {
		return 0, &Error{Kind: LocalWriteFailure, Path: path, Err: fmt.Errorf("creating temp file: %w", err)}
	}

	tmpPath := tmp.Name()
	success := false

	defer func() {
		if !success {
			if rmErr := m.fs.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				m.logger.Warn("failed to remove partial file",
					slog.String("path", tmpPath),
					slog.String("error", rmErr.Error()),
				)
			}
		}
	}()

	tw := &trackingWriter{w: tmp}

	n, fillErr := fill(tw)
	closeErr := tmp.Close()

	if fillErr != nil {
		kind := RemoteFetchFailure
		if tw.err != nil {
			kind = LocalWriteFailure
		}

		return n, &Error{Kind: kind, Path: path, Err: fillErr}
	}

	if closeErr != nil {
		return n, &Error{Kind: LocalWriteFailure, Path: path, Err: fmt.Errorf("closing temp file: %w", closeErr)}
	}

	if err := m.fs.Chmod(tmpPath, m.filePerm); err != nil {
		return n, &Error{Kind: LocalWriteFailure, Path: path, Err: fmt.Errorf("setting permissions: %w", err)}
	}

	if err := m.ApplyTimestamps(tmpPath, times.Access, times.Modify); err != nil {
		return n, &Error{Kind: LocalWriteFailure, Path: path, Err: err}
	}

	if err := m.fs.Rename(tmpPath, path); err != nil {
		return n, &Error{Kind: LocalWriteFailure, Path: path, Err: fmt.Errorf("renaming into place: %w", err)}
	}

	success = true

	return n, nil
}

// ApplyTimestamps sets the access and modification times of path. A zero
// mtime stamps nothing; a zero atime defaults to mtime.
func (m *Materializer) ApplyTimestamps(path string, atime, mtime time.Time) error {
	if mtime.IsZero() {
		return nil
	}

	if atime.IsZero() {
		atime = mtime
	}

	if err := m.fs.Chtimes(path, atime, mtime); err != nil {
		return fmt.Errorf("setting timestamps on %s: %w", path, err)
	}

	return nil
}

// trackingWriter remembers the first write error so WriteFrom can tell a
// local write failure from a failed remote stream.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}

	return n, err
}
