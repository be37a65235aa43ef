// Package tokenfile persists the OAuth2 token used to reach Google Drive,
// together with a small metadata map (the issuing client ID). It is a leaf
// package so both the CLI and internal/gdrive can read it without a cycle.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token's parent directory.
const DirPerms = 0o700

// File is the on-disk format for token files.
type File struct {
	Token *oauth2.Token     `json:"token"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Load reads a saved token file. Returns (nil, nil, nil) if the file does
// not exist.
func Load(path string) (*oauth2.Token, map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	return tf.Token, tf.Meta, nil
}

// Save writes the token file atomically with 0600 permissions.
// Never logs token values.
func Save(path string, tok *oauth2.Token, meta map[string]string) error {
	data, err := json.MarshalIndent(File{Token: tok, Meta: meta}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file in path's directory, fsyncs it and
// renames it over path. The temp file is removed on every failure path.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(FilePerms); err != nil {
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	return nil
}
