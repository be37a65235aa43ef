package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// lockFilePermissions: owner rw, group/other r.
const lockFilePermissions = 0o644

// lockDirPermissions: owner rwx, group/other rx.
const lockDirPermissions = 0o755

// lockNameBytes is how many bytes of the destination hash name its lock file.
const lockNameBytes = 12

// lockPathFor returns the lock file guarding destination. Lock files live in
// the data directory, not the destination, so the mirror tree holds only
// remote content.
func lockPathFor(dataDir, destination string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(destination)))
	return filepath.Join(dataDir, "locks", hex.EncodeToString(sum[:lockNameBytes])+".lock")
}

// acquireLock writes the current process ID to path and takes an exclusive
// flock on it. The returned release function removes the file and drops the
// lock. Fails immediately if another backup holds the lock.
func acquireLock(path string) (release func(), err error) {
	if path == "" {
		return nil, errors.New("lock file path is empty, cannot determine data directory")
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(path), lockDirPermissions); mkdirErr != nil {
		return nil, fmt.Errorf("creating lock directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking exclusive lock.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("another backup of this destination is already running (could not lock %s)", path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}
