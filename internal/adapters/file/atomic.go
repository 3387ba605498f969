package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path without ever leaving a partial file behind.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	// Same directory as the destination: rename is only atomic within one filesystem.
	tmpFile, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := replace(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filepath.Base(path), err)
	}
	return nil
}

// replace renames src over dst. On Windows os.Rename fails if dst exists, so the
// destination is removed first; this leaves a short window without the file,
// which is preferable to a partially written one.
func replace(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(dst); statErr != nil {
		return err
	}
	if rmErr := os.Remove(dst); rmErr != nil {
		return fmt.Errorf("failed to remove existing file for overwrite: %w", rmErr)
	}
	return os.Rename(src, dst)
}
