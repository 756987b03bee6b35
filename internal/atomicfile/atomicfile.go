// Package atomicfile writes files via a temp-file-plus-rename dance so
// readers never observe a torn write. Dataset preparation and CSV export
// both rewrite files that other processes may be reading concurrently.
package atomicfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to path atomically (best-effort cross-platform).
//
// The bytes are staged in a temporary file in the same directory and renamed
// into place, so a crash mid-write leaves the original file intact.
//
// perm applies to the staged file. Pass 0 to keep the existing file's mode,
// or 0644 when there is no existing file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if perm == 0 {
		perm = currentMode(path)
	}

	staged, err := stage(path, data, perm)
	if err != nil {
		return err
	}

	if err := replace(staged, path); err != nil {
		os.Remove(staged)
		return err
	}
	return nil
}

// WriteCSV encodes records and writes them to path atomically.
//
// The whole file is staged in memory first; the datasets this tool rewrites
// (demographics and per-instrument behavioral tables) are small enough that
// buffering beats leaving a half-encoded temp file on encode error.
func WriteCSV(path string, records [][]string, perm os.FileMode) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return WriteFile(path, buf.Bytes(), perm)
}

func currentMode(path string) os.FileMode {
	if st, err := os.Stat(path); err == nil {
		return st.Mode()
	}
	return 0o644
}

// stage writes data to a hidden temp file next to path, synced and closed,
// and returns its name. On error the temp file is cleaned up.
func stage(path string, data []byte, perm os.FileMode) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name = tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(name)
		}
	}()

	// Chmod is best-effort; not every filesystem supports it.
	_ = tmp.Chmod(perm)

	if _, err = tmp.Write(data); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

// replace renames staged over path. Windows cannot rename onto an existing
// file, so the fallback removes the destination and retries; that path is
// not atomic.
func replace(staged, path string) error {
	renameErr := os.Rename(staged, path)
	if renameErr == nil {
		return nil
	}
	os.Remove(path)
	if err := os.Rename(staged, path); err != nil {
		return fmt.Errorf("rename temp file: %w", renameErr)
	}
	return nil
}
