// Package fileutil holds the on-disk conventions every pipeline stage shares:
// outputs are produced under a hidden partial name and renamed into place, so
// the presence of a final path always means the file is complete.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const partialMarker = ".partial"

// PartialPath returns the hidden sibling a stage writes to before committing
// to path. The extension is kept so tools that infer formats still work.
func PartialPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+partialMarker+ext)
}

// IsPartial reports whether name is an uncommitted partial file
func IsPartial(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.Contains(base, partialMarker)
}

// Commit renames the partial sibling of path into place
func Commit(path string) error {
	if err := os.Rename(PartialPath(path), path); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

// WriteFile writes data to path through its partial sibling
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	partial := PartialPath(path)
	if err := os.WriteFile(partial, data, 0644); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("write %s: %w", partial, err)
	}
	return Commit(path)
}

// Exists reports whether path is an existing regular file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes path, treating an already-missing file as success
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// BaseName strips directory and extension
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
