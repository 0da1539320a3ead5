// Package fileutil holds the path and file-move helpers shared by the
// scanner, maintenance, and download flows.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// RelativePath returns path relative to root. Paths outside root are an
// error; catalog entries must stay inside their base-label root.
func RelativePath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relativize %s under %s: %w", path, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes root %s", path, root)
	}
	return rel, nil
}

// Inside reports whether path lies within root.
func Inside(root, path string) bool {
	_, err := RelativePath(root, path)
	return err == nil
}

// SwapExt replaces the final extension of path. The new extension may itself
// contain dots, so SwapExt("x.safetensors", "model.json") yields
// "x.model.json" the way the sidecar convention expects.
func SwapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + strings.TrimPrefix(ext, ".")
}

// Stem returns the file name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SameStemFiles lists the regular files in path's directory that share its
// stem: the model file itself plus single-extension sidecars like .json and
// .jpeg. Dotted stems such as x.model.json do not match stem "x" and must be
// handled separately. A missing path yields an empty list.
func SameStemFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, nil
	}

	dir := filepath.Dir(path)
	stem := Stem(path)

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		if Stem(entry.Name()) == stem {
			matches = append(matches, filepath.Join(dir, entry.Name()))
		}
	}
	return matches, nil
}

// MoveToDir renames every listed file into dir, keeping base names. Files
// that no longer exist are skipped; the first real failure aborts.
func MoveToDir(files []string, dir string) error {
	for _, file := range files {
		name := filepath.Base(file)
		if name == "" || name == "." {
			continue
		}
		if err := os.Rename(file, filepath.Join(dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("move %s to %s: %w", file, dir, err)
		}
	}
	return nil
}
