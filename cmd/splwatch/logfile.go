package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// findNewestLog returns the path of the most recently modified file in dir
// whose extension matches ext (case-insensitive).
//
// Files with identical modification times are ordered by name; the
// lexicographically greatest wins so the choice is deterministic.
func findNewestLog(dir, ext string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read log directory %s: %w", dir, err)
	}

	var (
		newestName string
		newestInfo os.FileInfo
	)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if newestInfo == nil ||
			fi.ModTime().After(newestInfo.ModTime()) ||
			(fi.ModTime().Equal(newestInfo.ModTime()) && e.Name() > newestName) {
			newestName = e.Name()
			newestInfo = fi
		}
	}

	if newestInfo == nil {
		return "", fmt.Errorf("%w: no *%s files in %s", ErrNoLogFiles, ext, dir)
	}
	return filepath.Join(dir, newestName), nil
}
