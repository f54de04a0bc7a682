package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFileAt(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x\n"), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
	return p
}

func TestFindNewestLog_PicksLatestModified(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeFileAt(t, dir, "a.csv", base)
	newest := writeFileAt(t, dir, "b.csv", base.Add(time.Hour))
	writeFileAt(t, dir, "c.csv", base.Add(time.Minute))
	writeFileAt(t, dir, "d.txt", base.Add(2*time.Hour))

	got, err := findNewestLog(dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, newest, got)
}

func TestFindNewestLog_ExtensionIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeFileAt(t, dir, "old.csv", base)
	newest := writeFileAt(t, dir, "NEW.CSV", base.Add(time.Second))

	got, err := findNewestLog(dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, newest, got)
}

func TestFindNewestLog_TieBreaksOnName(t *testing.T) {
	dir := t.TempDir()
	same := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeFileAt(t, dir, "session-2.csv", same)
	want := writeFileAt(t, dir, "session-3.csv", same)
	writeFileAt(t, dir, "session-1.csv", same)

	got, err := findNewestLog(dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindNewestLog_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := writeFileAt(t, dir, "real.csv", base)
	sub := filepath.Join(dir, "archive.csv")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.Chtimes(sub, base.Add(time.Hour), base.Add(time.Hour)))

	got, err := findNewestLog(dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindNewestLog_EmptyDirectory(t *testing.T) {
	_, err := findNewestLog(t.TempDir(), ".csv")
	assert.ErrorIs(t, err, ErrNoLogFiles)
}

func TestFindNewestLog_MissingDirectory(t *testing.T) {
	_, err := findNewestLog(filepath.Join(t.TempDir(), "nope"), ".csv")
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestFindNewestLog_PathIsAFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFileAt(t, dir, "a.csv", time.Now())

	_, err := findNewestLog(p, ".csv")
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}
