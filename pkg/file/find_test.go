package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRecentAfter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	oldPath := filepath.Join(dir, "old.srt")
	newPath := filepath.Join(dir, "sub", "new.srt")
	require.NoError(t, os.MkdirAll(filepath.Dir(newPath), 0o755))
	require.NoError(t, os.WriteFile(oldPath, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("new"), 0o644))

	// Age the first file past the cutoff.
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	recent, err := FindRecentAfter(dir, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{newPath}, recent)

	all, err := FindRecentAfter(dir, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{oldPath, newPath}, all)
}

func TestFindRecentAfterMissingDir(t *testing.T) {
	t.Parallel()

	_, err := FindRecentAfter(filepath.Join(t.TempDir(), "missing"), time.Now())
	assert.Error(t, err)
}

func TestFilterByExt(t *testing.T) {
	t.Parallel()

	paths := []string{"/a/video.srt", "/a/video.SRT", "/a/notes.txt", "/a/noext"}

	assert.Equal(t, []string{"/a/video.srt", "/a/video.SRT"}, FilterByExt(paths, ".srt"))
	assert.Empty(t, FilterByExt(paths, ".ass"))
	assert.Empty(t, FilterByExt(nil, ".srt"))
}
