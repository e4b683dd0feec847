package file

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FindRecentAfter returns all files under dir modified after startTime.
func FindRecentAfter(dir string, startTime time.Time) ([]string, error) {
	var recentFiles []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo,
		err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && info.ModTime().After(startTime) {
			recentFiles = append(recentFiles, path)
		}
		return nil
	})

	return recentFiles, err
}

// FilterByExt keeps paths whose extension matches ext (case-insensitive,
// leading dot included, e.g. ".srt").
func FilterByExt(paths []string, ext string) []string {
	ret := make([]string, 0, len(paths))
	for _, path := range paths {
		if strings.EqualFold(filepath.Ext(path), ext) {
			ret = append(ret, path)
		}
	}
	return ret
}
