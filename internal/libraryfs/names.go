//go:build linux
// +build linux

package libraryfs

import (
	"path/filepath"
	"strings"
)

// sanitizeName strips path separators and NUL bytes from a catalog string
// so it's safe to expose as a single FUSE directory entry name. Grounded on
// internal/vodfs/plexname.go's safeFSName.
func sanitizeName(name string) string {
	if name == "" {
		return "_"
	}
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "/", " - ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "_"
	}
	return name
}

func trackFileName(id int64, title, relativePath string) string {
	title = sanitizeName(title)
	ext := strings.ToLower(filepath.Ext(relativePath))
	if ext == "" {
		ext = ".mp3"
	}
	return title + ext
}
