package report

import (
	"strings"
	"time"
)

// File is a tagged file entry: a file the extraction copied out of the
// device, with its hashes and timestamps.
type File struct {
	ID         string
	Path       string
	FS         string
	Size       int64
	Deleted    bool
	Timestamps map[string]time.Time
	// Metadata is keyed by item name; later sections do not overwrite
	// earlier ones.
	Metadata map[string]string
}

// Meta returns a metadata item by case-insensitive name.
func (f File) Meta(name string) string {
	if v, ok := f.Metadata[name]; ok {
		return v
	}
	for k, v := range f.Metadata {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// MD5 returns the lowercase MD5 hash recorded for the file.
func (f File) MD5() string { return strings.ToLower(f.Meta("MD5")) }

// Name returns the last element of the file path.
func (f File) Name() string {
	p := strings.ReplaceAll(f.Path, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
