package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"forager/internal/logging"
	"forager/internal/services"
)

// Entry is one regular file on a volume.
type Entry struct {
	// Path is slash separated and relative to the volume root.
	Path string
	Size int64
}

// Base returns the last path element.
func (e Entry) Base() string { return path.Base(e.Path) }

// Dir returns the directory part of the path.
func (e Entry) Dir() string { return path.Dir(e.Path) }

// Username returns the profile owner derived from the path.
func (e Entry) Username() string { return Username(e.Path) }

// Volume is a directory tree holding the files of an imaged volume. The
// file listing is built on first use and shared by every ant of a run.
type Volume struct {
	root   string
	fsys   fs.FS
	logger *slog.Logger

	once    sync.Once
	entries []Entry
	err     error
	skipped int
}

// OpenVolume validates that root is a readable directory.
func OpenVolume(root string, logger *slog.Logger) (*Volume, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, services.Wrap(services.ErrDatasource, "volume", "open", root, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrDatasource, "volume", "open", fmt.Sprintf("%s is not a directory", root), nil)
	}
	return &Volume{root: root, fsys: os.DirFS(root), logger: logger}, nil
}

// Root returns the volume root directory.
func (v *Volume) Root() string { return v.root }

// Abs converts a volume-relative path to a host path.
func (v *Volume) Abs(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(rel))
}

// Open opens a volume-relative file.
func (v *Volume) Open(rel string) (fs.File, error) {
	return v.fsys.Open(rel)
}

// Entries returns every regular file in path order. Unreadable directories
// are logged and skipped.
func (v *Volume) Entries(ctx context.Context) ([]Entry, error) {
	v.once.Do(func() { v.entries, v.err = v.walk(ctx) })
	return v.entries, v.err
}

// Find returns the entries accepted by match.
func (v *Volume) Find(ctx context.Context, match func(Entry) bool) ([]Entry, error) {
	entries, err := v.Entries(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (v *Volume) walk(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := fs.WalkDir(v.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == "." {
				return err
			}
			v.skipped++
			v.logger.Warn("skipping unreadable volume path",
				logging.String("path", p),
				logging.Error(err),
				logging.String(logging.FieldEventType, "volume_walk_skip"),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		entries = append(entries, Entry{Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrDatasource, "volume", "walk", v.root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	v.logger.Debug("volume indexed",
		logging.String("root", v.root),
		logging.Int("files", len(entries)),
		logging.Int("skipped", v.skipped),
	)
	return entries, nil
}

// profileRoots are the directories whose child names a user profile.
var profileRoots = []string{"users", "documents and settings", "home"}

// Username derives the account name from a volume path such as
// Users/alice/AppData/... or home/bob/.config/... It returns "" when the
// path is not inside a user profile.
func Username(p string) string {
	parts := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		seg := strings.ToLower(parts[i])
		for _, root := range profileRoots {
			if seg == root && parts[i+1] != "" {
				return parts[i+1]
			}
		}
	}
	return ""
}

// HasSegment reports whether any directory of p equals name, ignoring case.
func HasSegment(p, name string) bool {
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if strings.EqualFold(seg, name) {
			return true
		}
	}
	return false
}

// ContainsFold reports whether p contains sub, ignoring case.
func ContainsFold(p, sub string) bool {
	return strings.Contains(strings.ToLower(p), strings.ToLower(sub))
}
