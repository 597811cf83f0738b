// Package walkmeta implements the filesystem-walking external collaborator
// spec.md §1/§6 describes: it turns a root directory into the
// (path, size, created, allowed) tuples the catalog's full_index() bulk
// inserts.
//
// Grounded on ivoronin-dupedog's internal/scanner concurrent directory
// walk (fan-out over subdirectories, doc-comment style) and extended with
// EXIF creation-time extraction via github.com/rwcarlsen/goexif/exif, a
// feature the distillation dropped when it generalized "created" to
// mtime/ctime (see DESIGN.md).
package walkmeta

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/nkazin/difgo/internal/catalog"
)

// Options controls which files a walk accepts and how deep it goes.
type Options struct {
	Recurse           bool
	AllowedExtensions []string
	IgnoreNames       []string
	IgnorePaths       []string
	PartB             bool
	DirIndex          int
}

// Walk descends root per opts, returning one FileEntry per regular file
// that isn't excluded by IgnoreNames/IgnorePaths. Ignored names and paths
// are meant for housekeeping entries (the catalog db, the thumbnail
// directory) and are omitted outright, never inserted as rows. Files that
// survive the ignore rules but fail the extension allow-list are still
// recorded, with Allowed=false, per spec.md §3 ("allowed=0 rows are never
// claimed... and never contribute to diff" implies they are still catalog
// rows).
func Walk(root string, opts Options) ([]catalog.FileEntry, error) {
	var entries []catalog.FileEntry
	root = filepath.Clean(root)

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !opts.Recurse {
				return filepath.SkipDir
			}
			if isIgnoredName(d.Name(), opts.IgnoreNames) || isIgnoredPath(path, opts.IgnorePaths) {
				return filepath.SkipDir
			}
			return nil
		}
		if isIgnoredName(d.Name(), opts.IgnoreNames) || isIgnoredPath(path, opts.IgnorePaths) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		entries = append(entries, catalog.FileEntry{
			Path:     path,
			Filename: d.Name(),
			PartB:    opts.PartB,
			DirIndex: opts.DirIndex,
			Allowed:  extensionAllowed(d.Name(), opts.AllowedExtensions),
			Size:     info.Size(),
			Created:  createdTime(path, info),
		})
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, err
	}
	return entries, nil
}

func extensionAllowed(name string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

func isIgnoredName(name string, ignore []string) bool {
	for _, n := range ignore {
		if n == name {
			return true
		}
	}
	return false
}

func isIgnoredPath(path string, ignore []string) bool {
	for _, p := range ignore {
		if path == p {
			return true
		}
	}
	return false
}

// createdTime prefers an image's EXIF DateTimeOriginal tag, falling back
// to the filesystem's modification time when the file has no EXIF data or
// isn't a decodable image. The original distillation only carried OS
// ctime/mtime; this is a supplemented, not ported, behavior (see
// DESIGN.md / SPEC_FULL.md).
func createdTime(path string, info os.FileInfo) int64 {
	if t, ok := exifCreatedTime(path); ok {
		return t
	}
	return info.ModTime().Unix()
}

func exifCreatedTime(path string) (int64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 0, false
	}
	t, err := x.DateTime()
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}
