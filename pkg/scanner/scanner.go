// Package scanner walks a local tree and produces an up-to-date
// manifest. The walk itself is single-threaded; checksum work is
// batched out to a bounded digest pool afterwards. Files whose size
// and mtime match the previous manifest keep their old checksum
// without being re-read.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/baycat-io/baycat/pkg/checksum"
	"github.com/baycat-io/baycat/pkg/manifest"
)

// Digester is the checksum pool surface the scanner needs. It is an
// interface so tests can count invocations.
type Digester interface {
	Batch(ctx context.Context, root string, relPaths []string) (map[string]string, []checksum.Failure)
}

// Warning reports a path that was skipped or degraded during a scan.
type Warning struct {
	RelPath string
	Err     error
}

// Scanner produces manifests for one sync root.
type Scanner struct {
	root     string
	excludes []string
	digests  Digester
}

// New validates the root and builds a scanner. Exclude patterns are
// doublestar globs matched against slash-relative paths.
func New(root string, excludes []string, digests Digester) (*Scanner, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sync root is not a directory: %s", absRoot)
	}
	return &Scanner{
		root:     absRoot,
		excludes: excludes,
		digests:  digests,
	}, nil
}

// Root returns the absolute sync root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the tree and returns a new manifest reflecting current
// filesystem state. prev may be empty; entries in prev that are gone
// from disk are dropped, new entries are added, and checksums are
// carried forward wherever size and mtime are unchanged. Per-entry
// errors degrade to warnings, never abort the walk.
func (s *Scanner) Scan(ctx context.Context, prev *manifest.Manifest) (*manifest.Manifest, []Warning, error) {
	next := manifest.New(s.root)
	var warnings []Warning
	var toDigest []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory or vanished entry: warn and move on.
			rel := s.relPath(path)
			warnings = append(warnings, Warning{RelPath: rel, Err: err})
			slog.Warn("scan: skipping unreadable entry", "path", rel, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == s.root {
			return nil
		}

		rel := s.relPath(path)
		if rel == manifest.MetadataDirName || strings.HasPrefix(rel, manifest.MetadataDirName+"/") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if s.isExcluded(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rec, err := s.record(path, rel, d)
		if err != nil {
			warnings = append(warnings, Warning{RelPath: rel, Err: err})
			slog.Warn("scan: skipping entry", "path", rel, "error", err)
			return nil
		}
		if rec == nil {
			// Sockets, devices and other specials are not synced.
			return nil
		}

		if rec.Kind == manifest.KindFile {
			if old := prev.Get(rel); old != nil && old.Kind == manifest.KindFile && rec.SameStat(old) {
				rec.Checksum = old.Checksum
			}
			if rec.Checksum == "" {
				toDigest = append(toDigest, rel)
			}
		}

		next.Set(rec)
		return nil
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("walk %s: %w", s.root, err)
	}

	sums, failures := s.digests.Batch(ctx, s.root, toDigest)
	for rel, sum := range sums {
		next.Get(rel).Checksum = sum
	}
	for _, f := range failures {
		// A file that vanished between stat and read is treated as
		// deleted; anything else unreadable is excluded outright so we
		// never claim "unchanged" for content we could not read.
		next.MarkDeleted(f.RelPath)
		if !errors.Is(f.Err, fs.ErrNotExist) {
			warnings = append(warnings, Warning{RelPath: f.RelPath, Err: f.Err})
			slog.Warn("scan: checksum failed", "path", f.RelPath, "error", f.Err)
		}
	}

	return next, warnings, nil
}

func (s *Scanner) relPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (s *Scanner) isExcluded(rel string) bool {
	for _, pattern := range s.excludes {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// record builds a FileRecord for one walked entry. Returns (nil, nil)
// for entry kinds baycat does not track.
func (s *Scanner) record(path, rel string, d fs.DirEntry) (*manifest.FileRecord, error) {
	// Lstat so symlinks describe themselves, not their targets.
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	uid, gid := owner(info)

	rec := &manifest.FileRecord{
		RelPath:   rel,
		Size:      info.Size(),
		ModTimeNs: info.ModTime().UnixNano(),
		Mode:      info.Mode(),
		UID:       uid,
		GID:       gid,
	}

	switch {
	case info.Mode().IsDir():
		rec.Kind = manifest.KindDir
		rec.Size = 0
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return nil, err
		}
		rec.Kind = manifest.KindSymlink
		rec.LinkTarget = target
	case info.Mode().IsRegular():
		rec.Kind = manifest.KindFile
	default:
		return nil, nil
	}
	return rec, nil
}
