// Package planner computes the minimal operation set that makes the
// remote manifest equal to the local one. It never touches the network
// on its own: the optional bucket reconciliation pass takes the blob
// store explicitly.
package planner

import (
	"log/slog"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/baycat-io/baycat/pkg/manifest"
)

// OpKind is the kind of one sync operation.
type OpKind string

const (
	OpUpload     OpKind = "upload"
	OpUpdateMeta OpKind = "update-meta"
	OpDelete     OpKind = "delete"
)

// Operation is one action for the executor. Record is the local
// record to store for uploads and metadata updates, nil for deletes.
// It carries everything the executor needs; the executor never
// consults the planner again.
type Operation struct {
	Kind   OpKind
	Path   string
	Record *manifest.FileRecord
	Reason string
}

// Options tunes a diff.
type Options struct {
	// DeleteEnabled allows Delete operations for paths gone locally.
	DeleteEnabled bool

	// OverwriteRegressed permits overwriting a remote record whose
	// mtime is newer than the local one. Off by default: a newer
	// remote usually means another writer got there first.
	OverwriteRegressed bool

	// Excludes are doublestar patterns for paths outside the sync
	// scope. A remote path matching one is never deleted even when it
	// is absent from the local manifest: an excluded path is out of
	// scope, not deleted locally.
	Excludes []string
}

// Diff compares local against remote over the union of their paths and
// returns the operations that reconcile remote to local. All uploads
// and metadata updates are emitted before any delete, so a crash
// mid-run can leave an extra remote copy but never a hole. Within each
// phase, operations are path-sorted for deterministic output.
func Diff(local, remote *manifest.Manifest, opts Options) []Operation {
	var stores []Operation
	var deletes []Operation

	for _, path := range local.Paths() {
		lrec := local.Get(path)
		rrec := remote.Get(path)

		switch {
		case rrec == nil:
			stores = append(stores, Operation{
				Kind:   OpUpload,
				Path:   path,
				Record: lrec,
				Reason: "new file",
			})
		case !lrec.ContentEqual(rrec):
			if regressed(lrec, rrec) && !opts.OverwriteRegressed {
				slog.Warn("skipping regressed path, remote is newer", "path", path)
				continue
			}
			stores = append(stores, Operation{
				Kind:   OpUpload,
				Path:   path,
				Record: lrec,
				Reason: "content differs",
			})
		case !lrec.MetadataEqual(rrec):
			stores = append(stores, Operation{
				Kind:   OpUpdateMeta,
				Path:   path,
				Record: lrec,
				Reason: "metadata differs",
			})
		}
	}

	if opts.DeleteEnabled {
		for _, path := range remote.Paths() {
			if local.Get(path) != nil || excluded(opts.Excludes, path) {
				continue
			}
			deletes = append(deletes, Operation{
				Kind:   OpDelete,
				Path:   path,
				Reason: "deleted locally",
			})
		}
	}

	sortOps(stores)
	sortOps(deletes)
	return append(stores, deletes...)
}

func excluded(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

func sortOps(ops []Operation) {
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Path < ops[j].Path
	})
}

// regressed reports whether the remote copy of a file is newer than
// the local one. Directory and symlink records are never regressed.
func regressed(local, remote *manifest.FileRecord) bool {
	if local.Kind != manifest.KindFile || remote.Kind != manifest.KindFile {
		return false
	}
	return remote.ModTimeNs > local.ModTimeNs
}
