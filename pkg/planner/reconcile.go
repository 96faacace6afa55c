package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/baycat-io/baycat/pkg/blobstore"
	"github.com/baycat-io/baycat/pkg/manifest"
)

// headConcurrency bounds the HEAD fan-out during reconciliation.
const headConcurrency = 16

// Reconcile compares the actual bucket listing under prefix with the
// remote manifest and returns a corrected copy. An object present in
// the bucket but missing or stale in the manifest is the signature of
// an upload whose manifest commit never landed; its record is rebuilt
// from the object's own metadata so the next diff does not re-upload
// identical content. Manifest entries whose object is gone from the
// bucket are dropped, so the diff re-uploads them.
//
// This is the expensive consistency backstop: it costs a full listing
// plus one HEAD per drifted object, and is opt-in.
func Reconcile(ctx context.Context, store blobstore.Client, prefix string, remote *manifest.Manifest) (*manifest.Manifest, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	manifestKey := prefix + manifest.RemoteManifestName
	corrected := remote.Copy()
	listed := make(map[string]bool, len(objects))

	var drifted []blobstore.Object
	for _, obj := range objects {
		if obj.Key == manifestKey {
			continue
		}
		relPath := strings.TrimPrefix(obj.Key, prefix)
		listed[relPath] = true

		rec := remote.Get(relPath)
		if rec != nil && rec.Kind != manifest.KindFile {
			// The path is no longer a file; the object is a stale
			// leftover, not drift to adopt.
			slog.Warn("reconcile: stale object at non-file path", "path", relPath)
			continue
		}
		if rec != nil && rec.Size == obj.Size {
			continue
		}
		drifted = append(drifted, obj)
	}

	// Directory and symlink records have no backing object; only file
	// entries can be orphaned by bucket-side drift.
	for _, path := range remote.Paths() {
		rec := remote.Get(path)
		if rec.Kind == manifest.KindFile && !listed[path] {
			slog.Warn("reconcile: manifest entry has no object, dropping", "path", path)
			corrected.MarkDeleted(path)
		}
	}

	if len(drifted) == 0 {
		return corrected, nil
	}
	slog.Info("reconcile: rebuilding records from bucket", "objects", len(drifted))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headConcurrency)

	for _, obj := range drifted {
		obj := obj
		g.Go(func() error {
			info, err := store.Head(gctx, obj.Key)
			if err != nil {
				return fmt.Errorf("head %s: %w", obj.Key, err)
			}
			rec := manifest.RecordFromObject(strings.TrimPrefix(obj.Key, prefix), info)
			mu.Lock()
			corrected.Set(rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	return corrected, nil
}
