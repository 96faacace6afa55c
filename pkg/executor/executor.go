// Package executor applies a planned operation sequence to the blob
// store and commits the updated remote manifest. Operations run on a
// fixed worker set; each one succeeds or fails independently, and only
// confirmed operations are reflected in the committed manifest.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/baycat-io/baycat/pkg/blobstore"
	"github.com/baycat-io/baycat/pkg/manifest"
	"github.com/baycat-io/baycat/pkg/planner"
)

const defaultConcurrency = 16

// Failure is one operation that did not complete.
type Failure struct {
	Path string
	Kind planner.OpKind
	Err  error
}

// Report summarizes one execution batch. Uploaded and BytesUploaded
// count file transfers only; Recorded counts directory and symlink
// records stored without a backing object.
type Report struct {
	Uploaded      int
	Recorded      int
	Updated       int
	Deleted       int
	BytesUploaded int64
	Failures      []Failure

	// CommitErr is set when every operation outcome was known but the
	// final manifest commit itself failed. The bucket may then hold
	// content the remote manifest does not know about; a reconcile
	// pass on a later run heals exactly this drift.
	CommitErr error
}

// Failed reports whether any operation or the commit failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0 || r.CommitErr != nil
}

// Executor applies operations for one sync destination.
type Executor struct {
	store       blobstore.Client
	manifests   *manifest.RemoteStore
	root        string
	prefix      string
	concurrency int
}

// New builds an executor. root is the local tree uploads read from,
// prefix the destination key prefix.
func New(store blobstore.Client, manifests *manifest.RemoteStore, root, prefix string, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Executor{
		store:       store,
		manifests:   manifests,
		root:        root,
		prefix:      prefix,
		concurrency: concurrency,
	}
}

type result struct {
	op  planner.Operation
	err error
}

// Execute applies ops against the blob store, then commits a manifest
// reflecting exactly the operations that succeeded. Failed operations
// leave their entries untouched, so the next run's diff re-emits them.
//
// Cancelling ctx stops dispatching queued operations; an operation
// already in flight finishes on a detached context, so nothing
// half-written is ever marked committed. The commit happens after all
// operation outcomes are known, always, even on a partial failure.
func (e *Executor) Execute(ctx context.Context, ops []planner.Operation, remote *manifest.Manifest) (*Report, *manifest.Manifest) {
	working := remote.Copy()
	report := &Report{}

	jobs := make(chan planner.Operation)
	results := make(chan result, len(ops))

	var wg sync.WaitGroup
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for op := range jobs {
				if ctx.Err() != nil {
					results <- result{op: op, err: ctx.Err()}
					continue
				}
				// Detached so an in-flight transfer is never torn
				// down halfway through.
				results <- result{op: op, err: e.apply(context.WithoutCancel(ctx), working, op)}
			}
		}()
	}

	for _, op := range ops {
		jobs <- op
	}
	close(jobs)
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			slog.Error("operation failed", "op", string(res.op.Kind), "path", res.op.Path, "error", res.err)
			report.Failures = append(report.Failures, Failure{
				Path: res.op.Path,
				Kind: res.op.Kind,
				Err:  res.err,
			})
			continue
		}
		switch res.op.Kind {
		case planner.OpUpload:
			working.MarkStored(res.op.Record)
			if res.op.Record.Kind == manifest.KindFile {
				report.Uploaded++
				report.BytesUploaded += res.op.Record.Size
			} else {
				report.Recorded++
			}
		case planner.OpUpdateMeta:
			working.MarkStored(res.op.Record)
			report.Updated++
		case planner.OpDelete:
			working.MarkDeleted(res.op.Path)
			report.Deleted++
		}
	}

	// Commit strictly after all operation attempts, on a detached
	// context: a cancelled run still records what actually landed.
	if err := e.manifests.Commit(context.WithoutCancel(ctx), working); err != nil {
		slog.Error("remote manifest commit failed; bucket state may be ahead of the manifest, run with --reconcile to heal", "error", err)
		report.CommitErr = err
	}

	return report, working
}

func (e *Executor) apply(ctx context.Context, working *manifest.Manifest, op planner.Operation) error {
	switch op.Kind {
	case planner.OpUpload:
		return e.upload(ctx, working, op)
	case planner.OpUpdateMeta:
		// Metadata travels in the manifest; the object's bytes are
		// untouched.
		slog.Info("update metadata", "path", op.Path)
		return nil
	case planner.OpDelete:
		return e.delete(ctx, working, op)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (e *Executor) upload(ctx context.Context, working *manifest.Manifest, op planner.Operation) error {
	rec := op.Record

	// Directories and symlinks have no backing object: their record in
	// the committed manifest is the upload. A file object the path
	// previously held is now stale and must go, or a later reconcile
	// would resurrect the file record from it.
	if rec.Kind != manifest.KindFile {
		if old := working.Get(op.Path); old != nil && old.Kind == manifest.KindFile {
			slog.Info("delete replaced object", "path", op.Path)
			if err := e.store.Delete(ctx, e.prefix+op.Path); err != nil {
				return fmt.Errorf("delete replaced object: %w", err)
			}
		}
		slog.Info("record", "path", op.Path, "kind", string(rec.Kind))
		return nil
	}

	f, err := os.Open(filepath.Join(e.root, filepath.FromSlash(op.Path)))
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	slog.Info("upload", "path", op.Path, "size", rec.Size)
	err = e.store.Put(ctx, &blobstore.PutRequest{
		Key:      e.prefix + op.Path,
		Body:     f,
		Size:     rec.Size,
		Checksum: rec.Checksum,
		Metadata: manifest.ObjectMetadata(rec),
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

func (e *Executor) delete(ctx context.Context, working *manifest.Manifest, op planner.Operation) error {
	// Only file entries have a blob to remove; directory and symlink
	// entries just leave the manifest.
	if rec := working.Get(op.Path); rec != nil && rec.Kind != manifest.KindFile {
		slog.Info("delete record", "path", op.Path, "kind", string(rec.Kind))
		return nil
	}

	slog.Info("delete", "path", op.Path)
	if err := e.store.Delete(ctx, e.prefix+op.Path); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
