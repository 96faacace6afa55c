// Package blobstore abstracts the object store baycat syncs into as a
// flat key/value blob store with list, get, put and delete. The rest
// of the system depends only on the Client interface; the S3
// implementation lives alongside it.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get and Head when no object exists under
// the requested key.
var ErrNotFound = errors.New("blobstore: object not found")

// Object describes one listed object.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectInfo is the per-object view returned by Head, including the
// user metadata stored with the object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

// PutRequest carries one upload. Metadata is stored with the object so
// permissions and ownership can be reconstructed on restore.
type PutRequest struct {
	Key      string
	Body     io.Reader
	Size     int64
	Checksum string
	Metadata map[string]string
}

// Client is the narrow surface the manifest store, reconciler and
// executor consume. Implementations must be safe for concurrent use.
type Client interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Put(ctx context.Context, req *PutRequest) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}
