// Package checksum computes content digests for sync comparison.
// Digests are SHA-256, base64-encoded in the same form S3 reports
// ChecksumSHA256, so local and remote values compare directly.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

const bufferSize = 64 * 1024

// SumFile computes the digest of the file at path.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Sum(f)
}

// Sum computes a digest over everything readable from r.
func Sum(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// DefaultPoolSize is used when no pool size is configured or persisted.
const DefaultPoolSize = 4

// Failure records one path the pool could not digest. A failed path
// never blocks or cancels the rest of the batch.
type Failure struct {
	RelPath string
	Err     error
}

// Pool is a bounded worker pool for batch digest computation. Size is
// the number of files hashed concurrently.
type Pool struct {
	Size int
}

// NewPool returns a pool of the given width; non-positive sizes fall
// back to DefaultPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{Size: size}
}

// Batch digests every relative path under root and returns the
// path→digest mapping plus per-path failures. The call blocks until
// all submitted work has completed. Cancellation via ctx stops
// dispatching further paths; already-running digests finish.
func (p *Pool) Batch(ctx context.Context, root string, relPaths []string) (map[string]string, []Failure) {
	sums := make(map[string]string, len(relPaths))
	var failures []Failure
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(p.Size)

	for _, relPath := range relPaths {
		relPath := relPath
		if ctx.Err() != nil {
			mu.Lock()
			failures = append(failures, Failure{RelPath: relPath, Err: ctx.Err()})
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			sum, err := SumFile(filepath.Join(root, relPath))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, Failure{RelPath: relPath, Err: err})
				return nil
			}
			sums[relPath] = sum
			return nil
		})
	}

	g.Wait()
	return sums, failures
}
