package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/baycat-io/baycat/pkg/blobstore"
)

const (
	// MetadataDirName is the reserved directory under the sync root.
	// Nothing inside it is ever scanned or synced.
	MetadataDirName = ".baycat"

	manifestFileName = "manifest"

	// RemoteManifestName is the object key suffix the remote manifest
	// is stored under, directly below the destination prefix.
	RemoteManifestName = ".baycat_s3manifest"
)

// LocalPath returns the manifest file path for a sync root.
func LocalPath(root string) string {
	return filepath.Join(root, MetadataDirName, manifestFileName)
}

// LocalStore persists the local manifest under <root>/.baycat/manifest.
// Writes are atomic: the new manifest is written to a temp file in the
// same directory and renamed over the old one, so a reader never
// observes a partial manifest. An advisory flock guards against two
// baycat runs updating the same tree; the remote side has no such
// guard and concurrent runs against one destination remain unsafe.
type LocalStore struct {
	path string
	lock *flock.Flock
}

// NewLocalStore creates a store for the manifest of the given root.
func NewLocalStore(root string) *LocalStore {
	path := LocalPath(root)
	return &LocalStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Lock acquires the advisory lock, creating the metadata directory if
// needed. Returns an error if another run holds it.
func (s *LocalStore) Lock() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock manifest: %w", err)
	}
	if !locked {
		return fmt.Errorf("manifest at %s is locked by another baycat run", s.path)
	}
	return nil
}

// Unlock releases the advisory lock.
func (s *LocalStore) Unlock() error {
	return s.lock.Unlock()
}

// Load reads the manifest. A missing file is not an error: an empty
// manifest is returned so first runs work without ceremony.
func (s *LocalStore) Load(root string) (*Manifest, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(root), nil
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Save writes the manifest atomically.
func (s *LocalStore) Save(m *Manifest) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, manifestFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// RemoteStore persists the remote manifest as a single object next to
// the synced tree. A commit is one Put, which the blob store applies
// atomically from a reader's perspective.
type RemoteStore struct {
	store blobstore.Client
	key   string
}

// NewRemoteStore creates a store for the manifest under the given
// destination prefix.
func NewRemoteStore(store blobstore.Client, prefix string) *RemoteStore {
	return &RemoteStore{
		store: store,
		key:   prefix + RemoteManifestName,
	}
}

// Key returns the object key the manifest lives under.
func (s *RemoteStore) Key() string {
	return s.key
}

// Fetch downloads and decodes the remote manifest. A missing object
// yields an empty manifest: the destination has never been synced.
func (s *RemoteStore) Fetch(ctx context.Context) (*Manifest, error) {
	body, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return New(""), nil
		}
		return nil, fmt.Errorf("fetch remote manifest: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read remote manifest: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Commit uploads the manifest, replacing the previous copy.
func (s *RemoteStore) Commit(ctx context.Context, m *Manifest) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return err
	}
	err := s.store.Put(ctx, &blobstore.PutRequest{
		Key:  s.key,
		Body: bytes.NewReader(buf.Bytes()),
		Size: int64(buf.Len()),
	})
	if err != nil {
		return fmt.Errorf("commit remote manifest: %w", err)
	}
	return nil
}
