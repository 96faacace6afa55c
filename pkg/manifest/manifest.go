// Package manifest defines the persisted snapshot of a directory tree:
// one FileRecord per entry, keyed by slash-separated path relative to
// the sync root. A manifest is pure data; the scanner mutates the local
// side and the executor mutates the remote side after operations land.
package manifest

import (
	"sort"
)

// FormatVersion is written into every serialized manifest. Decoding
// rejects any other version with a FormatError.
const FormatVersion = 1

// Manifest maps relative paths to FileRecords. Root and PoolSize are
// informational: Root records where the snapshot was taken, PoolSize
// the checksum pool width chosen at creation time, reused as the
// default for later updates. Neither participates in comparison.
type Manifest struct {
	Version  int                    `json:"version"`
	Root     string                 `json:"root,omitempty"`
	PoolSize int                    `json:"pool_size,omitempty"`
	Entries  map[string]*FileRecord `json:"entries"`
}

// New returns an empty manifest for the given root.
func New(root string) *Manifest {
	return &Manifest{
		Version: FormatVersion,
		Root:    root,
		Entries: map[string]*FileRecord{},
	}
}

// Get returns the record for a relative path, or nil.
func (m *Manifest) Get(relPath string) *FileRecord {
	return m.Entries[relPath]
}

// Set inserts or replaces the record under its own RelPath.
func (m *Manifest) Set(rec *FileRecord) {
	m.Entries[rec.RelPath] = rec
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Paths returns all entry paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Entries))
	for p := range m.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Copy returns a manifest sharing no entry map with the original.
// Records themselves are copied too, so the executor can fold
// confirmed operations into a working copy without disturbing the
// manifest the diff was computed from.
func (m *Manifest) Copy() *Manifest {
	out := &Manifest{
		Version:  m.Version,
		Root:     m.Root,
		PoolSize: m.PoolSize,
		Entries:  make(map[string]*FileRecord, len(m.Entries)),
	}
	for p, rec := range m.Entries {
		cp := *rec
		out.Entries[p] = &cp
	}
	return out
}

// MarkStored records that the content and metadata described by rec
// are now present remotely. Called by the executor only after the
// corresponding operation is confirmed complete.
func (m *Manifest) MarkStored(rec *FileRecord) {
	cp := *rec
	m.Entries[rec.RelPath] = &cp
}

// MarkDeleted drops the entry for a confirmed remote deletion.
func (m *Manifest) MarkDeleted(relPath string) {
	delete(m.Entries, relPath)
}

// Equal reports whether two manifests carry the same entries. Root and
// PoolSize are excluded: the same snapshot may live in several places.
func (m *Manifest) Equal(other *Manifest) bool {
	if len(m.Entries) != len(other.Entries) {
		return false
	}
	for p, rec := range m.Entries {
		o := other.Entries[p]
		if o == nil || *rec != *o {
			return false
		}
	}
	return true
}
