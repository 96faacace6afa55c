package manifest

import (
	"io/fs"
	"time"
)

// Kind classifies a filesystem entry tracked by a manifest.
type Kind string

const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
)

// FileRecord captures the state of a single filesystem entry: metadata
// plus a content checksum for regular files. Records are pure values;
// the scanner produces them and the planner/executor only read them.
type FileRecord struct {
	RelPath    string      `json:"rel_path"`
	Kind       Kind        `json:"kind"`
	Size       int64       `json:"size"`
	ModTimeNs  int64       `json:"mtime_ns"`
	Mode       fs.FileMode `json:"mode"`
	UID        int         `json:"uid"`
	GID        int         `json:"gid"`
	Checksum   string      `json:"checksum,omitempty"`
	LinkTarget string      `json:"link_target,omitempty"`
}

// ModTime returns the modification time at the resolution recorded.
func (r *FileRecord) ModTime() time.Time {
	return time.Unix(0, r.ModTimeNs)
}

// SameStat reports whether size and mtime match. This is the scan-time
// test that decides whether a previously computed checksum may be
// carried forward without re-reading the file.
func (r *FileRecord) SameStat(other *FileRecord) bool {
	return r.Size == other.Size && r.ModTimeNs == other.ModTimeNs
}

// ContentEqual reports whether two records describe identical content.
// Size and mtime are deliberately not consulted here: by diff time the
// checksum is the sole authority for regular files. Symlinks compare
// targets, directories have no content.
func (r *FileRecord) ContentEqual(other *FileRecord) bool {
	if r.Kind != other.Kind {
		return false
	}
	switch r.Kind {
	case KindSymlink:
		return r.LinkTarget == other.LinkTarget
	case KindDir:
		return true
	default:
		return r.Checksum == other.Checksum
	}
}

// MetadataEqual reports whether the restorable metadata (mode, owner,
// mtime) matches.
func (r *FileRecord) MetadataEqual(other *FileRecord) bool {
	return r.Mode == other.Mode &&
		r.UID == other.UID &&
		r.GID == other.GID &&
		r.ModTimeNs == other.ModTimeNs
}
