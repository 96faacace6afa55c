package manifest

import (
	"io/fs"
	"strconv"

	"github.com/baycat-io/baycat/pkg/blobstore"
)

// Object metadata keys stored with every uploaded blob. They carry the
// FileRecord fields S3 does not track itself, so permissions and
// ownership survive a restore and a lost manifest can be rebuilt from
// the bucket.
const (
	metaKind     = "baycat-kind"
	metaChecksum = "baycat-checksum"
	metaMode     = "baycat-mode"
	metaUID      = "baycat-uid"
	metaGID      = "baycat-gid"
	metaMtimeNs  = "baycat-mtime-ns"
	metaTarget   = "baycat-link-target"
)

// ObjectMetadata flattens a record into the metadata map stored with
// its blob.
func ObjectMetadata(rec *FileRecord) map[string]string {
	md := map[string]string{
		metaKind:    string(rec.Kind),
		metaMode:    strconv.FormatUint(uint64(rec.Mode), 8),
		metaUID:     strconv.Itoa(rec.UID),
		metaGID:     strconv.Itoa(rec.GID),
		metaMtimeNs: strconv.FormatInt(rec.ModTimeNs, 10),
	}
	if rec.Checksum != "" {
		md[metaChecksum] = rec.Checksum
	}
	if rec.LinkTarget != "" {
		md[metaTarget] = rec.LinkTarget
	}
	return md
}

// RecordFromObject rebuilds a FileRecord for an object found in the
// bucket. Fields absent from the object metadata (an upload made by
// other tooling) are left at their zero values; the checksum in
// particular stays empty, which the diff treats as changed content.
func RecordFromObject(relPath string, info *blobstore.ObjectInfo) *FileRecord {
	rec := &FileRecord{
		RelPath:   relPath,
		Kind:      KindFile,
		Size:      info.Size,
		ModTimeNs: info.LastModified.UnixNano(),
	}
	md := info.Metadata
	if md == nil {
		return rec
	}
	if kind, ok := md[metaKind]; ok {
		rec.Kind = Kind(kind)
	}
	rec.Checksum = md[metaChecksum]
	rec.LinkTarget = md[metaTarget]
	if mode, err := strconv.ParseUint(md[metaMode], 8, 32); err == nil {
		rec.Mode = fs.FileMode(mode)
	}
	if uid, err := strconv.Atoi(md[metaUID]); err == nil {
		rec.UID = uid
	}
	if gid, err := strconv.Atoi(md[metaGID]); err == nil {
		rec.GID = gid
	}
	if mtime, err := strconv.ParseInt(md[metaMtimeNs], 10, 64); err == nil {
		rec.ModTimeNs = mtime
	}
	return rec
}
