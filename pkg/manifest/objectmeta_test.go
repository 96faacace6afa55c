package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/baycat-io/baycat/pkg/blobstore"
)

func TestObjectMetadataRoundTrip(t *testing.T) {
	rec := fileRecord("pics/cat.jpg", "sum-cat")

	info := &blobstore.ObjectInfo{
		Key:          "prefix/pics/cat.jpg",
		Size:         rec.Size,
		LastModified: time.Now(),
		Metadata:     ObjectMetadata(rec),
	}
	got := RecordFromObject("pics/cat.jpg", info)

	assert.Equal(t, rec.Kind, got.Kind)
	assert.Equal(t, rec.Checksum, got.Checksum)
	assert.Equal(t, rec.Mode, got.Mode)
	assert.Equal(t, rec.UID, got.UID)
	assert.Equal(t, rec.GID, got.GID)
	assert.Equal(t, rec.ModTimeNs, got.ModTimeNs)
}

func TestRecordFromForeignObject(t *testing.T) {
	// An object uploaded by other tooling has no baycat metadata; the
	// rebuilt record must have an empty checksum so the diff treats
	// the content as changed rather than silently trusting it.
	info := &blobstore.ObjectInfo{
		Key:          "prefix/stray.bin",
		Size:         1024,
		LastModified: time.Unix(1700000000, 0),
	}
	got := RecordFromObject("stray.bin", info)

	assert.Equal(t, KindFile, got.Kind)
	assert.Equal(t, int64(1024), got.Size)
	assert.Empty(t, got.Checksum)
	assert.Equal(t, time.Unix(1700000000, 0).UnixNano(), got.ModTimeNs)
}
