package planner

import (
	"context"
	"testing"

	"github.com/baycat-io/baycat/pkg/manifest"
)

func TestReconcileAdoptsUntrackedUpload(t *testing.T) {
	// Crash after upload, before the manifest commit: the object is in
	// the bucket, the remote manifest has never heard of it.
	store := newFakeStore()
	orphan := rec("d.txt", "digest-d", 0o644)
	store.put("prefix/d.txt", "datadata", manifest.ObjectMetadata(orphan))

	remote := manifest.New("")
	corrected, err := Reconcile(context.Background(), store, "prefix/", remote)
	if err != nil {
		t.Fatal(err)
	}

	got := corrected.Get("d.txt")
	if got == nil {
		t.Fatal("reconcile did not adopt the orphaned upload")
	}
	if got.Checksum != "digest-d" {
		t.Errorf("adopted checksum = %q, want %q", got.Checksum, "digest-d")
	}

	// Identical local content must now produce no duplicate upload.
	local := build(rec("d.txt", "digest-d", 0o644))
	if ops := Diff(local, corrected, Options{}); len(ops) != 0 {
		t.Errorf("after reconcile, identical content produced %v", ops)
	}

	// Different local content is still an upload.
	changed := build(rec("d.txt", "digest-other", 0o644))
	ops := Diff(changed, corrected, Options{})
	if len(ops) != 1 || ops[0].Kind != OpUpload {
		t.Errorf("after reconcile, changed content produced %v, want Upload", ops)
	}
}

func TestReconcileDropsManifestEntryWithoutObject(t *testing.T) {
	store := newFakeStore()

	remote := build(rec("ghost.txt", "digest-g", 0o644))
	corrected, err := Reconcile(context.Background(), store, "prefix/", remote)
	if err != nil {
		t.Fatal(err)
	}
	if corrected.Get("ghost.txt") != nil {
		t.Error("entry with no backing object should be dropped")
	}
	if remote.Get("ghost.txt") == nil {
		t.Error("reconcile must not mutate its input manifest")
	}
}

func TestReconcileSkipsManifestObjectAndCurrentEntries(t *testing.T) {
	store := newFakeStore()
	store.put("prefix/"+manifest.RemoteManifestName, `{"version":1}`, nil)

	current := rec("ok.txt", "digest-ok", 0o644)
	current.Size = 4
	store.put("prefix/ok.txt", "okok", manifest.ObjectMetadata(current))

	remote := build(current)
	corrected, err := Reconcile(context.Background(), store, "prefix/", remote)
	if err != nil {
		t.Fatal(err)
	}

	if corrected.Get(manifest.RemoteManifestName) != nil {
		t.Error("the manifest object itself must never become an entry")
	}
	if len(store.headCalls) != 0 {
		t.Errorf("entries whose size matches the listing must not be HEADed, got %v", store.headCalls)
	}
}

func TestReconcileRefreshesStaleEntry(t *testing.T) {
	store := newFakeStore()
	fresh := rec("s.txt", "digest-new", 0o644)
	fresh.Size = 10
	store.put("prefix/s.txt", "0123456789", manifest.ObjectMetadata(fresh))

	stale := rec("s.txt", "digest-old", 0o644)
	stale.Size = 3
	remote := build(stale)

	corrected, err := Reconcile(context.Background(), store, "prefix/", remote)
	if err != nil {
		t.Fatal(err)
	}
	got := corrected.Get("s.txt")
	if got == nil || got.Checksum != "digest-new" || got.Size != 10 {
		t.Errorf("stale entry not refreshed: %+v", got)
	}
}

func TestReconcileKeepsNonFileEntryOverStaleObject(t *testing.T) {
	// A path that flipped from file to directory may still have the
	// old file object in the bucket. The committed record wins; the
	// leftover must never be adopted back as a file record.
	store := newFakeStore()
	old := rec("thing", "digest-old", 0o644)
	store.put("prefix/thing", "old body", manifest.ObjectMetadata(old))

	remote := build(&manifest.FileRecord{RelPath: "thing", Kind: manifest.KindDir, Mode: 0o755})
	corrected, err := Reconcile(context.Background(), store, "prefix/", remote)
	if err != nil {
		t.Fatal(err)
	}

	got := corrected.Get("thing")
	if got == nil || got.Kind != manifest.KindDir {
		t.Fatalf("corrected record = %+v, want the directory record kept", got)
	}
	if len(store.headCalls) != 0 {
		t.Errorf("stale object must not be HEADed, got %v", store.headCalls)
	}
}

func TestReconcileKeepsDirAndSymlinkEntries(t *testing.T) {
	store := newFakeStore()
	remote := build(
		&manifest.FileRecord{RelPath: "docs", Kind: manifest.KindDir, Mode: 0o755},
		&manifest.FileRecord{RelPath: "link", Kind: manifest.KindSymlink, LinkTarget: "docs"},
	)

	corrected, err := Reconcile(context.Background(), store, "prefix/", remote)
	if err != nil {
		t.Fatal(err)
	}
	if corrected.Get("docs") == nil || corrected.Get("link") == nil {
		t.Error("directory and symlink entries must survive reconciliation")
	}
}
