package blobstore

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestInMemoryBlobStoreUploadDownloadRoundTrip(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	snap, err := store.Upload(ctx, "doc1", strings.NewReader("hello"), map[string]string{"docId": "doc1"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if snap.SnapshotID == "" {
		t.Fatal("expected a non-empty snapshot id")
	}

	var buf bytes.Buffer
	gotID, err := store.Download(ctx, "doc1", "", &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if gotID != snap.SnapshotID {
		t.Errorf("Download returned id %q, want %q", gotID, snap.SnapshotID)
	}
	if buf.String() != "hello" {
		t.Errorf("Download body = %q, want %q", buf.String(), "hello")
	}
}

func TestInMemoryBlobStoreVersionsNewestFirst(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	var ids []string
	for _, body := range []string{"v1", "v2", "v3"} {
		snap, err := store.Upload(ctx, "doc1", strings.NewReader(body), nil)
		if err != nil {
			t.Fatalf("Upload(%s): %v", body, err)
		}
		ids = append(ids, snap.SnapshotID)
	}

	versions, err := store.Versions(ctx, "doc1")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3", len(versions))
	}
	for i, v := range versions {
		want := ids[len(ids)-1-i]
		if v.SnapshotID != want {
			t.Errorf("versions[%d].SnapshotID = %q, want %q", i, v.SnapshotID, want)
		}
	}
}

func TestInMemoryBlobStoreHeadMissingReturnsErrNotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, err := store.Head(context.Background(), "nope", "")
	if err != ErrNotFound {
		t.Fatalf("Head on missing key = %v, want ErrNotFound", err)
	}
}

func TestInMemoryBlobStoreRemoveSpecificVersion(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	first, _ := store.Upload(ctx, "doc1", strings.NewReader("v1"), nil)
	second, _ := store.Upload(ctx, "doc1", strings.NewReader("v2"), nil)

	if err := store.Remove(ctx, "doc1", first.SnapshotID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	versions, _ := store.Versions(ctx, "doc1")
	if len(versions) != 1 || versions[0].SnapshotID != second.SnapshotID {
		t.Fatalf("unexpected versions after partial remove: %+v", versions)
	}
}

func TestInMemoryBlobStoreRemoveAll(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	store.Upload(ctx, "doc1", strings.NewReader("v1"), nil)
	if err := store.Remove(ctx, "doc1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	exists, err := store.Exists(ctx, "doc1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected key to be gone after full Remove")
	}
}

func TestInMemoryBlobStoreUploadsDoNotAliasCallerBuffer(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	body := []byte("original")
	store.Upload(ctx, "doc1", bytes.NewReader(body), nil)
	body[0] = 'X'

	var buf bytes.Buffer
	if _, err := store.Download(ctx, "doc1", "", &buf); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if buf.String() != "original" {
		t.Errorf("stored data was mutated via caller's slice: got %q", buf.String())
	}
}

func TestCachingBlobStoreServesStaleExistsWithinTTL(t *testing.T) {
	inner := NewInMemoryBlobStore()
	cached := NewCachingBlobStore(inner, time.Hour)
	ctx := context.Background()

	exists, err := cached.Exists(ctx, "doc1")
	if err != nil || exists {
		t.Fatalf("Exists before upload = (%v, %v), want (false, nil)", exists, err)
	}

	inner.Upload(ctx, "doc1", strings.NewReader("v1"), nil)

	exists, err = cached.Exists(ctx, "doc1")
	if err != nil || exists {
		t.Fatalf("Exists through cache should still be stale: got (%v, %v)", exists, err)
	}

	cached.Invalidate("doc1")
	exists, err = cached.Exists(ctx, "doc1")
	if err != nil || !exists {
		t.Fatalf("Exists after Invalidate = (%v, %v), want (true, nil)", exists, err)
	}
}

func TestCachingBlobStoreUploadInvalidatesItsOwnKey(t *testing.T) {
	inner := NewInMemoryBlobStore()
	cached := NewCachingBlobStore(inner, time.Hour)
	ctx := context.Background()

	cached.Exists(ctx, "doc1") // populate false into the cache

	if _, err := cached.Upload(ctx, "doc1", strings.NewReader("v1"), nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	exists, err := cached.Exists(ctx, "doc1")
	if err != nil || !exists {
		t.Fatalf("Exists after own Upload = (%v, %v), want (true, nil)", exists, err)
	}
}
