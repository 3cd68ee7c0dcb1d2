package keyedblob

import (
	"context"
	"strings"
	"testing"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
)

func TestStoreKeyLayout(t *testing.T) {
	inner := blobstore.NewInMemoryBlobStore()
	s := New(inner, "hsm")

	if _, err := s.Upload(context.Background(), "doc", "D1", strings.NewReader("x"), nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	exists, err := inner.Exists(context.Background(), "hsm/doc/D1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("expected the underlying store to be keyed at hsm/doc/D1")
	}
}

func TestStoreEmptyPrefix(t *testing.T) {
	inner := blobstore.NewInMemoryBlobStore()
	s := New(inner, "")

	if _, err := s.Upload(context.Background(), "attach", "D1", strings.NewReader("x"), nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	exists, _ := inner.Exists(context.Background(), "attach/D1")
	if !exists {
		t.Fatal("expected key attach/D1 with no base prefix")
	}
}

func TestStorePurposesAreIndependent(t *testing.T) {
	inner := blobstore.NewInMemoryBlobStore()
	s := New(inner, "hsm")
	ctx := context.Background()

	s.Upload(ctx, "doc", "D1", strings.NewReader("primary"), nil)
	s.Upload(ctx, "attach", "D1", strings.NewReader("attachments"), nil)

	docExists, _ := s.Exists(ctx, "doc", "D1")
	attachExists, _ := s.Exists(ctx, "attach", "D1")
	if !docExists || !attachExists {
		t.Fatalf("expected both purposes to exist independently: doc=%v attach=%v", docExists, attachExists)
	}

	if err := s.Remove(ctx, "doc", "D1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	docExists, _ = s.Exists(ctx, "doc", "D1")
	attachExists, _ = s.Exists(ctx, "attach", "D1")
	if docExists {
		t.Error("doc purpose should be gone after Remove")
	}
	if !attachExists {
		t.Error("attach purpose should be untouched by removing doc purpose")
	}
}
