package keyedblob

import (
	"context"
	"io"
	"path"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
)

// Store addresses a blobstore.BlobStore by (purpose, docId) pairs instead
// of raw keys. It has no state of its own beyond the prefix and the
// underlying store.
type Store struct {
	inner      blobstore.BlobStore
	basePrefix string
}

// New returns a Store that prefixes every key with basePrefix (which may
// be empty, meaning no common prefix).
func New(inner blobstore.BlobStore, basePrefix string) *Store {
	return &Store{inner: inner, basePrefix: basePrefix}
}

func (s *Store) key(purpose, docID string) string {
	if s.basePrefix == "" {
		return path.Join(purpose, docID)
	}
	return path.Join(s.basePrefix, purpose, docID)
}

// Exists reports whether any version of (purpose, docID) has been uploaded.
func (s *Store) Exists(ctx context.Context, purpose, docID string) (bool, error) {
	return s.inner.Exists(ctx, s.key(purpose, docID))
}

// Head returns metadata for the named (or latest) snapshot of
// (purpose, docID).
func (s *Store) Head(ctx context.Context, purpose, docID, snapshotID string) (blobstore.Snapshot, error) {
	return s.inner.Head(ctx, s.key(purpose, docID), snapshotID)
}

// Upload writes a new version of (purpose, docID).
func (s *Store) Upload(ctx context.Context, purpose, docID string, r io.Reader, metadata map[string]string) (blobstore.Snapshot, error) {
	return s.inner.Upload(ctx, s.key(purpose, docID), r, metadata)
}

// Download reads the named (or latest) snapshot of (purpose, docID).
func (s *Store) Download(ctx context.Context, purpose, docID, snapshotID string, w io.Writer) (string, error) {
	return s.inner.Download(ctx, s.key(purpose, docID), snapshotID, w)
}

// Versions lists every stored snapshot of (purpose, docID), newest first.
func (s *Store) Versions(ctx context.Context, purpose, docID string) ([]blobstore.Snapshot, error) {
	return s.inner.Versions(ctx, s.key(purpose, docID))
}

// Remove deletes the named snapshots of (purpose, docID), or all of them
// if snapshotIDs is empty.
func (s *Store) Remove(ctx context.Context, purpose, docID string, snapshotIDs ...string) error {
	return s.inner.Remove(ctx, s.key(purpose, docID), snapshotIDs...)
}

// URL returns an operator-facing locator for (purpose, docID).
func (s *Store) URL(purpose, docID string) string {
	return s.inner.URL(s.key(purpose, docID))
}

// IsFatalError delegates to the underlying BlobStore's classifier.
func (s *Store) IsFatalError(err error) bool {
	return s.inner.IsFatalError(err)
}
