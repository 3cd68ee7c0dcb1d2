package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Head, Download, and Versions when the
// requested key (or the requested version of it) does not exist.
var ErrNotFound = errors.New("blobstore: key not found")

// Snapshot describes one stored version of a key.
type Snapshot struct {
	// SnapshotID is an opaque, store-assigned version token. For
	// InMemoryBlobStore this is a uuid; for S3BlobStore it is the bucket's
	// native VersionId.
	SnapshotID string

	// Size is the object size in bytes at this version.
	Size int64

	// LastModified is when this version was written.
	LastModified time.Time

	// Metadata is the caller-supplied key/value pairs attached at Upload
	// time (e.g. docId, schema version, content hash).
	Metadata map[string]string
}

// BlobStore is the versioned object store the Hosted Storage Manager
// layers everything else on top of (spec.md §4.1). Implementations must be
// safe for concurrent use.
//
// Every method takes a plain string key; callers needing the
// purpose/docId addressing scheme should go through internal/keyedblob
// rather than reimplement key construction.
type BlobStore interface {
	// Exists reports whether key has at least one stored version.
	Exists(ctx context.Context, key string) (bool, error)

	// Head returns metadata for the named version of key, or for the
	// latest version if snapshotID is empty. Returns ErrNotFound if
	// absent.
	Head(ctx context.Context, key, snapshotID string) (Snapshot, error)

	// Upload writes r's contents as a new version of key and returns the
	// snapshot id assigned to it. Uploads never overwrite a prior
	// version; they append one.
	Upload(ctx context.Context, key string, r io.Reader, metadata map[string]string) (Snapshot, error)

	// Download writes the named version of key (or the latest, if
	// snapshotID is empty) to w. Returns the snapshot id actually read.
	Download(ctx context.Context, key, snapshotID string, w io.Writer) (string, error)

	// Versions lists all stored versions of key, newest first.
	Versions(ctx context.Context, key string) ([]Snapshot, error)

	// Remove deletes the named versions of key. An empty snapshotIDs
	// removes every version (the key ceases to exist).
	Remove(ctx context.Context, key string, snapshotIDs ...string) error

	// URL returns an operator-facing locator for key, for logging and
	// diagnostics only — never parsed back by HSM code.
	URL(key string) string

	// IsFatalError classifies err as worth retrying (false) or not
	// (true). PushScheduler and DocLifecycle consult this before
	// deciding whether a storage failure is transient (spec.md §7).
	IsFatalError(err error) bool
}
