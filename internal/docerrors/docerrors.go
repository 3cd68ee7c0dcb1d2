// Package docerrors defines the HSM's error taxonomy (spec.md §4.9/§7):
// Unavailable, Inconsistent, Deleted, ForkNotFound, SnapshotImmutable,
// MigrationRequired, and the TransientStorage classification for anything
// an external BlobStore's IsFatalError call reports as non-fatal.
package docerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by DocLifecycle operations. Callers should use
// errors.Is against these rather than string-matching messages.
var (
	// ErrUnavailable means WorkerMap refused assignment of a document to
	// this worker (spec.md §4.9).
	ErrUnavailable = errors.New("docerrors: worker unavailable for this document")

	// ErrInconsistent means a download's derived token disagreed with
	// ChecksumRegistry past the retry budget (spec.md §4.3, §8 scenario 2).
	ErrInconsistent = errors.New("docerrors: did not become consistent")

	// ErrDeleted means ChecksumRegistry holds the DELETED sentinel for
	// this document and the caller did not opt into creation-on-fetch
	// (spec.md §3 invariant 4, §9 open question 1).
	ErrDeleted = errors.New("docerrors: document deleted")

	// ErrForkNotFound means a fork id's trunk does not exist, or the fork
	// itself was never prepared.
	ErrForkNotFound = errors.New("docerrors: fork not found")

	// ErrSnapshotImmutable means an operation that mutates a document was
	// attempted against a snapshot reference (spec.md §4.9).
	ErrSnapshotImmutable = errors.New("docerrors: snapshot is immutable")

	// ErrMigrationRequired means SchemaMigrator declined to run
	// automatically (e.g. a read-only snapshot open) and the caller must
	// request migration explicitly.
	ErrMigrationRequired = errors.New("docerrors: schema migration required")

	// ErrInParallel means a second prepareLocalDoc call raced a first
	// still in flight for the same docId (spec.md §5).
	ErrInParallel = errors.New("docerrors: prepareLocalDoc already in parallel")
)

// Inconsistentf wraps ErrInconsistent with the docId and retry count that
// exhausted the budget, for operator-facing messages.
func Inconsistentf(docID string, attempts int) error {
	return fmt.Errorf("%s %q: did not become consistent after %d attempts: %w", docID, docID, attempts, ErrInconsistent)
}

// IsFatalFunc classifies a BlobStore error as worth retrying or not,
// mirroring BlobStore.isFatalError from spec.md §4.1.
type IsFatalFunc func(err error) bool

// IsTransientStorage reports whether err is a storage failure the
// PushScheduler should retry, per spec.md §7 class 1. A nil isFatal
// classifier treats every non-nil error as transient, matching the
// teacher's fail-open posture for health checks.
func IsTransientStorage(err error, isFatal IsFatalFunc) bool {
	if err == nil {
		return false
	}
	if isFatal == nil {
		return true
	}
	return !isFatal(err)
}
