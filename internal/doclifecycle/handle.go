package doclifecycle

import (
	"context"
	"database/sql"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
)

// Handle is the opaque document handle fetchDoc returns. Per spec.md
// §4.9 it exposes only SQL execution, initialization-wait, shutdown, and
// snapshot listing — everything else (reconciliation, pushing, pruning)
// is Lifecycle's concern, reached only through the back-reference.
type Handle struct {
	lifecycle *Lifecycle
	docID     string
	db        *sql.DB
	ready     chan struct{}
}

func newHandle(l *Lifecycle, docID string, db *sql.DB) *Handle {
	return &Handle{lifecycle: l, docID: docID, db: db, ready: make(chan struct{})}
}

// DocID returns the handle's document id.
func (h *Handle) DocID() string { return h.docID }

// WaitReady blocks until schema migration (if any) has finished running
// against this handle, or ctx is canceled first.
func (h *Handle) WaitReady(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exec runs a mutating statement and marks the document dirty so
// PushScheduler picks up the change, implementing spec.md §2's "any
// changed notification enqueues a push job".
func (h *Handle) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := h.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	h.lifecycle.scheduler.MarkDirty(h.docID)
	return result, nil
}

// Query runs a read-only statement; it does not mark the document dirty.
func (h *Handle) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return h.db.QueryContext(ctx, query, args...)
}

// QueryRow runs a read-only statement expected to return at most one row.
func (h *Handle) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return h.db.QueryRowContext(ctx, query, args...)
}

// Snapshots lists this document's stored snapshots, newest first.
func (h *Handle) Snapshots(ctx context.Context) ([]blobstore.Snapshot, error) {
	return h.lifecycle.GetSnapshots(ctx, h.docID)
}

// Shutdown runs the orphan-attachment sweep, forces a final synchronous
// push to completion, then closes the underlying database and releases
// this handle so a later fetchDoc opens fresh, per spec.md §3 invariant 7
// / §5's final-push-before-release contract and §4.5's "an orphan-
// attachment sweep runs on close". The sweep runs before the push so its
// result is captured in the last snapshot rather than left for the next
// open to discover.
func (h *Handle) Shutdown(ctx context.Context) error {
	h.lifecycle.handlesMu.Lock()
	if h.lifecycle.handles[h.docID] == h {
		delete(h.lifecycle.handles, h.docID)
	}
	h.lifecycle.handlesMu.Unlock()

	if _, err := h.lifecycle.local.SweepOrphanAttachments(ctx, h.docID); err != nil {
		h.db.Close()
		return err
	}

	err := h.lifecycle.doPush(ctx, h.docID, "")
	h.db.Close()
	return err
}
