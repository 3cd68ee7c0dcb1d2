// Package doclifecycle implements DocLifecycle (spec.md §4.9), the
// top-level coordinator that drives every other HSM component:
// WorkerMap for assignment, ChecksumRegistry and LocalStore for the
// reconciliation decision of spec.md §4.3, LiveBackup plus KeyedBlobStore
// for pushes, PushScheduler for debounced uploads, SnapshotPruner for
// retention, and SchemaMigrator for on-open migration.
//
// fetchDoc is the entry point external callers use; it resolves the
// reconciliation matrix, opens the local SQLite file, runs migration if
// needed, and returns an opaque Handle. Concurrent fetchDoc calls for the
// same docId on one worker are deduplicated via singleflight so every
// caller observes the same Handle, matching spec.md §5's "all waiters
// receive the same handle". A lower-level prepareLocalDoc step is
// exposed separately and fails fast with ErrInParallel when a second
// caller races an in-flight one directly, rather than waiting — this
// flushes out callers that should have gone through fetchDoc instead.
//
// Handle holds a back-reference to its owning Lifecycle so Shutdown can
// force a final push and deregister itself. Go's garbage collector
// reclaims such cycles on its own, so unlike the source material's
// weak-reference requirement (spec.md §9) nothing special is needed here
// beyond Lifecycle's handle registry being the single long-lived owner —
// see DESIGN.md.
package doclifecycle
