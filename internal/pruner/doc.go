// Package pruner implements SnapshotPruner (spec.md §4.8): the
// per-document retention policy that decides which of a document's
// BlobStore versions survive a prune pass.
//
// Retention keeps the most recent K snapshots verbatim (K default 5) plus
// a coarse time-bucketed tail: at most one snapshot per hour for
// HourlyBuckets hours back, one per day for DailyBuckets days back, one
// per month for MonthlyBuckets months back. Index 0 (the newest snapshot)
// is never pruned, regardless of policy.
//
// Pruner runs prunes asynchronously off a worker goroutine per call so
// that callers (normally PushScheduler, after a successful upload) never
// block on retention bookkeeping. Tests needing determinism should use
// WaitIdle to await any in-flight prune before asserting on BlobStore
// state.
package pruner
