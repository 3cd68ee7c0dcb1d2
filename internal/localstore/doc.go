// Package localstore implements LocalStore (spec.md §4.5): the
// filesystem-rooted tree of `.grist` SQLite files a worker keeps for the
// documents currently assigned to it.
//
// # Overview
//
// Every operation is scoped to a configured root directory. PathFor and
// HashMarkerFor give the two well-known paths per docId; Replace performs
// the write-tmp/fsync/rename dance that makes a content swap atomic from
// any external observer's point of view; CleanStrayBackups and Reconcile
// implement the crash-recovery behavior of spec.md §7 — a worker that
// restarts after a crash must never trust a local file it cannot verify
// against the shared ChecksumRegistry.
//
// SweepOrphanAttachments implements the on-close cleanup of spec.md §4.5:
// rows in a document's internal `_gristsys_Files` table that no
// `_grist_Attachments` row references are deleted so the file does not
// grow unboundedly from abandoned uploads.
package localstore
