// Package pushscheduler implements PushScheduler (spec.md §4.7): the
// per-document debounced, retrying uploader that turns "this document
// changed" notifications into backups, serialized per docId and bounded
// globally by a concurrency ceiling.
//
// # State machine
//
//	            MarkDirty                 debounce fires, push succeeds
//	   ┌──── Idle ─────────► Dirty ─────────────────────────► Idle
//	   │                        │                                ▲
//	   │                        │ debounce fires                 │
//	   │                        ▼                                │
//	   │                    Uploading ───── push succeeds, ───────┘
//	   │                        │           no follow-up
//	   │           MarkDirty    │
//	   └────────────────────────┘
//	     (sets follow-up flag, re-enters Dirty once Uploading finishes)
//
// Scheduler owns only the state machine, debounce timer, retry/backoff,
// and the concurrency ceiling. The actual work of a push — taking a
// LiveBackup, uploading via KeyedBlobStore, updating ChecksumRegistry,
// signaling SnapshotPruner — is supplied by the caller as a PushFunc;
// DocLifecycle is what wires that closure together (spec.md §4.9).
package pushscheduler
