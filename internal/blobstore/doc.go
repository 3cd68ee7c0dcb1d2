// Package blobstore implements the pluggable, versioned key→bytes store
// described in spec.md §4.1: the bottom layer the Hosted Storage Manager
// uses to durably replicate documents as blobs outside the worker fleet.
//
// # Overview
//
// A BlobStore knows nothing about documents, workers, or checksums — it is
// a dumb, versioned object store keyed by opaque strings. Each key can have
// many versions ("snapshots"); uploads always create a new version rather
// than overwriting one, and removal can target either a specific set of
// versions or the whole key.
//
// Two implementations ship in this package:
//
//   - InMemoryBlobStore — required by spec.md §1 for tests; also the
//     default for single-process development.
//   - S3BlobStore — production-grade, backed by a versioned S3 bucket via
//     aws-sdk-go-v2, using S3 object versions as BlobStore snapshots.
//
// CachingBlobStore wraps either one to exercise the stale-cache tolerance
// contract of spec.md §4.1 in tests (the "deliberately-caching test
// double" of spec.md §9).
//
// # Architecture
//
//	┌─────────────────────────────────────────┐
//	│              KeyedBlobStore              │  (internal/keyedblob)
//	│   (purpose, docId) → key                  │
//	└────────────────────┬──────────────────────┘
//	                     │
//	┌────────────────────▼──────────────────────┐
//	│                BlobStore                   │
//	│   exists / head / upload / download         │
//	│   versions / remove / url / isFatalError    │
//	└────────────────────┬──────────────────────┘
//	         ┌───────────┴────────────┐
//	┌────────▼────────┐      ┌────────▼────────┐
//	│ InMemoryBlobStore│      │   S3BlobStore    │
//	└─────────────────┘      └─────────────────┘
//
// # See also
//
//   - internal/keyedblob: the thin purpose/docId→key wrapper DocLifecycle
//     actually talks to.
//   - internal/checksum: the consistency oracle that cross-checks what a
//     BlobStore holds against what a worker believes is current.
package blobstore
