// Package keyedblob adapts a blobstore.BlobStore to the
// (purpose, docId) addressing scheme DocLifecycle actually uses, per
// spec.md §4.2 and the key layout in §6: "<basePrefix>/<purpose>/<docId>".
//
// Purposes seen in practice are "doc" (the primary SQLite file) and
// "meta" (the document's metadata), but the type makes no
// assumption about the set — any caller-chosen string is a valid purpose.
package keyedblob
