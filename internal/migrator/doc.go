// Package migrator implements SchemaMigrator (spec.md §4.10): on-open
// migration of a document's internal tables to the compiled-in current
// schema version.
//
// Migration reads `_grist_DocInfo.schemaVersion`, and if it is behind
// CurrentSchemaVersion, runs every intervening Migration in order inside
// a single transaction, then labels the resulting snapshot
// `migrate-schema-v<old>-to-v<new>` via an injected snapshot-labeling
// hook (DocLifecycle's makeBackup, spec.md §4.9). An already-current
// document is left untouched: no transaction is opened and no snapshot
// is requested. A document opened read-only (a snapshot view) never
// migrates in place, regardless of its schemaVersion.
package migrator
