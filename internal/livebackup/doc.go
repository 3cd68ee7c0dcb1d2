// Package livebackup implements LiveBackup (spec.md §4.6): producing a
// consistent copy of a live SQLite document file while readers and
// writers continue against the original.
//
// # Overview
//
// Backup drives sqlite3's native online-backup API (exposed by
// mattn/go-sqlite3 as SQLiteConn.Backup) in bounded steps: each Step
// copies a fixed page count under sqlite's own internal lock, then
// returns control so ordinary statements against the source can proceed.
// A BackupEvent fires immediately before and after each step so tests can
// assert the pairing never exceeds the responsiveness bound spec.md §4.6
// requires (≤100ms).
//
// The destination path is always cleared before starting, so a truncated
// or corrupt leftover from a previous crash never blocks progress — the
// only file ever published at dstPath is one that passed Finish().
package livebackup
