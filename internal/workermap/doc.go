// Package workermap implements WorkerMap (spec.md §4.4): the shared,
// durable registry that assigns each document to at most one worker in
// the fleet at a time.
//
// # Overview
//
// Workers register themselves and toggle their own availability;
// AssignDocWorker is the only mutual-exclusion primitive protecting write
// access to a document (spec.md §5, "Locking discipline"). Once a docId
// has an assignment, every subsequent AssignDocWorker call for that docId
// — from any worker, any process — must return the same worker id, even
// under a race: idempotence here is what makes "exactly one writer"
// actually hold across the fleet, not just within one process.
//
// InMemoryMap is the process-local implementation used by single-process
// tests and deployments. RedisMap uses Redis `SET ... NX` for the
// compare-and-set semantics AssignDocWorker needs across processes, the
// same pool-based wiring as internal/checksum's RedisRegistry.
package workermap
