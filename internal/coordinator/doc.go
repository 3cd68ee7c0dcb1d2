// Package coordinator implements the HSM coordination service: the process
// workers register with, and the admin surface external callers use to
// observe and steer WorkerMap without linking against internal/doclifecycle
// directly (SPEC_FULL.md §D.1 "Worker fleet admin surface").
//
// # Overview
//
// Unlike the teacher's ShardRegistry (which hashed keys onto a fixed shard
// count and round-robin-assigned shards to nodes), the coordinator has no
// sharding decision to make: spec.md §4.4's WorkerMap already holds the
// single source of truth for which worker owns which document, with
// AssignDocWorker as its one compare-and-set primitive. Registry here is a
// thin HTTP-facing wrapper over a workermap.Map, giving operators a place to
// list workers, flip availability, and look up a document's current owner.
//
//	┌─────────────────────────────────────┐
//	│            coordinator               │
//	├─────────────────────────────────────┤
//	│  Registry   — wraps workermap.Map,   │
//	│               serves /workers,       │
//	│               /workers/{id}/avail.,  │
//	│               /docs/{id}/assignment  │
//	│  HealthMonitor — periodic polling of │
//	│               each worker's /health, │
//	│               flips availability off │
//	│               after consecutive      │
//	│               failures               │
//	└─────────────────────────────────────┘
//
// HealthMonitor keeps the teacher's ticker-driven poll loop and wait-group
// shutdown drain (internal/coordinator/health_monitor.go, formerly
// node-oriented) but acts on workermap.Map.SetWorkerAvailability instead of
// triggering shard redistribution: an unhealthy worker simply stops
// receiving new document assignments until it recovers.
package coordinator
