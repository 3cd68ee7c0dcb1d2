// Package checksum implements ChecksumRegistry (spec.md §4.3): the shared
// string→string map the Hosted Storage Manager uses as the consistency
// oracle between a worker's local file, the blob store, and every other
// worker in the fleet.
//
// The registry only ever sees three kinds of value for a key: the literal
// "null" (content not yet pushed), an opaque non-empty token (the last
// pushed content's derived checksum), or the Deleted sentinel. Reconcile
// implements the decision matrix that tells DocLifecycle what to do with a
// local copy given what the registry currently says.
//
// Two backends are provided: InMemoryRegistry for tests, and
// RedisRegistry, a durable implementation over a redigo connection pool —
// the same low-latency coordination service pattern WorkerMap uses.
package checksum
