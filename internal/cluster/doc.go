// Package cluster provides the wire types and small HTTP helpers shared
// between the coordination service and worker processes of the Hosted
// Storage Manager, plus the document-id grammar that ties them together.
//
// # Overview
//
// Every document lives on exactly one worker at a time. The coordinator
// (internal/coordinator) tracks which worker that is; workers
// (cmd/worker) register themselves with the coordinator, answer health
// checks, and accept fetch/changed notifications routed to them. This
// package holds the types that cross that boundary (WorkerInfo,
// RegisterRequest, BroadcastRequest) plus parsing for the id grammar of
// spec.md §3/§6: plain ids, fork ids (`<docId>~<suffix>`), and snapshot
// refs (`<docId>~v=<snapshotId>`).
//
// # Architecture
//
//	┌──────────────┐   register, health, assign   ┌──────────────┐
//	│  coordinator │ ◄──────────────────────────── │    worker    │
//	│              │ ──────────────────────────────►│              │
//	└──────────────┘      broadcast (doc changed)    └──────────────┘
//
// # Communication protocol
//
// HTTP/JSON throughout:
//
//   - Worker registration: POST /register {worker: WorkerInfo}, sent with
//     PostJSON
//   - Health checking: GET /health, polled by the coordinator's
//     HealthMonitor
//
// BroadcastRequest defines a payload shape for coordinator-to-worker
// broadcasts; no /broadcast endpoint is served by either binary.
//
// # See also
//
//   - internal/coordinator: WorkerRegistry and HealthMonitor, the
//     consumers of WorkerInfo.
//   - internal/doclifecycle: the primary consumer of the document-id
//     grammar in this package.
package cluster
