// Package cluster provides wire types for the HSM coordinator/worker protocol.
// See doc.go for complete package documentation.
package cluster

import (
	"encoding/json"
	"time"
)

// WorkerInfo represents one worker process in the HSM fleet, containing the
// essential metadata needed for registration, health checking, and request
// routing decisions.
//
// WorkerInfo instances are used throughout the system for:
//   - Worker registration with the coordinator
//   - Health check targeting
//   - Document-assignment routing decisions
//   - Cluster state broadcasts
//
// Thread Safety:
// WorkerInfo is safe for concurrent read access once initialized.
// Modifications should be protected by external synchronization.
//
// Example:
//
//	worker := &WorkerInfo{
//	    ID:        "worker-1",
//	    PublicURL: "https://worker-1.example.com",
//	    InternalURL: "http://10.0.1.5:8081",
//	}
type WorkerInfo struct {
	// LastHealthCheck records when the worker was last checked by the
	// coordinator. Zero value indicates never checked.
	LastHealthCheck time.Time `json:"last_health_check,omitempty"`

	// ID is the unique identifier for this worker within the fleet.
	// Must be unique and stable across restarts.
	ID string `json:"id"`

	// PublicURL is the address end-user-facing collaborators use to reach
	// a document assigned to this worker (e.g. behind a load balancer).
	PublicURL string `json:"public_url"`

	// InternalURL is the address the coordinator and other workers use to
	// reach this worker directly (health checks, broadcasts).
	InternalURL string `json:"internal_url"`

	// Status is the current health status: "healthy", "unhealthy", or
	// "unknown". Updated by the coordinator's HealthMonitor.
	Status string `json:"status,omitempty"`

	// Available indicates whether the worker currently accepts new
	// document assignments (set via setWorkerAvailability, spec.md §4.4).
	Available bool `json:"available"`
}

// RegisterRequest encapsulates the data sent by a worker when registering
// with the coordinator to join the fleet.
//
// The registration process:
//  1. Worker creates RegisterRequest with its WorkerInfo
//  2. Worker POSTs request to coordinator's /register endpoint
//  3. Coordinator records the worker and answers 200 with an empty body
//
// Example request body:
//
//	{"worker": {"id": "worker-1", "public_url": "...", "internal_url": "..."}}
type RegisterRequest struct {
	// Worker contains the registering worker's metadata.
	Worker WorkerInfo `json:"worker"`
}

// BroadcastRequest is the wire shape of a message addressed to every
// worker: a target path plus a payload decoded according to that path.
// Only the type is defined here; neither cmd/coordinator nor cmd/worker
// sends or serves it.
//
// Example:
//
//	broadcast := &BroadcastRequest{
//	    Path:    "/cluster/state",
//	    Payload: json.RawMessage(`{"workers":["worker-1","worker-2"]}`),
//	}
type BroadcastRequest struct {
	// Path specifies the target endpoint or message type.
	Path string `json:"path"`

	// Payload contains the actual message data, deferred until a handler
	// decodes it based on Path.
	Payload json.RawMessage `json:"payload"`
}

// DocAssignment is returned by the coordinator's /docs/{id}/assignment
// endpoint, reporting which worker currently owns a document.
type DocAssignment struct {
	DocID    string `json:"doc_id"`
	WorkerID string `json:"worker_id,omitempty"`
}
