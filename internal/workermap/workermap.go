package workermap

import (
	"context"
	"errors"
)

// ErrNoAvailableWorkers is returned by AssignDocWorker when every
// registered worker is currently marked unavailable.
var ErrNoAvailableWorkers = errors.New("workermap: no available workers to assign")

// ErrUnknownWorker is returned by InMemoryMap's SetWorkerAvailability and
// RemoveWorker for a worker id that is not registered. RedisMap does not
// check registration and never returns it.
var ErrUnknownWorker = errors.New("workermap: unknown worker id")

// Endpoints is the routing information recorded for a worker, mirroring
// the PublicURL/InternalURL fields carried on cluster.WorkerInfo.
type Endpoints struct {
	PublicURL   string
	InternalURL string
}

// Map is the shared worker registry. Implementations must be safe for
// concurrent use, and (for any implementation intended to run across a
// real fleet) safe for concurrent use from multiple processes.
type Map interface {
	// AddWorker registers id with the given endpoints, available for
	// assignment immediately. Calling it again for an id already present
	// updates its endpoints and marks it available again, without
	// disturbing existing assignments.
	AddWorker(ctx context.Context, id string, endpoints Endpoints) error

	// RemoveWorker unregisters id and releases every document lease
	// currently assigned to it, so a later AssignDocWorker call for
	// those documents can pick a different worker.
	RemoveWorker(ctx context.Context, id string) error

	// SetWorkerAvailability marks id eligible or ineligible for new
	// assignments. It does not affect documents already assigned to id.
	SetWorkerAvailability(ctx context.Context, id string, available bool) error

	// AssignDocWorker returns the worker id holding docId's write lease,
	// assigning one if none exists yet. Concurrent calls for the same
	// unassigned docId must agree on exactly one winner.
	AssignDocWorker(ctx context.Context, docID string) (string, error)

	// GetDocWorker returns the worker id currently assigned to docID, or
	// ok=false if no assignment exists.
	GetDocWorker(ctx context.Context, docID string) (workerID string, ok bool, err error)

	// ReassignDocWorker clears docID's current assignment (if any) and
	// assigns a fresh one, implementing the "explicit reassignment"
	// lease-release path alongside worker removal.
	ReassignDocWorker(ctx context.Context, docID string) (string, error)
}
