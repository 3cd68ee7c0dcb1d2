package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slices"

	"github.com/gristlabs/grist-core-sub007/internal/cluster"
	"github.com/gristlabs/grist-core-sub007/internal/workermap"
)

// Registry is the coordinator's view of the worker fleet: a thin,
// HTTP-facing wrapper over a workermap.Map that additionally remembers
// each worker's registration metadata (endpoints, last-known status) for
// the /workers listing endpoint, which workermap.Map itself has no reason
// to expose.
//
// Registry replaces the teacher's ShardRegistry. There is no shard count,
// no consistent-hash ring, and no rebalancing: spec.md's single-writer
// model means a document has exactly one owning worker at a time, decided
// entirely by the wrapped Map's AssignDocWorker.
type Registry struct {
	workers workermap.Map
	metrics *metrics

	mu    sync.RWMutex
	known map[string]cluster.WorkerInfo
}

// NewRegistry wraps workers, an already-constructed WorkerMap (in-memory
// or Redis-backed). A nil reg skips metrics registration.
func NewRegistry(workers workermap.Map, reg prometheus.Registerer) *Registry {
	return &Registry{workers: workers, known: make(map[string]cluster.WorkerInfo), metrics: newMetrics(reg)}
}

// Register adds or re-registers a worker, recording its endpoints and
// marking it available for new assignments.
func (r *Registry) Register(ctx context.Context, info cluster.WorkerInfo) error {
	if info.ID == "" {
		return fmt.Errorf("coordinator: worker id must not be empty")
	}
	if err := r.workers.AddWorker(ctx, info.ID, workermap.Endpoints{
		PublicURL:   info.PublicURL,
		InternalURL: info.InternalURL,
	}); err != nil {
		return err
	}

	info.Available = true
	info.Status = "unknown"

	r.mu.Lock()
	r.known[info.ID] = info
	r.metrics.workersRegistered.Set(float64(len(r.known)))
	r.mu.Unlock()
	return nil
}

// Deregister removes a worker from the fleet, releasing every document
// lease it held.
func (r *Registry) Deregister(ctx context.Context, id string) error {
	if err := r.workers.RemoveWorker(ctx, id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.known, id)
	r.metrics.workersRegistered.Set(float64(len(r.known)))
	r.mu.Unlock()
	return nil
}

// SetAvailability toggles whether id accepts new document assignments,
// implementing the setWorkerAvailability operation of spec.md §4.4.
func (r *Registry) SetAvailability(ctx context.Context, id string, available bool) error {
	if err := r.workers.SetWorkerAvailability(ctx, id, available); err != nil {
		return err
	}
	r.mu.Lock()
	if info, ok := r.known[id]; ok {
		info.Available = available
		r.known[id] = info
	}
	r.mu.Unlock()
	return nil
}

// setHealthStatus records the most recent health-check verdict for id,
// called by HealthMonitor; it never touches the underlying Map, since
// transient health is distinct from the operator-controlled availability
// flag (an unhealthy worker's assignments are not torn down automatically).
func (r *Registry) setHealthStatus(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.known[id]; ok {
		info.Status = status
		r.known[id] = info
	}
}

// List returns every known worker, sorted by id for a stable response.
func (r *Registry) List() []cluster.WorkerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.known))
	for id := range r.known {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]cluster.WorkerInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.known[id])
	}
	return out
}

// Assignment reports which worker currently owns docID, if any.
func (r *Registry) Assignment(ctx context.Context, docID string) (cluster.DocAssignment, error) {
	r.metrics.assignmentsTotal.Inc()
	workerID, ok, err := r.workers.GetDocWorker(ctx, docID)
	if err != nil {
		return cluster.DocAssignment{}, err
	}
	if !ok {
		return cluster.DocAssignment{DocID: docID}, nil
	}
	return cluster.DocAssignment{DocID: docID, WorkerID: workerID}, nil
}

// knownIDs returns every registered worker id, used by HealthMonitor to
// decide who to poll without exposing the known map directly.
func (r *Registry) knownIDs() []cluster.WorkerInfo {
	return r.List()
}
