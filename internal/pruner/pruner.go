package pruner

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
)

// Store is the subset of KeyedBlobStore/BlobStore a Pruner needs.
type Store interface {
	Versions(ctx context.Context, key string) ([]blobstore.Snapshot, error)
	Remove(ctx context.Context, key string, snapshotIDs ...string) error
}

// Pruner runs SnapshotPruner passes for documents, asynchronously and
// off the caller's goroutine, tracked by a WaitGroup so tests can block
// until a pass has actually finished.
type Pruner struct {
	store   Store
	policy  Policy
	now     func() time.Time
	metrics *metrics

	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New returns a Pruner that prunes keys in store under policy. A nil
// nowFn defaults to time.Now. A nil reg skips metrics registration
// (tests construct multiple Pruners and would otherwise collide on the
// default registry).
func New(store Store, policy Policy, nowFn func() time.Time, reg prometheus.Registerer) *Pruner {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Pruner{store: store, policy: policy.withDefaults(), now: nowFn, metrics: newMetrics(reg)}
}

// Prune schedules an asynchronous retention pass for key (normally a
// document's KeyedBlobStore "doc" key). It is safe to call from
// PushScheduler's success path; it never blocks on BlobStore I/O.
func (p *Pruner) Prune(key string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		_ = p.pruneNow(context.Background(), key)
	}()
}

// PruneSync runs a retention pass for key synchronously and returns any
// error, for callers (migration, tests, admin tooling) that need the
// outcome rather than fire-and-forget behavior.
func (p *Pruner) PruneSync(ctx context.Context, key string) error {
	return p.pruneNow(ctx, key)
}

func (p *Pruner) pruneNow(ctx context.Context, key string) error {
	p.metrics.runsTotal.Inc()

	versions, err := p.store.Versions(ctx, key)
	if err != nil {
		p.metrics.failuresTotal.Inc()
		return err
	}
	if len(versions) == 0 {
		return nil
	}

	sortDesc(versions)
	keep := Keep(versions, p.policy, p.now())

	var toRemove []string
	for _, v := range versions {
		if !keep[v.SnapshotID] {
			toRemove = append(toRemove, v.SnapshotID)
		}
	}
	if len(toRemove) == 0 {
		return nil
	}
	if err := p.store.Remove(ctx, key, toRemove...); err != nil {
		p.metrics.failuresTotal.Inc()
		return err
	}
	p.metrics.removedTotal.Add(float64(len(toRemove)))
	return nil
}

// WaitIdle blocks until every prune scheduled before this call has
// finished (the testWaitForPrunes hook named in spec.md §4.8). It does
// not prevent new prunes from being scheduled concurrently by other
// goroutines; tests wanting a clean snapshot should stop scheduling
// before calling WaitIdle.
func (p *Pruner) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new Prune calls and awaits any in flight,
// mirroring the health monitor's wg.Wait()-based graceful Stop.
func (p *Pruner) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.WaitIdle(ctx)
}
