package pushscheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/prometheus/client_golang/prometheus"
)

// Status is a document's position in the push state machine.
type Status int

const (
	Idle Status = iota
	Dirty
	Uploading
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dirty:
		return "dirty"
	case Uploading:
		return "uploading"
	default:
		return "unknown"
	}
}

// PushFunc performs one push attempt for docID: take a backup, upload it,
// update the checksum registry, whatever the caller's pipeline requires.
// A non-nil error is classified via IsFatal to decide whether Scheduler
// retries it.
type PushFunc func(ctx context.Context, docID string) error

// IsFatalFunc classifies a PushFunc error as fatal (no retry) or
// transient (retry with backoff), mirroring BlobStore.isFatalError.
type IsFatalFunc func(err error) bool

// Options configures a Scheduler. Zero-valued fields fall back to the
// defaults named in spec.md §6.
type Options struct {
	// DebounceDelay is how long Scheduler waits after MarkDirty before
	// starting a push, to coalesce bursts of changes. Default 0.5s.
	DebounceDelay time.Duration

	// InitialRetryDelay is the backoff before the first retry of a
	// failed, non-fatal push. Default 3s; doubles on each subsequent
	// retry, capped at MaxRetryDelay.
	InitialRetryDelay time.Duration

	// MaxRetryDelay bounds the exponential backoff. Default 5 minutes.
	MaxRetryDelay time.Duration

	// MaxConcurrentUploads is the global ceiling on simultaneous
	// in-flight pushes across all documents. Default 8.
	MaxConcurrentUploads int64

	// IsFatal classifies push errors. A nil IsFatal treats every error
	// as transient (always retry), matching a conservative default.
	IsFatal IsFatalFunc

	// Registerer receives the scheduler's prometheus collectors. May be
	// nil to skip registration (e.g. in tests).
	Registerer prometheus.Registerer
}

func (o Options) withDefaults() Options {
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = 500 * time.Millisecond
	}
	if o.InitialRetryDelay <= 0 {
		o.InitialRetryDelay = 3 * time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 5 * time.Minute
	}
	if o.MaxConcurrentUploads <= 0 {
		o.MaxConcurrentUploads = 8
	}
	return o
}

// Scheduler is the per-process push scheduler. One Scheduler serves every
// document assigned to a worker.
type Scheduler struct {
	push    PushFunc
	isFatal IsFatalFunc
	opts    Options
	sem     *semaphore.Weighted
	metrics *metrics

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
	wg      sync.WaitGroup
}

type entry struct {
	mu       sync.Mutex
	status   Status
	followUp bool
	timer    *time.Timer
}

// New returns a Scheduler that calls push to perform each upload attempt.
func New(push PushFunc, opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		push:    push,
		isFatal: opts.IsFatal,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.MaxConcurrentUploads),
		metrics: newMetrics(opts.Registerer),
		entries: make(map[string]*entry),
	}
}

func (s *Scheduler) entryFor(docID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[docID]
	if !ok {
		e = &entry{}
		s.entries[docID] = e
	}
	return e
}

// MarkDirty signals that docID changed. In Idle it schedules an upload
// after the debounce delay; in Uploading it sets a follow-up flag so the
// next upload is not missed; in Dirty it is a no-op (a debounce is
// already pending).
func (s *Scheduler) MarkDirty(docID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	e := s.entryFor(docID)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.status {
	case Idle:
		e.status = Dirty
		e.timer = time.AfterFunc(s.opts.DebounceDelay, func() { s.runPush(docID) })
	case Dirty:
		// A debounce is already pending; nothing to do.
	case Uploading:
		e.followUp = true
	}
}

// Status returns docID's current position in the state machine.
func (s *Scheduler) Status(docID string) Status {
	e := s.entryFor(docID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// NeedsUpdate reports whether any tracked document is not Idle.
func (s *Scheduler) NeedsUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.mu.Lock()
		status := e.status
		e.mu.Unlock()
		if status != Idle {
			return true
		}
	}
	return false
}

// runPush transitions docID into Uploading and drives the push-with-retry
// loop to completion, then resolves the post-upload transition.
func (s *Scheduler) runPush(docID string) {
	e := s.entryFor(docID)
	e.mu.Lock()
	e.status = Uploading
	e.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	ctx := context.Background()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	s.metrics.inflightGauge.Inc()
	start := time.Now()
	err := s.pushWithRetry(ctx, docID)
	s.metrics.inflightGauge.Dec()
	s.sem.Release(1)

	if err == nil {
		s.metrics.pushesTotal.Inc()
		s.metrics.pushDuration.Observe(time.Since(start).Seconds())
	}

	e.mu.Lock()
	if e.followUp {
		e.followUp = false
		e.status = Dirty
		e.timer = time.AfterFunc(s.opts.DebounceDelay, func() { s.runPush(docID) })
	} else {
		e.status = Idle
	}
	e.mu.Unlock()
}

// pushWithRetry calls s.push once, then keeps retrying with exponential
// backoff as long as the error is classified non-fatal. It returns once
// the push has succeeded, an error is classified fatal, or ctx is
// canceled.
func (s *Scheduler) pushWithRetry(ctx context.Context, docID string) error {
	delay := s.opts.InitialRetryDelay
	for {
		err := s.push(ctx, docID)
		if err == nil {
			return nil
		}
		s.metrics.failuresTotal.Inc()

		if s.isFatal != nil && s.isFatal(err) {
			return fmt.Errorf("pushscheduler: fatal push error for %s: %w", docID, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.opts.MaxRetryDelay {
			delay = s.opts.MaxRetryDelay
		}
	}
}

// Close forces a final synchronous push for every document not already
// Idle, then awaits all in-flight and newly-forced pushes before
// returning. After Close, MarkDirty is a no-op.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	docIDs := make([]string, 0, len(s.entries))
	for docID := range s.entries {
		docIDs = append(docIDs, docID)
	}
	s.mu.Unlock()

	for _, docID := range docIDs {
		e := s.entryFor(docID)
		e.mu.Lock()
		status := e.status
		if e.timer != nil {
			e.timer.Stop()
		}
		e.mu.Unlock()
		if status != Idle {
			s.runPush(docID)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
