package pushscheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func shortOpts() Options {
	return Options{
		DebounceDelay:        10 * time.Millisecond,
		InitialRetryDelay:    5 * time.Millisecond,
		MaxRetryDelay:        20 * time.Millisecond,
		MaxConcurrentUploads: 4,
	}
}

func TestMarkDirtyTriggersPushAfterDebounce(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	push := func(ctx context.Context, docID string) error {
		atomic.AddInt32(&calls, 1)
		close(done)
		return nil
	}
	s := New(push, shortOpts())
	s.MarkDirty("doc1")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push never fired")
	}
	waitForStatus(t, s, "doc1", Idle)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestMarkDirtyWhileDirtyCoalesces(t *testing.T) {
	var calls int32
	push := func(ctx context.Context, docID string) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	s := New(push, shortOpts())
	s.MarkDirty("doc1")
	s.MarkDirty("doc1")
	s.MarkDirty("doc1")

	waitForStatus(t, s, "doc1", Idle)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (bursts should coalesce)", got)
	}
}

func TestMarkDirtyDuringUploadSchedulesFollowUp(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	var once sync.Once
	push := func(ctx context.Context, docID string) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			<-release
		}
		return nil
	}
	s := New(push, shortOpts())
	s.MarkDirty("doc1")

	// Wait until the first push is actually in flight.
	waitForStatus(t, s, "doc1", Uploading)
	s.MarkDirty("doc1") // should set the follow-up flag
	once.Do(func() { close(release) })

	waitForCalls(t, &calls, 2)
	waitForStatus(t, s, "doc1", Idle)
}

func TestPushRetriesTransientErrorsThenSucceeds(t *testing.T) {
	var calls int32
	push := func(ctx context.Context, docID string) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	}
	s := New(push, shortOpts())
	s.MarkDirty("doc1")

	waitForCalls(t, &calls, 3)
	waitForStatus(t, s, "doc1", Idle)
}

func TestFatalErrorStopsRetrying(t *testing.T) {
	var calls int32
	fatalErr := errors.New("fatal")
	push := func(ctx context.Context, docID string) error {
		atomic.AddInt32(&calls, 1)
		return fatalErr
	}
	opts := shortOpts()
	opts.IsFatal = func(err error) bool { return errors.Is(err, fatalErr) }
	s := New(push, opts)
	s.MarkDirty("doc1")

	waitForStatus(t, s, "doc1", Idle)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1 (no retry on fatal error)", got)
	}
}

func TestNeedsUpdateReflectsInFlightWork(t *testing.T) {
	block := make(chan struct{})
	push := func(ctx context.Context, docID string) error {
		<-block
		return nil
	}
	s := New(push, shortOpts())
	if s.NeedsUpdate() {
		t.Fatal("NeedsUpdate should be false before any MarkDirty")
	}
	s.MarkDirty("doc1")
	waitForStatus(t, s, "doc1", Uploading)
	if !s.NeedsUpdate() {
		t.Error("NeedsUpdate should be true while a push is in flight")
	}
	close(block)
	waitForStatus(t, s, "doc1", Idle)
	if s.NeedsUpdate() {
		t.Error("NeedsUpdate should be false once every doc is idle")
	}
}

func TestCloseForcesSynchronousFinalPush(t *testing.T) {
	var calls int32
	push := func(ctx context.Context, docID string) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	s := New(push, Options{DebounceDelay: time.Hour}) // debounce long enough that only Close forces it
	s.MarkDirty("doc1")
	s.MarkDirty("doc2")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2 (Close should force a push per dirty doc)", got)
	}
}

func TestDistinctDocsPushConcurrently(t *testing.T) {
	const n = 5
	start := make(chan struct{})
	var inflight int32
	var maxInflight int32
	push := func(ctx context.Context, docID string) error {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			old := atomic.LoadInt32(&maxInflight)
			if cur <= old || atomic.CompareAndSwapInt32(&maxInflight, old, cur) {
				break
			}
		}
		<-start
		atomic.AddInt32(&inflight, -1)
		return nil
	}
	opts := shortOpts()
	opts.MaxConcurrentUploads = int64(n)
	s := New(push, opts)
	for i := 0; i < n; i++ {
		s.MarkDirty(docName(i))
	}
	time.Sleep(50 * time.Millisecond)
	close(start)

	for i := 0; i < n; i++ {
		waitForStatus(t, s, docName(i), Idle)
	}
	if got := atomic.LoadInt32(&maxInflight); got < 2 {
		t.Errorf("maxInflight = %d, want concurrent pushes across distinct docs", got)
	}
}

func docName(i int) string {
	return string(rune('a' + i))
}

func waitForStatus(t *testing.T, s *Scheduler, docID string, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status(docID) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("docID %s never reached status %v (stuck at %v)", docID, want, s.Status(docID))
}

func waitForCalls(t *testing.T, calls *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(calls) >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("calls never reached %d (stuck at %d)", want, atomic.LoadInt32(calls))
}
