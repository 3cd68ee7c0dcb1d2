package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gristlabs/grist-core-sub007/internal/cluster"
	"github.com/gristlabs/grist-core-sub007/internal/workermap"
)

func TestHealthMonitorMarksWorkerUnavailableAfterFailures(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(workermap.NewInMemoryMap(), nil)
	require.NoError(t, reg.Register(ctx, cluster.WorkerInfo{ID: "w1", InternalURL: "http://w1"}))

	hm := NewHealthMonitor(reg, time.Millisecond)
	hm.SetCheckFunction(func(addr string) error { return errors.New("boom") })

	var called sync.WaitGroup
	called.Add(1)
	hm.SetOnUnhealthy(func(id string) {
		assert.Equal(t, "w1", id)
		called.Done()
	})

	runCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go hm.Start(runCtx)

	done := make(chan struct{})
	go func() { called.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("onUnhealthy never fired")
	}

	list := reg.List()
	require.Len(t, list, 1)
	assert.False(t, list[0].Available, "expected w1 unavailable after repeated failures")

	hm.Stop()
}

func TestHealthMonitorRecoversAvailability(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(workermap.NewInMemoryMap(), nil)
	require.NoError(t, reg.Register(ctx, cluster.WorkerInfo{ID: "w1", InternalURL: "http://w1"}))

	var failing atomicBool
	failing.set(true)

	hm := NewHealthMonitor(reg, time.Millisecond)
	hm.SetCheckFunction(func(addr string) error {
		if failing.get() {
			return errors.New("boom")
		}
		return nil
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hm.Start(runCtx)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if !reg.List()[0].Available {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.False(t, reg.List()[0].Available, "worker never went unavailable")

	failing.set(false)
	deadline = time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if reg.List()[0].Available {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, reg.List()[0].Available, "worker never recovered availability")

	hm.Stop()
}

type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (a *atomicBool) set(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = v
}

func (a *atomicBool) get() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
