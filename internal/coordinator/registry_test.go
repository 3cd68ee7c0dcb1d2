package coordinator

import (
	"context"
	"testing"

	"github.com/gristlabs/grist-core-sub007/internal/cluster"
	"github.com/gristlabs/grist-core-sub007/internal/workermap"
)

func TestRegistryRegisterAndList(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(workermap.NewInMemoryMap(), nil)

	if err := reg.Register(ctx, cluster.WorkerInfo{ID: "w2", PublicURL: "https://w2"}); err != nil {
		t.Fatalf("Register w2: %v", err)
	}
	if err := reg.Register(ctx, cluster.WorkerInfo{ID: "w1", PublicURL: "https://w1"}); err != nil {
		t.Fatalf("Register w1: %v", err)
	}

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
	if list[0].ID != "w1" || list[1].ID != "w2" {
		t.Fatalf("List() not sorted by id: %v", list)
	}
	if !list[0].Available {
		t.Error("freshly registered worker should be available")
	}
}

func TestRegistryDeregisterReleasesAssignment(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(workermap.NewInMemoryMap(), nil)
	reg.Register(ctx, cluster.WorkerInfo{ID: "w1"})

	assignment, err := reg.Assignment(ctx, "D1")
	if err != nil {
		t.Fatalf("Assignment: %v", err)
	}
	if assignment.WorkerID != "" {
		t.Fatalf("expected no assignment yet, got %q", assignment.WorkerID)
	}

	if _, err := reg.workers.AssignDocWorker(ctx, "D1"); err != nil {
		t.Fatalf("AssignDocWorker: %v", err)
	}
	assignment, err = reg.Assignment(ctx, "D1")
	if err != nil || assignment.WorkerID != "w1" {
		t.Fatalf("Assignment = %+v, %v; want w1", assignment, err)
	}

	if err := reg.Deregister(ctx, "w1"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if len(reg.List()) != 0 {
		t.Error("List() should be empty after deregistering the only worker")
	}
}

func TestRegistrySetAvailabilityUpdatesListing(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(workermap.NewInMemoryMap(), nil)
	reg.Register(ctx, cluster.WorkerInfo{ID: "w1"})

	if err := reg.SetAvailability(ctx, "w1", false); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	list := reg.List()
	if len(list) != 1 || list[0].Available {
		t.Fatalf("expected w1 unavailable after SetAvailability(false): %+v", list)
	}
}
