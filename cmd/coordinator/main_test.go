package main

import "testing"

func TestCoordinatorAddrDefaultsWhenUnset(t *testing.T) {
	t.Setenv("COORDINATOR_ADDR", "")
	if got := coordinatorAddr(); got != "http://127.0.0.1:8080" {
		t.Fatalf("coordinatorAddr() = %q, want default", got)
	}
}

func TestCoordinatorAddrHonorsEnv(t *testing.T) {
	t.Setenv("COORDINATOR_ADDR", "http://coordinator.internal:9000")
	if got := coordinatorAddr(); got != "http://coordinator.internal:9000" {
		t.Fatalf("coordinatorAddr() = %q, want env value", got)
	}
}
