package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gristlabs/grist-core-sub007/internal/cluster"
	"github.com/gristlabs/grist-core-sub007/internal/coordinator"
	"github.com/gristlabs/grist-core-sub007/internal/workermap"
)

func newTestRegistry() *coordinator.Registry {
	return coordinator.NewRegistry(workermap.NewInMemoryMap(), nil)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRegisterHandlerAddsWorkerToListing(t *testing.T) {
	registry := newTestRegistry()
	handler := newRegisterHandler(registry)

	rec := postJSON(t, handler, "/register", cluster.RegisterRequest{
		Worker: cluster.WorkerInfo{ID: "w1", PublicURL: "https://w1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	list := registry.List()
	if len(list) != 1 || list[0].ID != "w1" {
		t.Fatalf("expected w1 registered, got %+v", list)
	}
}

func TestRegisterHandlerRejectsMissingID(t *testing.T) {
	registry := newTestRegistry()
	handler := newRegisterHandler(registry)

	rec := postJSON(t, handler, "/register", cluster.RegisterRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWorkersHandlerListsRegisteredWorkers(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(context.Background(), cluster.WorkerInfo{ID: "w1"})

	req := httptest.NewRequest(http.MethodGet, "/workers", nil)
	rec := httptest.NewRecorder()
	newWorkersHandler(registry).ServeHTTP(rec, req)

	var out []cluster.WorkerInfo
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 1 || out[0].ID != "w1" {
		t.Fatalf("unexpected listing: %+v", out)
	}
}

func TestWorkerAvailabilityHandlerTogglesAvailability(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(context.Background(), cluster.WorkerInfo{ID: "w1"})

	handler := newWorkerAvailabilityHandler(registry)
	rec := postJSON(t, handler, "/workers/w1/availability", map[string]bool{"available": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	list := registry.List()
	if len(list) != 1 || list[0].Available {
		t.Fatalf("expected w1 unavailable, got %+v", list)
	}
}

func TestAssignmentHandlerReportsUnassignedDoc(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(context.Background(), cluster.WorkerInfo{ID: "w1"})

	req := httptest.NewRequest(http.MethodGet, "/docs/doc-1/assignment", nil)
	rec := httptest.NewRecorder()
	newAssignmentHandler(registry).ServeHTTP(rec, req)

	var out cluster.DocAssignment
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.DocID != "doc-1" || out.WorkerID != "" {
		t.Fatalf("unexpected assignment: %+v", out)
	}
}
