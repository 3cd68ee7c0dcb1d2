package localstore

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/gristlabs/grist-core-sub007/internal/checksum"
)

func TestReconcileTrustsMatchingMarker(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.Replace("D1", strings.NewReader("content"))
	s.WriteHashMarker("D1", "tok1")

	reg := checksum.NewInMemoryRegistry()
	reg.Set(context.Background(), "D1", "tok1")

	quarantined, err := s.Reconcile(context.Background(), reg)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(quarantined) != 0 {
		t.Fatalf("expected nothing quarantined, got %+v", quarantined)
	}
	if !s.Exists("D1") {
		t.Error("D1 should still be in place")
	}
}

func TestReconcileQuarantinesMismatchedMarker(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.Replace("D1", strings.NewReader("content"))
	s.WriteHashMarker("D1", "stale-token")

	reg := checksum.NewInMemoryRegistry()
	reg.Set(context.Background(), "D1", "current-token")

	quarantined, err := s.Reconcile(context.Background(), reg)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(quarantined) != 1 || quarantined[0].DocID != "D1" {
		t.Fatalf("expected D1 quarantined, got %+v", quarantined)
	}
	if s.Exists("D1") {
		t.Error("D1's .grist file should have been moved aside")
	}
}

func TestReconcileQuarantinesMissingMarker(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.Replace("D1", strings.NewReader("content"))
	// No hash marker written at all.

	reg := checksum.NewInMemoryRegistry()
	reg.Set(context.Background(), "D1", "current-token")

	quarantined, err := s.Reconcile(context.Background(), reg)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(quarantined) != 1 {
		t.Fatalf("expected D1 quarantined for missing marker, got %+v", quarantined)
	}
}

func TestReconcileCleansStrayBackupsRegardlessOfTrust(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.Replace("D1", strings.NewReader("content"))
	s.WriteHashMarker("D1", "tok1")
	writeFile(t, s.backupPathFor("D1"), "stale backup")

	reg := checksum.NewInMemoryRegistry()
	reg.Set(context.Background(), "D1", "tok1")

	if _, err := s.Reconcile(context.Background(), reg); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, _, err := s.ReadHashMarker("D1"); err != nil {
		t.Fatalf("ReadHashMarker: %v", err)
	}
	if _, err := os.Stat(s.backupPathFor("D1")); !os.IsNotExist(err) {
		t.Error("expected stray backup file to be removed by Reconcile")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := atomicWriteFile(path, []byte(content)); err != nil {
		t.Fatalf("writeFile(%s): %v", path, err)
	}
}
