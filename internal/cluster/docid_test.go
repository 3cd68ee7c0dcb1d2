package cluster

import "testing"

func TestParseDocRefPlain(t *testing.T) {
	ref := ParseDocRef("D1")
	if ref.TrunkID != "D1" || ref.IsFork() || ref.IsSnapshotRef() {
		t.Fatalf("unexpected parse of plain id: %+v", ref)
	}
	if ref.DocID() != "D1" {
		t.Fatalf("DocID() = %q, want D1", ref.DocID())
	}
}

func TestParseDocRefFork(t *testing.T) {
	ref := ParseDocRef("D1~fork1")
	if ref.TrunkID != "D1" || ref.ForkSuffix != "fork1" || !ref.IsFork() {
		t.Fatalf("unexpected parse of fork id: %+v", ref)
	}
	if ref.DocID() != "D1~fork1" {
		t.Fatalf("DocID() = %q, want D1~fork1", ref.DocID())
	}
	if ForkID("D1", "fork1") != "D1~fork1" {
		t.Fatalf("ForkID mismatch")
	}
}

func TestParseDocRefSnapshotOfTrunk(t *testing.T) {
	ref := ParseDocRef("D1~v=abc123")
	if ref.TrunkID != "D1" || ref.ForkSuffix != "" || ref.SnapshotID != "abc123" || !ref.IsSnapshotRef() {
		t.Fatalf("unexpected parse of snapshot ref: %+v", ref)
	}
	if SnapshotRef("D1", "abc123") != "D1~v=abc123" {
		t.Fatalf("SnapshotRef mismatch")
	}
}

func TestParseDocRefSnapshotOfFork(t *testing.T) {
	ref := ParseDocRef("D1~fork1~v=abc123")
	if ref.TrunkID != "D1" || ref.ForkSuffix != "fork1" || ref.SnapshotID != "abc123" {
		t.Fatalf("unexpected parse of fork snapshot ref: %+v", ref)
	}
	if !ref.IsFork() || !ref.IsSnapshotRef() {
		t.Fatalf("expected both IsFork and IsSnapshotRef: %+v", ref)
	}
	if ref.DocID() != "D1~fork1" {
		t.Fatalf("DocID() = %q, want D1~fork1", ref.DocID())
	}
}

func TestParseDocRefTotal(t *testing.T) {
	// The parser must never panic or error, regardless of shape.
	inputs := []string{"", "~", "~v=", "a~b~c~d", "~v=~v="}
	for _, in := range inputs {
		_ = ParseDocRef(in)
	}
}
