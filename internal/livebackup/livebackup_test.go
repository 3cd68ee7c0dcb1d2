package livebackup

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBackupProducesReadableCopy(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.grist")
	dstPath := filepath.Join(dir, "dst.grist")

	srcDB, err := sql.Open("sqlite3", srcPath)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	if _, err := srcDB.Exec(`CREATE TABLE Table1 (id INTEGER PRIMARY KEY, A TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := srcDB.Exec(`INSERT INTO Table1 (id, A) VALUES (1, 'magic_word')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	srcDB.Close()

	var events []Event
	err = Backup(context.Background(), srcPath, dstPath, func(e Event) {
		events = append(events, e)
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one before/after event pair")
	}

	dstDB, err := sql.Open("sqlite3", dstPath)
	if err != nil {
		t.Fatalf("open destination: %v", err)
	}
	defer dstDB.Close()

	var a string
	if err := dstDB.QueryRow(`SELECT A FROM Table1 WHERE id = 1`).Scan(&a); err != nil {
		t.Fatalf("query destination: %v", err)
	}
	if a != "magic_word" {
		t.Errorf("A = %q, want magic_word", a)
	}
}

func TestBackupEventsArePaired(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.grist")
	dstPath := filepath.Join(dir, "dst.grist")

	srcDB, _ := sql.Open("sqlite3", srcPath)
	srcDB.Exec(`CREATE TABLE T (id INTEGER)`)
	srcDB.Close()

	var phases []string
	start := time.Now()
	var lastBefore time.Time
	err := Backup(context.Background(), srcPath, dstPath, func(e Event) {
		phases = append(phases, e.Phase)
		if e.Phase == PhaseBefore {
			lastBefore = time.Now()
		} else if e.Phase == PhaseAfter {
			if gap := time.Since(lastBefore); gap > 100*time.Millisecond {
				t.Errorf("before/after gap %v exceeds 100ms bound", gap)
			}
		}
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if time.Since(start) <= 0 {
		t.Fatal("unexpected zero elapsed time")
	}
	if len(phases) < 2 || phases[0] != PhaseBefore {
		t.Fatalf("unexpected phase sequence: %v", phases)
	}
}

func TestBackupReplacesCorruptDestination(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.grist")
	dstPath := filepath.Join(dir, "dst.grist")

	srcDB, _ := sql.Open("sqlite3", srcPath)
	srcDB.Exec(`CREATE TABLE T (id INTEGER)`)
	srcDB.Close()

	if err := writeJunk(dstPath); err != nil {
		t.Fatalf("writeJunk: %v", err)
	}

	if err := Backup(context.Background(), srcPath, dstPath, nil, DefaultOptions()); err != nil {
		t.Fatalf("Backup over corrupt destination: %v", err)
	}

	dstDB, err := sql.Open("sqlite3", dstPath)
	if err != nil {
		t.Fatalf("open destination after backup: %v", err)
	}
	defer dstDB.Close()
	if _, err := dstDB.Exec(`SELECT 1 FROM T LIMIT 1`); err != nil {
		t.Errorf("destination not readable after replacing corrupt file: %v", err)
	}
}

func writeJunk(path string) error {
	return os.WriteFile(path, []byte("this is not a sqlite file"), 0o644)
}
