package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/gristlabs/grist-core-sub007/internal/docerrors"
)

// CurrentSchemaVersion is the schema version every document converges to.
const CurrentSchemaVersion = 1

// Migration upgrades a document from FromVersion to FromVersion+1. Apply
// runs inside the same transaction as the schemaVersion bump, so either
// both commit or neither does.
type Migration struct {
	FromVersion int
	Apply       func(ctx context.Context, tx *sql.Tx) error
}

// LabelFunc requests a labeled backup of the just-migrated document, the
// hook into DocLifecycle.makeBackup (spec.md §4.9) that produces the
// `migrate-schema-v<old>-to-v<new>` snapshot.
type LabelFunc func(ctx context.Context, label string) error

// Migrator runs a fixed, ordered sequence of Migrations.
type Migrator struct {
	migrations []Migration
}

// New returns a Migrator that applies migrations in ascending
// FromVersion order. It panics if two migrations share a FromVersion,
// since that would make migration order ambiguous.
func New(migrations []Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FromVersion < sorted[j].FromVersion })
	seen := make(map[int]bool, len(sorted))
	for _, m := range sorted {
		if seen[m.FromVersion] {
			panic(fmt.Sprintf("migrator: duplicate migration registered for schema version %d", m.FromVersion))
		}
		seen[m.FromVersion] = true
	}
	return &Migrator{migrations: sorted}
}

// ReadSchemaVersion returns the document's current schemaVersion. A
// document with no `_grist_DocInfo` table (a bare SQLite file that was
// never initialized as a document) is treated as schema version 0.
func ReadSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	if !hasTable(ctx, db, "_grist_DocInfo") {
		return 0, nil
	}
	var version int
	row := db.QueryRowContext(ctx, `SELECT schemaVersion FROM _grist_DocInfo LIMIT 1`)
	if err := row.Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("migrator: read schemaVersion: %w", err)
	}
	return version, nil
}

// Migrate brings db up to CurrentSchemaVersion if it is behind, and
// requests a labeled backup via label afterward. readOnly documents
// (snapshot views) never migrate in place; Migrate returns
// ErrMigrationRequired instead so the caller can surface it per spec.md
// §4.9's failure taxonomy.
//
// Migrate is idempotent: calling it on an already-current document opens
// no transaction, mutates nothing, and never calls label.
func (m *Migrator) Migrate(ctx context.Context, db *sql.DB, readOnly bool, label LabelFunc) error {
	from, err := ReadSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if from == CurrentSchemaVersion {
		return nil
	}
	if from > CurrentSchemaVersion {
		return fmt.Errorf("migrator: document schemaVersion %d is newer than this binary's %d", from, CurrentSchemaVersion)
	}
	if readOnly {
		return docerrors.ErrMigrationRequired
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrator: begin transaction: %w", err)
	}
	defer tx.Rollback()

	current := from
	for _, mig := range m.migrations {
		if mig.FromVersion < current {
			continue
		}
		if mig.FromVersion != current {
			return fmt.Errorf("migrator: no migration registered from schema version %d", current)
		}
		if err := mig.Apply(ctx, tx); err != nil {
			return fmt.Errorf("migrator: apply migration from v%d: %w", current, err)
		}
		current++
		if current == CurrentSchemaVersion {
			break
		}
	}
	if current != CurrentSchemaVersion {
		return fmt.Errorf("migrator: migration sequence stalled at schema version %d, want %d", current, CurrentSchemaVersion)
	}

	if err := ensureDocInfoTable(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE _grist_DocInfo SET schemaVersion = ?`, current); err != nil {
		return fmt.Errorf("migrator: write schemaVersion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrator: commit: %w", err)
	}

	if label != nil {
		return label(ctx, fmt.Sprintf("migrate-schema-v%d-to-v%d", from, current))
	}
	return nil
}

// ensureDocInfoTable creates `_grist_DocInfo` with a single row if a
// migration introduced it for the first time (version 0 documents).
func ensureDocInfoTable(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _grist_DocInfo (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schemaVersion INTEGER NOT NULL DEFAULT 0,
			timezone TEXT NOT NULL DEFAULT 'UTC'
		)
	`); err != nil {
		return fmt.Errorf("migrator: create _grist_DocInfo: %w", err)
	}
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM _grist_DocInfo LIMIT 1`).Scan(&exists); err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO _grist_DocInfo (id, schemaVersion) VALUES (1, 0)`); err != nil {
			return fmt.Errorf("migrator: seed _grist_DocInfo: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("migrator: check _grist_DocInfo: %w", err)
	}
	return nil
}

func hasTable(ctx context.Context, db *sql.DB, name string) bool {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM sqlite_master WHERE type='table' AND name=?`, name)
	var one int
	return row.Scan(&one) == nil
}
