package localstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// orphanSweepQuery deletes rows from the internal attachment blob table
// that no _grist_Attachments row references any longer — the cleanup
// spec.md §4.5 calls for on document close.
const orphanSweepQuery = `
DELETE FROM _gristsys_Files
WHERE ident NOT IN (
	SELECT fileIdent FROM _grist_Attachments WHERE fileIdent IS NOT NULL
)
`

// SweepOrphanAttachments opens docID's SQLite file and removes
// `_gristsys_Files` rows no longer referenced by `_grist_Attachments`,
// returning the number of rows removed. It is a no-op (not an error) on a
// document with no such tables, since not every document has attachments.
func (s *Store) SweepOrphanAttachments(ctx context.Context, docID string) (int64, error) {
	db, err := sql.Open("sqlite3", s.PathFor(docID))
	if err != nil {
		return 0, fmt.Errorf("localstore: open %s for orphan sweep: %w", docID, err)
	}
	defer db.Close()

	if !hasTable(ctx, db, "_gristsys_Files") || !hasTable(ctx, db, "_grist_Attachments") {
		return 0, nil
	}

	result, err := db.ExecContext(ctx, orphanSweepQuery)
	if err != nil {
		return 0, fmt.Errorf("localstore: sweep orphan attachments for %s: %w", docID, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("localstore: count orphan sweep rows for %s: %w", docID, err)
	}
	return removed, nil
}

func hasTable(ctx context.Context, db *sql.DB, name string) bool {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM sqlite_master WHERE type='table' AND name=?`, name)
	var one int
	return row.Scan(&one) == nil
}
