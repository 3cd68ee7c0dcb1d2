package doclifecycle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
	"github.com/gristlabs/grist-core-sub007/internal/checksum"
	"github.com/gristlabs/grist-core-sub007/internal/cluster"
	"github.com/gristlabs/grist-core-sub007/internal/docerrors"
	"github.com/gristlabs/grist-core-sub007/internal/livebackup"
	"github.com/gristlabs/grist-core-sub007/internal/localstore"
)

// PrepareFork implements spec.md §4.9's copy-on-read fork semantics: the
// first fetchDoc(forkID) must reflect srcDocID's content as of this call,
// even if srcDocID evolves or is wiped afterward. If srcDocID is
// currently open on this worker, its pending edits are pushed
// synchronously first so the fork does not miss them.
func (l *Lifecycle) PrepareFork(ctx context.Context, srcDocID, forkID string) error {
	l.handlesMu.Lock()
	_, hasHandle := l.handles[srcDocID]
	l.handlesMu.Unlock()
	if hasHandle {
		if err := l.doPush(ctx, srcDocID, ""); err != nil {
			return fmt.Errorf("doclifecycle: flush %s before fork: %w", srcDocID, err)
		}
	}

	srcValue, srcPresent, err := l.registry.Get(ctx, srcDocID)
	if err != nil {
		return fmt.Errorf("doclifecycle: read registry for %s: %w", srcDocID, err)
	}
	if !srcPresent {
		return docerrors.ErrForkNotFound
	}
	if srcValue == checksum.Deleted {
		return docerrors.ErrForkNotFound
	}
	if srcValue == checksum.Null {
		// Trunk has no pushed content yet; the fork starts equally empty.
		return l.registry.Set(ctx, forkID, checksum.Null)
	}

	var buf bytes.Buffer
	if _, err := l.blobs.Download(ctx, "doc", srcDocID, "", &buf); err != nil {
		return fmt.Errorf("doclifecycle: download %s to prepare fork %s: %w", srcDocID, forkID, err)
	}
	if _, err := l.blobs.Upload(ctx, "doc", forkID, bytes.NewReader(buf.Bytes()), map[string]string{
		"forkOf": srcDocID,
	}); err != nil {
		return fmt.Errorf("doclifecycle: upload initial content for fork %s: %w", forkID, err)
	}
	return l.registry.Set(ctx, forkID, srcValue)
}

// Replace implements spec.md §4.9's replace: docID's content is
// atomically replaced (from the blob store's perspective) with
// sourceDocID's current content. A docID naming a snapshot reference
// refuses with ErrSnapshotImmutable.
func (l *Lifecycle) Replace(ctx context.Context, docID, sourceDocID string) error {
	if cluster.ParseDocRef(docID).IsSnapshotRef() {
		return docerrors.ErrSnapshotImmutable
	}

	var buf bytes.Buffer
	if _, err := l.blobs.Download(ctx, "doc", sourceDocID, "", &buf); err != nil {
		return fmt.Errorf("doclifecycle: download %s to replace %s: %w", sourceDocID, docID, err)
	}
	if _, err := l.blobs.Upload(ctx, "doc", docID, bytes.NewReader(buf.Bytes()), map[string]string{
		"replacedFrom": sourceDocID,
	}); err != nil {
		return fmt.Errorf("doclifecycle: upload replacement content for %s: %w", docID, err)
	}

	token, err := tokenOf(buf.Bytes())
	if err != nil {
		return err
	}
	if err := l.registry.Set(ctx, docID, token); err != nil {
		return err
	}

	if l.local.Exists(docID) {
		if err := l.local.Replace(docID, bytes.NewReader(buf.Bytes())); err != nil {
			return err
		}
		if err := l.local.WriteHashMarker(docID, token); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDoc implements spec.md §4.9's deleteDoc: idempotent removal from
// LocalStore and BlobStore, with ChecksumRegistry set to Deleted so a
// later non-creation fetch refuses rather than resurrecting stale state.
func (l *Lifecycle) DeleteDoc(ctx context.Context, docID string, hard bool) error {
	l.handlesMu.Lock()
	h, ok := l.handles[docID]
	delete(l.handles, docID)
	l.handlesMu.Unlock()
	if ok {
		h.db.Close()
	}

	if err := l.local.Remove(docID); err != nil {
		return err
	}
	if err := l.blobs.Remove(ctx, "doc", docID); err != nil {
		return err
	}
	if hard {
		if err := l.blobs.Remove(ctx, "meta", docID); err != nil {
			return err
		}
	}
	return l.registry.Set(ctx, docID, checksum.Deleted)
}

// GetSnapshots implements spec.md §4.9's getSnapshots.
func (l *Lifecycle) GetSnapshots(ctx context.Context, docID string) ([]blobstore.Snapshot, error) {
	return l.blobs.Versions(ctx, "doc", docID)
}

// MakeBackup implements spec.md §4.9's makeBackup: a synchronous, labeled
// push so the label appears as metadata on the resulting snapshot.
func (l *Lifecycle) MakeBackup(ctx context.Context, docID, label string) error {
	return l.doPush(ctx, docID, label)
}

// doPush is the single implementation behind both PushScheduler's
// debounced pushes and MakeBackup's forced ones; a per-docID mutex keeps
// the two strictly serialized against each other, matching spec.md §5's
// "all uploads for a single docId are strictly serialized".
func (l *Lifecycle) doPush(ctx context.Context, docID, label string) error {
	lock := l.pushLockFor(docID)
	lock.Lock()
	defer lock.Unlock()

	srcPath := l.local.PathFor(docID)
	tmpPath := srcPath + ".push.tmp"
	defer os.Remove(tmpPath)

	if err := livebackup.Backup(ctx, srcPath, tmpPath, nil, livebackup.DefaultOptions()); err != nil {
		return fmt.Errorf("doclifecycle: backup %s: %w", docID, err)
	}

	token, err := localstore.DeriveToken(tmpPath)
	if err != nil {
		return err
	}

	tz, headHash := readDocMetadata(tmpPath, token)
	metadata := map[string]string{"tz": tz, "h": headHash}
	if label != "" {
		metadata["label"] = label
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("doclifecycle: open backup of %s for upload: %w", docID, err)
	}
	_, uploadErr := l.blobs.Upload(ctx, "doc", docID, f, metadata)
	f.Close()
	if uploadErr != nil {
		return fmt.Errorf("doclifecycle: upload %s: %w", docID, uploadErr)
	}

	if err := l.registry.Set(ctx, docID, token); err != nil {
		return err
	}
	if err := l.local.WriteHashMarker(docID, token); err != nil {
		return err
	}

	l.pruner.Prune(docID)
	return nil
}

// readDocMetadata opens the backed-up file to read its timezone for the
// snapshot's "tz" metadata field. "h", the head action hash, is the
// content's own derived token: the formula/action-log engine that would
// otherwise produce a true action hash is out of this system's scope, so
// the content hash stands in as a reproducible identifier of "what this
// snapshot's content is," which is the head hash's only role here.
func readDocMetadata(path, fallbackHash string) (tz string, headHash string) {
	tz, headHash = "UTC", fallbackHash
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return tz, headHash
	}
	defer db.Close()

	row := db.QueryRow(`SELECT timezone FROM _grist_DocInfo LIMIT 1`)
	var v string
	if err := row.Scan(&v); err == nil && v != "" {
		tz = v
	}
	return tz, headHash
}

// tokenOf computes the same sha256-hex token localstore.DeriveToken
// derives from a file, directly from an in-memory byte slice.
func tokenOf(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
