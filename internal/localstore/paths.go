package localstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is a filesystem-rooted tree of per-document SQLite files and their
// auxiliary hash-marker files.
type Store struct {
	root string
}

// New returns a Store rooted at root. The directory must already exist;
// New does not create it.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's configured root directory.
func (s *Store) Root() string { return s.root }

// PathFor returns the path of docID's SQLite file: "<root>/<docId>.grist".
func (s *Store) PathFor(docID string) string {
	return filepath.Join(s.root, docID+".grist")
}

// HashMarkerFor returns the path of docID's hash-marker file, which caches
// the last known checksum so an open does not have to hash the whole
// database file: "<path>-hash-doc".
func (s *Store) HashMarkerFor(docID string) string {
	return s.PathFor(docID) + "-hash-doc"
}

func (s *Store) backupPathFor(docID string) string {
	return s.PathFor(docID) + "-backup"
}

// ReadHashMarker returns docID's cached token, or ok=false if no marker
// file exists yet.
func (s *Store) ReadHashMarker(docID string) (token string, ok bool, err error) {
	data, err := os.ReadFile(s.HashMarkerFor(docID))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: read hash marker for %s: %w", docID, err)
	}
	return string(data), true, nil
}

// WriteHashMarker atomically writes docID's current token to its marker
// file.
func (s *Store) WriteHashMarker(docID, token string) error {
	return atomicWriteFile(s.HashMarkerFor(docID), []byte(token))
}

// Replace atomically overwrites docID's SQLite file with r's contents: the
// new content is written to a sibling `.tmp` file, fsynced, then renamed
// into place, so no reader ever observes a partially written file.
func (s *Store) Replace(docID string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("localstore: read replacement content for %s: %w", docID, err)
	}
	return atomicWriteFile(s.PathFor(docID), data)
}

// PromoteFile atomically replaces docID's SQLite file with the file
// already written at srcPath (for example, LiveBackup's completed sibling
// snapshot), via rename rather than a full copy.
func (s *Store) PromoteFile(docID, srcPath string) error {
	dst := s.PathFor(docID)
	if err := os.Rename(srcPath, dst); err != nil {
		return fmt.Errorf("localstore: promote %s to %s: %w", srcPath, dst, err)
	}
	return syncDir(filepath.Dir(dst))
}

// Remove deletes docID's SQLite file and its hash marker. Idempotent.
func (s *Store) Remove(docID string) error {
	for _, p := range []string{s.PathFor(docID), s.HashMarkerFor(docID)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("localstore: remove %s: %w", p, err)
		}
	}
	return nil
}

// Exists reports whether docID has a local SQLite file.
func (s *Store) Exists(docID string) bool {
	_, err := os.Stat(s.PathFor(docID))
	return err == nil
}

// CleanStrayBackups removes any leftover `-backup` sibling file for docID,
// tolerating crashes that left one behind mid-write.
func (s *Store) CleanStrayBackups(docID string) error {
	if err := os.Remove(s.backupPathFor(docID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstore: remove stray backup for %s: %w", docID, err)
	}
	return nil
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("localstore: create tmp file %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("localstore: write tmp file %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("localstore: fsync tmp file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("localstore: close tmp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("localstore: rename %s to %s: %w", tmp, path, err)
	}
	return syncDir(filepath.Dir(path))
}

// syncDir fsyncs a directory entry so the rename above survives a crash,
// not just the file contents. Best-effort: some platforms/filesystems
// reject fsync on a directory handle, so a failure here is not fatal.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
