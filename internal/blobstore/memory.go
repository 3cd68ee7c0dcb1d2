package blobstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryBlobStore implements BlobStore entirely in RAM. It is the default
// for tests and for single-process development; nothing it stores survives
// a restart.
//
// Versions for a key are kept in append order and never rewritten in
// place, so Versions() and Head() always see a consistent, point-in-time
// view even while concurrent Uploads are in flight for the same key.
type InMemoryBlobStore struct {
	mu       sync.RWMutex
	versions map[string][]memVersion
}

type memVersion struct {
	id       string
	data     []byte
	metadata map[string]string
	modified time.Time
}

// NewInMemoryBlobStore returns an empty, ready-to-use store.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{versions: make(map[string][]memVersion)}
}

func (s *InMemoryBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions[key]) > 0, nil
}

func (s *InMemoryBlobStore) Head(ctx context.Context, key, snapshotID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := findVersion(s.versions[key], snapshotID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return toSnapshot(v), nil
}

func (s *InMemoryBlobStore) Upload(ctx context.Context, key string, r io.Reader, metadata map[string]string) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("blobstore: read upload body for %q: %w", key, err)
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	v := memVersion{
		id:       uuid.NewString(),
		data:     data,
		metadata: md,
		modified: time.Now(),
	}

	s.mu.Lock()
	s.versions[key] = append(s.versions[key], v)
	s.mu.Unlock()

	return toSnapshot(v), nil
}

func (s *InMemoryBlobStore) Download(ctx context.Context, key, snapshotID string, w io.Writer) (string, error) {
	s.mu.RLock()
	v, ok := findVersion(s.versions[key], snapshotID)
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if _, err := w.Write(v.data); err != nil {
		return "", fmt.Errorf("blobstore: write download body for %q: %w", key, err)
	}
	return v.id, nil
}

func (s *InMemoryBlobStore) Versions(ctx context.Context, key string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[key]
	out := make([]Snapshot, len(vs))
	for i, v := range vs {
		// newest first
		out[len(vs)-1-i] = toSnapshot(v)
	}
	return out, nil
}

func (s *InMemoryBlobStore) Remove(ctx context.Context, key string, snapshotIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(snapshotIDs) == 0 {
		delete(s.versions, key)
		return nil
	}
	remove := make(map[string]bool, len(snapshotIDs))
	for _, id := range snapshotIDs {
		remove[id] = true
	}
	kept := s.versions[key][:0:0]
	for _, v := range s.versions[key] {
		if !remove[v.id] {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		delete(s.versions, key)
	} else {
		s.versions[key] = kept
	}
	return nil
}

func (s *InMemoryBlobStore) URL(key string) string {
	return "mem://" + key
}

// IsFatalError reports true for every non-nil error except ErrNotFound:
// the in-memory store never produces an error that a retry would help
// with, so anything else it returns is treated as a bug, not a transient
// condition. ErrNotFound and nil report false. Callers exercising retry
// paths in tests should wrap this store or use a fake with its own
// classifier.
func (s *InMemoryBlobStore) IsFatalError(err error) bool {
	return err != nil && err != ErrNotFound
}

func findVersion(vs []memVersion, snapshotID string) (memVersion, bool) {
	if len(vs) == 0 {
		return memVersion{}, false
	}
	if snapshotID == "" {
		return vs[len(vs)-1], true
	}
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].id == snapshotID {
			return vs[i], true
		}
	}
	return memVersion{}, false
}

func toSnapshot(v memVersion) Snapshot {
	md := make(map[string]string, len(v.metadata))
	for k, val := range v.metadata {
		md[k] = val
	}
	return Snapshot{
		SnapshotID:   v.id,
		Size:         int64(len(v.data)),
		LastModified: v.modified,
		Metadata:     md,
	}
}

// sortSnapshotsDesc is used by implementations that receive versions in an
// order the backend does not guarantee, such as S3's ListObjectVersions
// pagination boundaries.
func sortSnapshotsDesc(snaps []Snapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].LastModified.After(snaps[j].LastModified)
	})
}
