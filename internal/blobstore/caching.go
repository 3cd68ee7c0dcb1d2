package blobstore

import (
	"context"
	"io"
	"sync"
	"time"
)

// CachingBlobStore wraps a BlobStore and memoizes Exists/Head/Versions
// results for a fixed TTL. Uploads, Downloads, and Removes always pass
// through uncached.
//
// Production code has no use for this: a BlobStore is already expected to
// answer those calls cheaply. Its purpose is the opposite of optimization
// — spec.md §4.1 requires DocLifecycle and the checksum reconciliation
// path to tolerate a BlobStore that lies about freshness for a bounded
// window, and this wrapper is how tests manufacture that lie on demand.
type CachingBlobStore struct {
	BlobStore
	ttl time.Duration

	mu        sync.Mutex
	existsAt  map[string]cachedBool
	headAt    map[string]cachedHead
	versionAt map[string]cachedVersions
}

type cachedBool struct {
	val  bool
	time time.Time
}

type cachedHead struct {
	val  Snapshot
	err  error
	time time.Time
}

type cachedVersions struct {
	val  []Snapshot
	err  error
	time time.Time
}

// NewCachingBlobStore wraps inner so that reads against it are stale for up
// to ttl after the underlying state actually changes.
func NewCachingBlobStore(inner BlobStore, ttl time.Duration) *CachingBlobStore {
	return &CachingBlobStore{
		BlobStore: inner,
		ttl:       ttl,
		existsAt:  make(map[string]cachedBool),
		headAt:    make(map[string]cachedHead),
		versionAt: make(map[string]cachedVersions),
	}
}

func (c *CachingBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	if e, ok := c.existsAt[key]; ok && time.Since(e.time) < c.ttl {
		c.mu.Unlock()
		return e.val, nil
	}
	c.mu.Unlock()

	val, err := c.BlobStore.Exists(ctx, key)
	if err == nil {
		c.mu.Lock()
		c.existsAt[key] = cachedBool{val: val, time: time.Now()}
		c.mu.Unlock()
	}
	return val, err
}

func (c *CachingBlobStore) Head(ctx context.Context, key, snapshotID string) (Snapshot, error) {
	cacheKey := key + "\x00" + snapshotID
	c.mu.Lock()
	if h, ok := c.headAt[cacheKey]; ok && time.Since(h.time) < c.ttl {
		c.mu.Unlock()
		return h.val, h.err
	}
	c.mu.Unlock()

	val, err := c.BlobStore.Head(ctx, key, snapshotID)
	c.mu.Lock()
	c.headAt[cacheKey] = cachedHead{val: val, err: err, time: time.Now()}
	c.mu.Unlock()
	return val, err
}

func (c *CachingBlobStore) Versions(ctx context.Context, key string) ([]Snapshot, error) {
	c.mu.Lock()
	if v, ok := c.versionAt[key]; ok && time.Since(v.time) < c.ttl {
		c.mu.Unlock()
		return v.val, v.err
	}
	c.mu.Unlock()

	val, err := c.BlobStore.Versions(ctx, key)
	c.mu.Lock()
	c.versionAt[key] = cachedVersions{val: val, err: err, time: time.Now()}
	c.mu.Unlock()
	return val, err
}

// Invalidate drops every cached entry for key, simulating a cache that has
// caught up with reality. Tests use this to move from "stale" to "fresh"
// without waiting out the TTL.
func (c *CachingBlobStore) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.existsAt, key)
	delete(c.versionAt, key)
	for k := range c.headAt {
		if k == key || (len(k) > len(key) && k[:len(key)+1] == key+"\x00") {
			delete(c.headAt, k)
		}
	}
}

func (c *CachingBlobStore) Upload(ctx context.Context, key string, r io.Reader, metadata map[string]string) (Snapshot, error) {
	snap, err := c.BlobStore.Upload(ctx, key, r, metadata)
	if err == nil {
		c.Invalidate(key)
	}
	return snap, err
}

func (c *CachingBlobStore) Remove(ctx context.Context, key string, snapshotIDs ...string) error {
	err := c.BlobStore.Remove(ctx, key, snapshotIDs...)
	if err == nil {
		c.Invalidate(key)
	}
	return err
}
