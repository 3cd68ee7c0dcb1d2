package doclifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
	"github.com/gristlabs/grist-core-sub007/internal/checksum"
	"github.com/gristlabs/grist-core-sub007/internal/docerrors"
	"github.com/gristlabs/grist-core-sub007/internal/keyedblob"
	"github.com/gristlabs/grist-core-sub007/internal/localstore"
	"github.com/gristlabs/grist-core-sub007/internal/migrator"
	"github.com/gristlabs/grist-core-sub007/internal/pruner"
	"github.com/gristlabs/grist-core-sub007/internal/pushscheduler"
	"github.com/gristlabs/grist-core-sub007/internal/workermap"
)

// Options configures a Lifecycle. Zero-valued fields fall back to
// spec.md §6's documented defaults.
type Options struct {
	// WorkerID is this process's identity in WorkerMap.
	WorkerID string

	// MaxConsistencyRetries bounds the download-then-verify retry loop
	// of spec.md §4.3 before surfacing ErrInconsistent. Default 5.
	MaxConsistencyRetries int

	// ConsistencyRetryBackoff is the delay before the first consistency
	// retry; it doubles on each subsequent attempt. Default 1s.
	ConsistencyRetryBackoff time.Duration

	// AllowChecksumOverride bypasses a download/registry checksum
	// mismatch instead of failing closed, per spec.md §4.3/§6's
	// emergency override flag.
	AllowChecksumOverride bool

	Scheduler pushscheduler.Options
	Retention pruner.Policy
}

func (o Options) withDefaults() Options {
	if o.MaxConsistencyRetries <= 0 {
		o.MaxConsistencyRetries = 5
	}
	if o.ConsistencyRetryBackoff <= 0 {
		o.ConsistencyRetryBackoff = time.Second
	}
	return o
}

// Lifecycle wires together every HSM component for one worker process.
type Lifecycle struct {
	blobs    *keyedblob.Store
	registry checksum.Registry
	workers  workermap.Map
	local    *localstore.Store
	mig      *migrator.Migrator
	opts     Options

	scheduler *pushscheduler.Scheduler
	pruner    *pruner.Pruner
	metrics   *metrics

	handlesMu sync.Mutex
	handles   map[string]*Handle

	fetchGroup singleflight.Group

	prepareInFlight sync.Map // docID -> struct{}

	pushLocksMu sync.Mutex
	pushLocks   map[string]*sync.Mutex
}

// New wires blobs/registry/workers/local/mig into a Lifecycle serving
// documents assigned to opts.WorkerID.
func New(blobs *keyedblob.Store, registry checksum.Registry, workers workermap.Map, local *localstore.Store, mig *migrator.Migrator, opts Options) *Lifecycle {
	opts = opts.withDefaults()
	l := &Lifecycle{
		blobs:     blobs,
		registry:  registry,
		workers:   workers,
		local:     local,
		mig:       mig,
		opts:      opts,
		handles:   make(map[string]*Handle),
		pushLocks: make(map[string]*sync.Mutex),
		metrics:   newMetrics(opts.Scheduler.Registerer),
	}

	schedOpts := opts.Scheduler
	schedOpts.IsFatal = blobs.IsFatalError
	l.scheduler = pushscheduler.New(func(ctx context.Context, docID string) error {
		return l.doPush(ctx, docID, "")
	}, schedOpts)

	l.pruner = pruner.New(prunerAdapter{blobs: blobs}, opts.Retention, time.Now, opts.Scheduler.Registerer)

	return l
}

// Close awaits every in-flight and pending push to completion and drains
// the pruner, implementing spec.md §5's "on shutdown, in-flight pushes
// are awaited to completion; pending debounced pushes are flushed before
// releasing the worker lease."
func (l *Lifecycle) Close(ctx context.Context) error {
	if err := l.scheduler.Close(ctx); err != nil {
		return err
	}
	return l.pruner.Close(ctx)
}

// prunerAdapter narrows keyedblob.Store's (purpose, docId) signature down
// to pruner.Store's plain-key shape, fixing purpose to "doc" since
// snapshots (and therefore retention) only ever apply to document bytes,
// never to the "meta" purpose.
type prunerAdapter struct {
	blobs *keyedblob.Store
}

func (a prunerAdapter) Versions(ctx context.Context, docID string) ([]blobstore.Snapshot, error) {
	return a.blobs.Versions(ctx, "doc", docID)
}

func (a prunerAdapter) Remove(ctx context.Context, docID string, snapshotIDs ...string) error {
	return a.blobs.Remove(ctx, "doc", docID, snapshotIDs...)
}

func (l *Lifecycle) pushLockFor(docID string) *sync.Mutex {
	l.pushLocksMu.Lock()
	defer l.pushLocksMu.Unlock()
	m, ok := l.pushLocks[docID]
	if !ok {
		m = &sync.Mutex{}
		l.pushLocks[docID] = m
	}
	return m
}

// FetchDoc implements spec.md §4.9's fetchDoc. Concurrent calls for the
// same docID share one in-flight reconciliation and one resulting
// Handle.
func (l *Lifecycle) FetchDoc(ctx context.Context, docID string) (*Handle, error) {
	l.handlesMu.Lock()
	if h, ok := l.handles[docID]; ok {
		l.handlesMu.Unlock()
		return h, nil
	}
	l.handlesMu.Unlock()

	v, err, _ := l.fetchGroup.Do(docID, func() (interface{}, error) {
		return l.fetchDocOnce(ctx, docID, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// FetchOrCreateDoc is FetchDoc's creation-intended counterpart: a
// DELETED registry entry is treated as an invitation to create fresh
// rather than refused, per spec.md §9's open question (preserved as an
// explicit opt-in).
func (l *Lifecycle) FetchOrCreateDoc(ctx context.Context, docID string) (*Handle, error) {
	l.handlesMu.Lock()
	if h, ok := l.handles[docID]; ok {
		l.handlesMu.Unlock()
		return h, nil
	}
	l.handlesMu.Unlock()

	v, err, _ := l.fetchGroup.Do(docID, func() (interface{}, error) {
		return l.fetchDocOnce(ctx, docID, true)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (l *Lifecycle) fetchDocOnce(ctx context.Context, docID string, allowCreate bool) (*Handle, error) {
	start := time.Now()
	h, err := l.fetchDocOnceTimed(ctx, docID, allowCreate)
	l.metrics.fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		l.metrics.fetchFailuresTotal.Inc()
		return nil, err
	}
	l.metrics.fetchesTotal.Inc()
	return h, nil
}

func (l *Lifecycle) fetchDocOnceTimed(ctx context.Context, docID string, allowCreate bool) (*Handle, error) {
	workerID, err := l.workers.AssignDocWorker(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docerrors.ErrUnavailable, err)
	}
	if workerID != l.opts.WorkerID {
		return nil, docerrors.ErrUnavailable
	}

	if err := l.prepareLocalDoc(ctx, docID, allowCreate); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", l.local.PathFor(docID))
	if err != nil {
		return nil, fmt.Errorf("doclifecycle: open %s: %w", docID, err)
	}

	h := newHandle(l, docID, db)

	migrateErr := l.mig.Migrate(ctx, db, false, func(ctx context.Context, label string) error {
		return l.doPush(ctx, docID, label)
	})
	close(h.ready)
	if migrateErr != nil {
		db.Close()
		return nil, migrateErr
	}

	l.handlesMu.Lock()
	l.handles[docID] = h
	l.handlesMu.Unlock()

	return h, nil
}

// prepareLocalDoc resolves the reconciliation matrix of spec.md §4.3 and
// leaves a trustworthy file at local.PathFor(docID), without opening it.
// A caller racing an already in-flight prepareLocalDoc for the same
// docID fails fast with ErrInParallel rather than queuing (spec.md §5).
func (l *Lifecycle) prepareLocalDoc(ctx context.Context, docID string, allowCreate bool) error {
	if _, loaded := l.prepareInFlight.LoadOrStore(docID, struct{}{}); loaded {
		return docerrors.ErrInParallel
	}
	defer l.prepareInFlight.Delete(docID)

	local := checksum.LocalState{}
	if l.local.Exists(docID) {
		token, ok, err := l.local.ReadHashMarker(docID)
		if err != nil {
			return err
		}
		if !ok {
			token, err = localstore.DeriveToken(l.local.PathFor(docID))
			if err != nil {
				return err
			}
		}
		local = checksum.LocalState{Present: true, Token: token}
	}

	registryValue, registryPresent, err := l.registry.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("doclifecycle: read registry for %s: %w", docID, err)
	}
	registry := checksum.State{Present: registryPresent, Value: registryValue}

	decision := checksum.Reconcile(local, registry, allowCreate)
	switch decision {
	case checksum.DecisionCreateFresh:
		if err := l.createEmptyDoc(docID); err != nil {
			return err
		}
		if !registry.Present {
			if err := l.registry.Set(ctx, docID, checksum.Null); err != nil {
				return err
			}
		}
		l.scheduler.MarkDirty(docID)
		return nil

	case checksum.DecisionOpenLocal:
		return nil

	case checksum.DecisionTrustLocalWriteRegistry:
		return l.registry.Set(ctx, docID, local.Token)

	case checksum.DecisionRefuseDeleted:
		return docerrors.ErrDeleted

	case checksum.DecisionDownloadVerify:
		return l.downloadVerifyAndPromote(ctx, docID, registry.Value)

	case checksum.DecisionPreferRegistryDownload:
		if err := l.local.CleanStrayBackups(docID); err != nil {
			return err
		}
		return l.downloadVerifyAndPromote(ctx, docID, registry.Value)

	default:
		return fmt.Errorf("doclifecycle: unhandled reconciliation decision %v", decision)
	}
}

func (l *Lifecycle) createEmptyDoc(docID string) error {
	path := l.local.PathFor(docID)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("doclifecycle: create %s: %w", docID, err)
	}
	defer db.Close()
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _grist_DocInfo (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schemaVersion INTEGER NOT NULL DEFAULT 0,
			timezone TEXT NOT NULL DEFAULT 'UTC'
		)
	`); err != nil {
		return fmt.Errorf("doclifecycle: init %s: %w", docID, err)
	}
	// A freshly created document has never needed migrating: it starts
	// life already shaped like the current schema, not version 0.
	if _, err := db.Exec(`INSERT OR IGNORE INTO _grist_DocInfo (id, schemaVersion) VALUES (1, ?)`, migrator.CurrentSchemaVersion); err != nil {
		return fmt.Errorf("doclifecycle: seed %s: %w", docID, err)
	}
	return nil
}

// downloadVerifyAndPromote downloads docID's latest "doc" snapshot,
// verifies its derived token against expectedToken, and on success
// promotes it into place and writes the hash marker. On mismatch it
// retries with exponential backoff up to MaxConsistencyRetries before
// either surfacing ErrInconsistent or, if AllowChecksumOverride is set,
// trusting the downloaded bytes anyway.
func (l *Lifecycle) downloadVerifyAndPromote(ctx context.Context, docID, expectedToken string) error {
	tmpPath := l.local.PathFor(docID) + ".download.tmp"
	backoff := l.opts.ConsistencyRetryBackoff

	var lastToken string
	for attempt := 0; attempt < l.opts.MaxConsistencyRetries; attempt++ {
		if attempt > 0 {
			l.metrics.consistencyRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("doclifecycle: create download tmp file for %s: %w", docID, err)
		}
		_, err = l.blobs.Download(ctx, "doc", docID, "", f)
		f.Close()
		if err != nil {
			return fmt.Errorf("doclifecycle: download %s: %w", docID, err)
		}

		token, err := localstore.DeriveToken(tmpPath)
		if err != nil {
			return err
		}
		lastToken = token

		if expectedToken == "" || token == expectedToken {
			if err := l.local.PromoteFile(docID, tmpPath); err != nil {
				return err
			}
			return l.local.WriteHashMarker(docID, token)
		}
	}

	if l.opts.AllowChecksumOverride {
		if err := l.local.PromoteFile(docID, tmpPath); err != nil {
			return err
		}
		return l.local.WriteHashMarker(docID, lastToken)
	}
	return docerrors.Inconsistentf(docID, l.opts.MaxConsistencyRetries)
}
