// Command worker runs one HSM worker process: the service that owns a
// slice of documents, keeps their live SQLite files in LocalStore, and
// pushes them to the shared blob store on the schedule PushScheduler
// decides (spec.md §2, §4.9).
//
// Configuration is read the way cmd/node/main.go originally did (required
// env vars with getenv/mustGetenv defaults), layered with a
// spf13/viper-backed file for the document-storage tuning knobs — see
// internal/config.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gomodule/redigo/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
	"github.com/gristlabs/grist-core-sub007/internal/checksum"
	"github.com/gristlabs/grist-core-sub007/internal/cluster"
	"github.com/gristlabs/grist-core-sub007/internal/config"
	"github.com/gristlabs/grist-core-sub007/internal/docerrors"
	"github.com/gristlabs/grist-core-sub007/internal/doclifecycle"
	"github.com/gristlabs/grist-core-sub007/internal/keyedblob"
	"github.com/gristlabs/grist-core-sub007/internal/localstore"
	"github.com/gristlabs/grist-core-sub007/internal/migrator"
	"github.com/gristlabs/grist-core-sub007/internal/pushscheduler"
	"github.com/gristlabs/grist-core-sub007/internal/workermap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "HSM worker: owns a slice of documents and keeps them backed up",
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file with document-storage tuning options")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(docsCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start accepting document fetches and serving the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		return runServe(configFile)
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Operator subcommands that query a running worker over HTTP",
}

func init() {
	docsCmd.AddCommand(docsListCmd)
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents currently open on a worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := os.Getenv("WORKER_ADDR")
		if addr == "" {
			addr = "http://127.0.0.1:8081"
		}
		var out []string
		if err := cluster.GetJSON(context.Background(), addr+"/docs", &out); err != nil {
			return err
		}
		for _, id := range out {
			fmt.Println(id)
		}
		return nil
	},
}

func runServe(configFile string) error {
	cfg, err := config.LoadWorkerConfig(configFile)
	if err != nil {
		return err
	}
	config.InitLogging(cfg.Log)
	logger := config.WithWorkerID(cfg.WorkerID)

	store := localstore.New(cfg.LocalStoreRoot)

	checksumRegistry, workers, err := buildSharedStores(cfg)
	if err != nil {
		return fmt.Errorf("worker: build shared stores: %w", err)
	}

	if quarantined, err := store.Reconcile(context.Background(), checksumRegistry); err != nil {
		logger.Warn().Err(err).Msg("crash-recovery reconcile failed")
	} else if len(quarantined) > 0 {
		for _, q := range quarantined {
			logger.Warn().Str("doc_id", q.DocID).Str("reason", q.Reason).Msg("quarantined local document on startup")
		}
	}

	lc, err := buildLifecycle(cfg, store, checksumRegistry, workers)
	if err != nil {
		return fmt.Errorf("worker: build lifecycle: %w", err)
	}

	if err := workers.AddWorker(context.Background(), cfg.WorkerID, workermap.Endpoints{
		PublicURL:   cfg.PublicURL,
		InternalURL: cfg.Listen,
	}); err != nil {
		return fmt.Errorf("worker: register self in workermap: %w", err)
	}

	go registerWithCoordinator(cfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/docs/", newDocHandler(lc))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("listen", cfg.Listen).Str("public", cfg.PublicURL).Msg("worker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := lc.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("lifecycle close error")
	}
	logger.Info().Msg("worker stopped")
	return nil
}

// buildSharedStores picks the checksum registry and worker map
// implementation per cfg: Redis-backed when RedisAddr is set (so a fleet
// of workers shares one view), in-memory otherwise (single-process runs
// and tests).
func buildSharedStores(cfg *config.Config) (checksum.Registry, workermap.Map, error) {
	if cfg.RedisAddr == "" {
		return checksum.NewInMemoryRegistry(), workermap.NewInMemoryMap(), nil
	}
	pool := &redis.Pool{
		MaxIdle: 8,
		Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", cfg.RedisAddr) },
	}
	return checksum.NewRedisRegistry(pool), workermap.NewRedisMap(pool), nil
}

// buildLifecycle wires blobstore/keyedblob/localstore/migrator into a
// doclifecycle.Lifecycle per cfg, choosing in-memory or S3 blob storage
// the way SPEC_FULL.md's domain stack table describes.
func buildLifecycle(cfg *config.Config, store *localstore.Store, checksumRegistry checksum.Registry, workers workermap.Map) (*doclifecycle.Lifecycle, error) {
	var blobs blobstore.BlobStore
	switch cfg.BlobStoreBackend {
	case config.BlobStoreS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		blobs = blobstore.NewS3BlobStore(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
	default:
		blobs = blobstore.NewInMemoryBlobStore()
	}

	keyed := keyedblob.New(blobs, "")
	mig := migrator.New(nil)

	opts := doclifecycle.Options{
		WorkerID:                cfg.WorkerID,
		MaxConsistencyRetries:   cfg.MaxConsistencyRetries,
		ConsistencyRetryBackoff: cfg.ConsistencyRetryBackoff,
		AllowChecksumOverride:   cfg.AllowChecksumOverride,
		Retention:               cfg.Retention,
		Scheduler: pushscheduler.Options{
			DebounceDelay:        cfg.PushDebounceDelay,
			InitialRetryDelay:    cfg.PushInitialRetryDelay,
			MaxRetryDelay:        cfg.PushMaxRetryDelay,
			MaxConcurrentUploads: cfg.MaxConcurrentUploads,
			Registerer:           prometheus.DefaultRegisterer,
		},
	}

	return doclifecycle.New(keyed, checksumRegistry, workers, store, mig, opts), nil
}

// registerWithCoordinator announces this worker to the coordination
// service's HTTP admin surface, retrying with backoff the way
// cmd/node/main.go's original register loop absorbed coordinator startup
// delays. The workermap itself (shared directly via Redis, or local in the
// single-process default) is the source of truth for assignments; this
// call only makes the worker visible on the coordinator's /workers
// listing and health-check rotation.
func registerWithCoordinator(cfg *config.Config, logger zerolog.Logger) {
	req := cluster.RegisterRequest{Worker: cluster.WorkerInfo{
		ID:          cfg.WorkerID,
		PublicURL:   cfg.PublicURL,
		InternalURL: cfg.Listen,
		Available:   true,
	}}

	delay := time.Second
	for attempt := 1; ; attempt++ {
		err := cluster.PostJSON(context.Background(), cfg.CoordinatorAddr+"/register", req, nil)
		if err == nil {
			logger.Info().Str("coordinator", cfg.CoordinatorAddr).Msg("registered with coordinator")
			return
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("coordinator registration failed, retrying")
		time.Sleep(delay)
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func newDocHandler(lc *doclifecycle.Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := strings.TrimPrefix(r.URL.Path, "/docs/")
		if docID == "" {
			http.Error(w, "missing document id", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			h, err := lc.FetchDoc(r.Context(), docID)
			writeFetchResult(w, h, err)
		case http.MethodPost:
			h, err := lc.FetchOrCreateDoc(r.Context(), docID)
			writeFetchResult(w, h, err)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func writeFetchResult(w http.ResponseWriter, h *doclifecycle.Handle, err error) {
	if err != nil {
		switch {
		case errors.Is(err, docerrors.ErrUnavailable), errors.Is(err, docerrors.ErrInParallel):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, docerrors.ErrDeleted):
			http.Error(w, err.Error(), http.StatusGone)
		case errors.Is(err, docerrors.ErrInconsistent):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"docId": h.DocID()})
}
