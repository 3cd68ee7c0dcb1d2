package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gristlabs/grist-core-sub007/internal/pruner"
)

// BlobStoreBackend names which BlobStore implementation a worker process
// should construct.
type BlobStoreBackend string

const (
	BlobStoreMemory BlobStoreBackend = "memory"
	BlobStoreS3     BlobStoreBackend = "s3"
)

// Config holds everything a worker process needs to wire up DocLifecycle
// and its HTTP surface (spec.md §6).
type Config struct {
	WorkerID        string
	Listen          string
	PublicURL       string
	CoordinatorAddr string

	LocalStoreRoot string

	BlobStoreBackend BlobStoreBackend
	S3Bucket         string
	S3Prefix         string
	S3Region         string

	RedisAddr string

	PushDebounceDelay     time.Duration
	PushInitialRetryDelay time.Duration
	PushMaxRetryDelay     time.Duration
	MaxConcurrentUploads  int64

	Retention pruner.Policy

	MaxConsistencyRetries   int
	ConsistencyRetryBackoff time.Duration
	AllowChecksumOverride   bool

	MaxUploadBytes int64

	Log LogConfig
}

// CoordinatorConfig holds the smaller set of options the coordination
// service needs: its own listen address and the shared WorkerMap backend.
type CoordinatorConfig struct {
	Listen    string
	PublicURL string
	RedisAddr string
	Log       LogConfig
}

// getenv returns the environment variable named key, or def if unset or
// empty. Mirrors cmd/node/main.go's helper of the same name.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newViper builds a viper instance bound to the HSM_ env prefix and, when
// configFile is non-empty, an on-disk YAML file. Document-storage tuning
// knobs (push timing, retention, upload caps) live here rather than in
// plain getenv calls so operators can set them uniformly via file, env, or
// a --config flag bound by the cmd/ binaries.
func newViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HSM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("push.debounce", "2s")
	v.SetDefault("push.initial_retry", "1s")
	v.SetDefault("push.max_retry", "5m")
	v.SetDefault("push.max_concurrent_uploads", 4)
	v.SetDefault("retention.keep_latest", 5)
	v.SetDefault("retention.hourly_buckets", 24)
	v.SetDefault("retention.daily_buckets", 30)
	v.SetDefault("retention.monthly_buckets", 12)
	v.SetDefault("consistency.max_retries", 3)
	v.SetDefault("consistency.retry_backoff", "200ms")
	v.SetDefault("consistency.allow_checksum_override", false)
	v.SetDefault("upload.max_bytes", 500*1024*1024)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
	}
	return v
}

// LoadWorkerConfig reads WORKER_ID, COORDINATOR_ADDR and the worker's own
// listen/public addresses the way cmd/node/main.go reads NODE_ID and
// COORDINATOR_ADDR, then layers the viper-backed document-storage options
// from configFile (may be empty, meaning env/defaults only).
func LoadWorkerConfig(configFile string) (*Config, error) {
	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		return nil, fmt.Errorf("config: WORKER_ID is required")
	}
	coordAddr := os.Getenv("COORDINATOR_ADDR")
	if coordAddr == "" {
		return nil, fmt.Errorf("config: COORDINATOR_ADDR is required")
	}

	v := newViper(configFile)
	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		WorkerID:        workerID,
		Listen:          getenv("WORKER_LISTEN", ":8081"),
		PublicURL:       getenv("WORKER_PUBLIC_URL", "http://127.0.0.1:8081"),
		CoordinatorAddr: coordAddr,

		LocalStoreRoot: getenv("LOCAL_STORE_ROOT", "./data"),

		BlobStoreBackend: BlobStoreBackend(getenv("BLOB_STORE_BACKEND", string(BlobStoreMemory))),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Prefix:         getenv("S3_PREFIX", "hsm"),
		S3Region:         getenv("S3_REGION", "us-east-1"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		PushDebounceDelay:     v.GetDuration("push.debounce"),
		PushInitialRetryDelay: v.GetDuration("push.initial_retry"),
		PushMaxRetryDelay:     v.GetDuration("push.max_retry"),
		MaxConcurrentUploads:  v.GetInt64("push.max_concurrent_uploads"),

		Retention: pruner.Policy{
			KeepLatest:     v.GetInt("retention.keep_latest"),
			HourlyBuckets:  v.GetInt("retention.hourly_buckets"),
			DailyBuckets:   v.GetInt("retention.daily_buckets"),
			MonthlyBuckets: v.GetInt("retention.monthly_buckets"),
		},

		MaxConsistencyRetries:   v.GetInt("consistency.max_retries"),
		ConsistencyRetryBackoff: v.GetDuration("consistency.retry_backoff"),
		AllowChecksumOverride:   v.GetBool("consistency.allow_checksum_override"),

		MaxUploadBytes: v.GetInt64("upload.max_bytes"),

		Log: LogConfig{
			Level:  LogLevel(getenv("LOG_LEVEL", "info")),
			JSON:   getenv("LOG_JSON", "true") == "true",
			Pretty: os.Getenv("LOG_PRETTY") != "",
		},
	}

	if cfg.BlobStoreBackend == BlobStoreS3 && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("config: S3_BUCKET is required when BLOB_STORE_BACKEND=s3")
	}

	return cfg, nil
}

// LoadCoordinatorConfig reads the coordination service's own configuration.
// It has no document-storage knobs to layer from a file, so it stays a
// plain getenv reader like cmd/coordinator/main.go's original.
func LoadCoordinatorConfig() (*CoordinatorConfig, error) {
	return &CoordinatorConfig{
		Listen:    getenv("COORDINATOR_LISTEN", ":8080"),
		PublicURL: getenv("COORDINATOR_PUBLIC_URL", "http://127.0.0.1:8080"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		Log: LogConfig{
			Level:  LogLevel(getenv("LOG_LEVEL", "info")),
			JSON:   getenv("LOG_JSON", "true") == "true",
			Pretty: os.Getenv("LOG_PRETTY") != "",
		},
	}, nil
}
