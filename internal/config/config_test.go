package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearWorkerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WORKER_ID", "COORDINATOR_ADDR", "WORKER_LISTEN", "WORKER_PUBLIC_URL",
		"LOCAL_STORE_ROOT", "BLOB_STORE_BACKEND", "S3_BUCKET", "S3_PREFIX",
		"S3_REGION", "REDIS_ADDR", "LOG_LEVEL", "LOG_JSON", "LOG_PRETTY",
		"HSM_PUSH_DEBOUNCE", "HSM_RETENTION_KEEP_LATEST",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadWorkerConfigRequiresWorkerIDAndCoordinatorAddr(t *testing.T) {
	clearWorkerEnv(t)

	if _, err := LoadWorkerConfig(""); err == nil {
		t.Fatal("expected error with no WORKER_ID or COORDINATOR_ADDR set")
	}

	t.Setenv("WORKER_ID", "worker-1")
	if _, err := LoadWorkerConfig(""); err == nil {
		t.Fatal("expected error with COORDINATOR_ADDR still unset")
	}
}

func TestLoadWorkerConfigDefaults(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("WORKER_ID", "worker-1")
	t.Setenv("COORDINATOR_ADDR", "http://coordinator:8080")

	cfg, err := LoadWorkerConfig("")
	if err != nil {
		t.Fatalf("LoadWorkerConfig: %v", err)
	}
	if cfg.Listen != ":8081" {
		t.Errorf("Listen = %q, want :8081", cfg.Listen)
	}
	if cfg.BlobStoreBackend != BlobStoreMemory {
		t.Errorf("BlobStoreBackend = %q, want memory", cfg.BlobStoreBackend)
	}
	if cfg.Retention.KeepLatest != 5 {
		t.Errorf("Retention.KeepLatest = %d, want 5", cfg.Retention.KeepLatest)
	}
	if cfg.PushDebounceDelay != 2*time.Second {
		t.Errorf("PushDebounceDelay = %v, want 2s", cfg.PushDebounceDelay)
	}
	if cfg.MaxConsistencyRetries != 3 {
		t.Errorf("MaxConsistencyRetries = %d, want 3", cfg.MaxConsistencyRetries)
	}
}

func TestLoadWorkerConfigRequiresBucketForS3Backend(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("WORKER_ID", "worker-1")
	t.Setenv("COORDINATOR_ADDR", "http://coordinator:8080")
	t.Setenv("BLOB_STORE_BACKEND", "s3")

	if _, err := LoadWorkerConfig(""); err == nil {
		t.Fatal("expected error when BLOB_STORE_BACKEND=s3 without S3_BUCKET")
	}

	t.Setenv("S3_BUCKET", "my-bucket")
	cfg, err := LoadWorkerConfig("")
	if err != nil {
		t.Fatalf("LoadWorkerConfig: %v", err)
	}
	if cfg.S3Bucket != "my-bucket" {
		t.Errorf("S3Bucket = %q, want my-bucket", cfg.S3Bucket)
	}
}

func TestLoadWorkerConfigFromYAMLFile(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("WORKER_ID", "worker-1")
	t.Setenv("COORDINATOR_ADDR", "http://coordinator:8080")

	dir := t.TempDir()
	path := filepath.Join(dir, "hsm.yaml")
	contents := "retention:\n  keep_latest: 9\npush:\n  debounce: 500ms\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadWorkerConfig(path)
	if err != nil {
		t.Fatalf("LoadWorkerConfig: %v", err)
	}
	if cfg.Retention.KeepLatest != 9 {
		t.Errorf("Retention.KeepLatest = %d, want 9", cfg.Retention.KeepLatest)
	}
	if cfg.PushDebounceDelay != 500*time.Millisecond {
		t.Errorf("PushDebounceDelay = %v, want 500ms", cfg.PushDebounceDelay)
	}
}

func TestLoadCoordinatorConfigDefaults(t *testing.T) {
	clearWorkerEnv(t)

	cfg, err := LoadCoordinatorConfig()
	if err != nil {
		t.Fatalf("LoadCoordinatorConfig: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Listen)
	}
}
