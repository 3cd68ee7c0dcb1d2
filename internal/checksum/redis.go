package checksum

import (
	"context"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

// RedisRegistry implements Registry against a shared Redis instance, the
// durable coordination service spec.md §4.3 calls for. Every key is
// prefixed with KeyFor's "doc-<docId>-checksum" convention, so the
// registry can live in the same Redis database as WorkerMap without
// collision.
type RedisRegistry struct {
	pool *redis.Pool
}

// NewRedisRegistry returns a registry backed by pool. The pool is owned by
// the caller and may be shared with other components (e.g. workermap).
func NewRedisRegistry(pool *redis.Pool) *RedisRegistry {
	return &RedisRegistry{pool: pool}
}

func (r *RedisRegistry) Get(ctx context.Context, docID string) (string, bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return "", false, fmt.Errorf("checksum: acquire redis conn: %w", err)
	}
	defer conn.Close()

	reply, err := conn.Do("GET", KeyFor(docID))
	if err != nil {
		return "", false, fmt.Errorf("checksum: GET %s: %w", docID, err)
	}
	if reply == nil {
		return "", false, nil
	}
	value, err := redis.String(reply, nil)
	if err != nil {
		return "", false, fmt.Errorf("checksum: decode value for %s: %w", docID, err)
	}
	return value, true, nil
}

func (r *RedisRegistry) Set(ctx context.Context, docID, value string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("checksum: acquire redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", KeyFor(docID), value); err != nil {
		return fmt.Errorf("checksum: SET %s: %w", docID, err)
	}
	return nil
}

func (r *RedisRegistry) Delete(ctx context.Context, docID string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("checksum: acquire redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", KeyFor(docID)); err != nil {
		return fmt.Errorf("checksum: DEL %s: %w", docID, err)
	}
	return nil
}
