package workermap

import (
	"context"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

const (
	workersSetKey = "workers"
)

func workerKey(id string) string       { return "worker-" + id }
func workerDocsKey(id string) string   { return "worker-" + id + "-docs" }
func docWorkerKey(docID string) string { return "doc-" + docID + "-worker" }

// RedisMap implements Map over a shared Redis instance, using `SET ... NX`
// for the atomic, idempotent assignment AssignDocWorker requires across a
// real multi-process fleet.
type RedisMap struct {
	pool *redis.Pool
}

// NewRedisMap returns a Map backed by pool. The pool may be shared with
// internal/checksum's RedisRegistry.
func NewRedisMap(pool *redis.Pool) *RedisMap {
	return &RedisMap{pool: pool}
}

func (m *RedisMap) AddWorker(ctx context.Context, id string, endpoints Endpoints) error {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("workermap: acquire redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("HSET", workerKey(id),
		"public_url", endpoints.PublicURL,
		"internal_url", endpoints.InternalURL,
		"available", "1",
	); err != nil {
		return fmt.Errorf("workermap: register worker %s: %w", id, err)
	}
	if _, err := conn.Do("SADD", workersSetKey, id); err != nil {
		return fmt.Errorf("workermap: index worker %s: %w", id, err)
	}
	return nil
}

func (m *RedisMap) RemoveWorker(ctx context.Context, id string) error {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("workermap: acquire redis conn: %w", err)
	}
	defer conn.Close()

	docIDs, err := redis.Strings(conn.Do("SMEMBERS", workerDocsKey(id)))
	if err != nil {
		return fmt.Errorf("workermap: list docs for worker %s: %w", id, err)
	}
	for _, docID := range docIDs {
		if _, err := conn.Do("DEL", docWorkerKey(docID)); err != nil {
			return fmt.Errorf("workermap: release doc %s from worker %s: %w", docID, id, err)
		}
	}
	if _, err := conn.Do("DEL", workerDocsKey(id), workerKey(id)); err != nil {
		return fmt.Errorf("workermap: deregister worker %s: %w", id, err)
	}
	if _, err := conn.Do("SREM", workersSetKey, id); err != nil {
		return fmt.Errorf("workermap: unindex worker %s: %w", id, err)
	}
	return nil
}

func (m *RedisMap) SetWorkerAvailability(ctx context.Context, id string, available bool) error {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("workermap: acquire redis conn: %w", err)
	}
	defer conn.Close()

	val := "0"
	if available {
		val = "1"
	}
	if _, err := conn.Do("HSET", workerKey(id), "available", val); err != nil {
		return fmt.Errorf("workermap: set availability for %s: %w", id, err)
	}
	return nil
}

func (m *RedisMap) AssignDocWorker(ctx context.Context, docID string) (string, error) {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return "", fmt.Errorf("workermap: acquire redis conn: %w", err)
	}
	defer conn.Close()

	if existing, err := redis.String(conn.Do("GET", docWorkerKey(docID))); err == nil {
		return existing, nil
	} else if err != redis.ErrNil {
		return "", fmt.Errorf("workermap: read assignment for %s: %w", docID, err)
	}

	candidate, err := m.pickAvailable(conn)
	if err != nil {
		return "", err
	}

	reply, err := redis.String(conn.Do("SET", docWorkerKey(docID), candidate, "NX"))
	if err == redis.ErrNil {
		// Lost the race: someone else's SET ... NX won first.
		winner, err := redis.String(conn.Do("GET", docWorkerKey(docID)))
		if err != nil {
			return "", fmt.Errorf("workermap: read winning assignment for %s: %w", docID, err)
		}
		return winner, nil
	}
	if err != nil {
		return "", fmt.Errorf("workermap: assign %s: %w", docID, err)
	}
	_ = reply

	if _, err := conn.Do("SADD", workerDocsKey(candidate), docID); err != nil {
		return "", fmt.Errorf("workermap: index assignment %s->%s: %w", docID, candidate, err)
	}
	return candidate, nil
}

func (m *RedisMap) GetDocWorker(ctx context.Context, docID string) (string, bool, error) {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return "", false, fmt.Errorf("workermap: acquire redis conn: %w", err)
	}
	defer conn.Close()

	wid, err := redis.String(conn.Do("GET", docWorkerKey(docID)))
	if err == redis.ErrNil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("workermap: read assignment for %s: %w", docID, err)
	}
	return wid, true, nil
}

func (m *RedisMap) ReassignDocWorker(ctx context.Context, docID string) (string, error) {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return "", fmt.Errorf("workermap: acquire redis conn: %w", err)
	}
	if _, err := conn.Do("DEL", docWorkerKey(docID)); err != nil {
		conn.Close()
		return "", fmt.Errorf("workermap: clear assignment for %s: %w", docID, err)
	}
	conn.Close()
	return m.AssignDocWorker(ctx, docID)
}

// pickAvailable scans the registered-worker set for one marked available.
// Redis has no native "pick one member matching a hash field" primitive,
// so this issues one HGET per candidate; fleets are expected to be small
// enough (tens of workers) for this to be cheap relative to the network
// round trip AssignDocWorker already pays.
func (m *RedisMap) pickAvailable(conn redis.Conn) (string, error) {
	ids, err := redis.Strings(conn.Do("SMEMBERS", workersSetKey))
	if err != nil {
		return "", fmt.Errorf("workermap: list workers: %w", err)
	}
	for _, id := range ids {
		available, err := redis.String(conn.Do("HGET", workerKey(id), "available"))
		if err != nil {
			continue
		}
		if available == "1" {
			return id, nil
		}
	}
	return "", ErrNoAvailableWorkers
}
