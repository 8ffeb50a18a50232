// Package handoff passes a prepared batch from the prepare unit to the sync
// unit of the same run.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ned0ra/diplom/internal/model"
)

// ErrNotFound is returned by Get for an unknown or expired run.
var ErrNotFound = errors.New("handoff: no batch for run")

// KeyPrefix namespaces handoff keys in Redis.
const KeyPrefix = "vacancy-sync:handoff:"

// DefaultTTL bounds how long a batch waits for its sync unit.
const DefaultTTL = time.Hour

// Store keeps batches keyed by run id.
type Store interface {
	Put(ctx context.Context, runID string, b model.Batch) error
	Get(ctx context.Context, runID string) (model.Batch, error)
	Delete(ctx context.Context, runID string) error
}

// Redis stores batches as JSON values with a TTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis returns a Redis store. A non-positive ttl means DefaultTTL.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key for runID.
func Key(runID string) string { return KeyPrefix + runID }

// Put implements Store.
func (r *Redis) Put(ctx context.Context, runID string, b model.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("handoff: marshal batch: %w", err)
	}
	if err := r.rdb.Set(ctx, Key(runID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("handoff: redis SET: %w", err)
	}
	return nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, runID string) (model.Batch, error) {
	data, err := r.rdb.Get(ctx, Key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Batch{}, ErrNotFound
	}
	if err != nil {
		return model.Batch{}, fmt.Errorf("handoff: redis GET: %w", err)
	}
	var b model.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return model.Batch{}, fmt.Errorf("handoff: decode batch: %w", err)
	}
	return b, nil
}

// Delete implements Store. Deleting an unknown run is not an error.
func (r *Redis) Delete(ctx context.Context, runID string) error {
	if err := r.rdb.Del(ctx, Key(runID)).Err(); err != nil {
		return fmt.Errorf("handoff: redis DEL: %w", err)
	}
	return nil
}

// Memory keeps batches in process. Used when Redis is not configured.
type Memory struct {
	mu      sync.Mutex
	batches map[string]model.Batch
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{batches: make(map[string]model.Batch)}
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, runID string, b model.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[runID] = b
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, runID string) (model.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[runID]
	if !ok {
		return model.Batch{}, ErrNotFound
	}
	return b, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, runID)
	return nil
}
