package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"sagekit/redis"
)

// ErrNotFound is returned when a task reads a value no upstream task wrote.
var ErrNotFound = errors.New("workflow value not found")

// Store carries values between the tasks of one run.
type Store interface {
	Put(ctx context.Context, runID, key string, value []byte) error
	Get(ctx context.Context, runID, key string) ([]byte, error)
}

// Key names a value of type T exchanged between tasks.
type Key[T any] struct {
	Name string
}

func NewKey[T any](name string) Key[T] {
	return Key[T]{Name: name}
}

// Put JSON-encodes v under key for the current run.
func Put[T any](ctx context.Context, rc RunContext, key Key[T], v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key.Name, err)
	}
	return rc.Store.Put(ctx, rc.RunID, key.Name, raw)
}

func Get[T any](ctx context.Context, rc RunContext, key Key[T]) (T, error) {
	var v T
	raw, err := rc.Store.Get(ctx, rc.RunID, key.Name)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s: %w", key.Name, err)
	}
	return v, nil
}

type MemoryStore struct {
	lock   sync.RWMutex
	values map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}}
}

func (m *MemoryStore) Put(_ context.Context, runID, key string, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[runID+"/"+key] = append([]byte{}, value...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, runID, key string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.values[runID+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", runID, key, ErrNotFound)
	}
	return v, nil
}

// RedisStore keeps run values in redis under workflow:<run>:<key> so that a
// run can be resumed from another process. Values expire after TTL.
type RedisStore struct {
	client redis.Client
	ttl    time.Duration
}

var _ Store = RedisStore{}

func NewRedisStore(client redis.Client, ttl time.Duration) RedisStore {
	return RedisStore{client: client, ttl: ttl}
}

func redisKey(runID, key string) string {
	return fmt.Sprintf("workflow:%s:%s", runID, key)
}

func (r RedisStore) Put(ctx context.Context, runID, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(runID, key), value, r.ttl); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (r RedisStore) Get(ctx context.Context, runID, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, redisKey(runID, key))
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", runID, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(v), nil
}

// Keys lists the keys written by a run.
func (r RedisStore) Keys(ctx context.Context, runID string) ([]string, error) {
	prefix := redisKey(runID, "")
	keys, err := r.client.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = k[len(prefix):]
	}
	return keys, nil
}
