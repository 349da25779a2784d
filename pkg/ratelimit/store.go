package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxUpdateAttempts bounds optimistic-lock retries in RedisStore.Update.
const maxUpdateAttempts = 16

// Store persists pacer state. Get returns a zero State when nothing is stored.
// Update applies fn to the stored state atomically and returns the result;
// fn may run more than once and must only touch the state it is given.
type Store interface {
	Get(ctx context.Context) (*State, error)
	Update(ctx context.Context, fn func(*State)) (*State, error)
}

// MemoryStore keeps state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	return &s, nil
}

// Update implements Store.
func (m *MemoryStore) Update(ctx context.Context, fn func(*State)) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
	s := m.state
	return &s, nil
}

// RedisStore keeps state under a single Redis key so that runs on the same
// host share one pacing window.
type RedisStore struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewRedisStore creates a store using RedisKeyPacerState. Entries expire
// after ttl; zero keeps them forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis: client,
		key:   RedisKeyPacerState,
		ttl:   ttl,
	}
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context) (*State, error) {
	return decodeState(r.redis.Get(ctx, r.key).Bytes())
}

// Update implements Store with WATCH/MULTI: a write by another process
// between the read and the write aborts the transaction and fn is rerun on
// the fresh state.
func (r *RedisStore) Update(ctx context.Context, fn func(*State)) (*State, error) {
	var out *State

	txf := func(tx *redis.Tx) error {
		s, err := decodeState(tx.Get(ctx, r.key).Bytes())
		if err != nil {
			return err
		}
		fn(s)

		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal pacer state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, raw, r.ttl)
			return nil
		})
		if err == nil {
			out = s
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.redis.Watch(ctx, txf, r.key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("store pacer state in redis: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("store pacer state in redis: %w after %d attempts", redis.TxFailedErr, maxUpdateAttempts)
}

func decodeState(raw []byte, err error) (*State, error) {
	if errors.Is(err, redis.Nil) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pacer state: %w", err)
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse pacer state: %w", err)
	}
	return &s, nil
}
