package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Computed wraps a Store with cache-or-compute semantics.
//
// GetOrCompute guarantees the compute function runs at most once per absent
// (namespace, key) pair even under concurrent callers: a per-key mutex is
// held across the whole check/compute/store sequence, so racing callers
// serialize and the loser observes the winner's stored value.
type Computed struct {
	Store

	mu    sync.Mutex
	locks map[nsKey]*sync.Mutex
}

type nsKey struct {
	ns  string
	key string
}

// NewComputed wraps backend with cache-or-compute support.
func NewComputed(backend Store) *Computed {
	return &Computed{
		Store: backend,
		locks: make(map[nsKey]*sync.Mutex),
	}
}

// GetOrCompute returns the stored value for key in namespace ns if present.
// Otherwise it invokes compute, stores the result, and returns it.
//
// The per-key lock serializes concurrent callers of the same key; callers
// of different keys do not contend. A compute failure stores nothing, so a
// later call retries.
func (c *Computed) GetOrCompute(ctx context.Context, ns, key string, compute func(ctx context.Context) (string, error)) (string, error) {
	lock := c.lockFor(ns, key)
	lock.Lock()
	defer lock.Unlock()

	v, err := c.Get(ctx, ns, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return "", err
	}

	v, err = compute(ctx)
	if err != nil {
		return "", fmt.Errorf("store: computing %s/%s: %w", ns, key, err)
	}
	if err := c.Set(ctx, ns, key, v); err != nil {
		return "", err
	}
	return v, nil
}

// lockFor returns the mutex guarding one (namespace, key) pair, creating it
// on first use. The lock table only ever grows; the key population is the
// set of cache keys a plan touches, which is small and stable.
func (c *Computed) lockFor(ns, key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := nsKey{ns: ns, key: key}
	lock, ok := c.locks[k]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[k] = lock
	}
	return lock
}
