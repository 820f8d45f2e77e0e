// Package locking provides the per-desk serialization point taken around booking
// writes. KeyedMutex serves a single process; RedisLocker serves several service
// processes sharing one database.
package locking

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when a lock could not be taken before the context
// ended or the wait budget ran out.
var ErrNotAcquired = errors.New("locking: lock not acquired")

// Release gives a held lock back. It is safe to call more than once.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds or
// waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Acquire blocks until key is free or ctx is done.
func (k *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, entry)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			k.drop(key, entry)
		})
	}, nil
}

func (k *KeyedMutex) drop(key string, entry *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (k *KeyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
