package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Locker serialises transitions on one escrow. Lock blocks until the id is free or ctx is
// done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, id uuid.UUID) (func(), error)
}

// KeyedLocker is an in-process Locker. Entries are reference counted and dropped once no
// caller holds or waits on them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[uuid.UUID]*keyedLock)}
}

func (k *KeyedLocker) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(id, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.release(id, l)
		})
	}, nil
}

func (k *KeyedLocker) release(id uuid.UUID, l *keyedLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()
}

// held returns the number of ids with holders or waiters.
func (k *KeyedLocker) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
