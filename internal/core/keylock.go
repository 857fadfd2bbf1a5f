package core

// keylock.go serialises rows that dedupe against the same natural key.
//
// Each key owns a one-slot semaphore. A row acquires every key it will look
// up before opening its transaction and holds them until the transaction
// ends, so two workers never both miss the lookup and insert duplicates.
// Keys are always acquired in sorted order, which rules out lock cycles.

import (
	"context"
	"sort"
	"sync"
)

// KeyLocker hands out exclusive locks by string key.
type KeyLocker struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	sem  chan struct{}
	refs int
}

// NewKeyLocker creates an empty locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{slots: make(map[string]*keySlot)}
}

// Lock blocks until key is free or ctx is done.
// The caller MUST call Unlock(key) after a nil return.
func (l *KeyLocker) Lock(ctx context.Context, key string) error {
	l.mu.Lock()
	s := l.slots[key]
	if s == nil {
		s = &keySlot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key)
		return ctx.Err()
	}
}

// Unlock releases a key held by Lock.
func (l *KeyLocker) Unlock(key string) {
	l.mu.Lock()
	s := l.slots[key]
	l.mu.Unlock()
	if s == nil {
		return
	}
	<-s.sem
	l.drop(key)
}

func (l *KeyLocker) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s := l.slots[key]; s != nil {
		s.refs--
		if s.refs == 0 {
			delete(l.slots, key)
		}
	}
}

// LockAll acquires every distinct key in sorted order and returns a func
// that releases them. On error nothing is held.
func (l *KeyLocker) LockAll(ctx context.Context, keys []string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]string, 0, len(sorted))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.Unlock(held[i])
		}
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		if err := l.Lock(ctx, key); err != nil {
			unlock()
			return nil, err
		}
		held = append(held, key)
	}
	return unlock, nil
}

// Held returns the number of keys currently locked or awaited.
func (l *KeyLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
