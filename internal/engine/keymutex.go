package engine

import "sync"

// keyedMutex serializes work per envelope id without a global lock.
// Entries are refcounted and dropped once the last holder releases them, so
// the table does not grow with the number of envelopes ever touched.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*keyLock)}
}

func (k *keyedMutex) Lock(id int64) {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

func (k *keyedMutex) Unlock(id int64) {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		k.mu.Unlock()
		panic("keymutex: unlock of unheld key")
	}
	l.refs--
	if l.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}
