package engine

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock(7)
			counter++
			km.Unlock(7)
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("expected 100, got %d", counter)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	km.Lock(1)
	done := make(chan struct{})
	go func() {
		km.Lock(2)
		km.Unlock(2)
		close(done)
	}()
	<-done // a different key must not block behind key 1
	km.Unlock(1)
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				km.Lock(id)
				km.Unlock(id)
			}
		}(int64(i))
	}
	wg.Wait()

	km.mu.Lock()
	n := len(km.locks)
	km.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected empty lock table, %d entries remain", n)
	}
}

func TestKeyedMutexUnlockUnheldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	newKeyedMutex().Unlock(99)
}
