package kmutex

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestLockSerializesSameKey(t *testing.T) {
	km := New()
	key := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}

	km.mu.Lock()
	remaining := len(km.locks)
	km.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock table to be drained, got %d entries", remaining)
	}
}

func TestLockIndependentKeys(t *testing.T) {
	km := New()
	a := uuid.New()
	b := uuid.New()

	unlockA := km.Lock(a)
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(b)
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
