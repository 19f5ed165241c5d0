package kmutex

import (
	"sync"

	"github.com/google/uuid"
)

// KeyedMutex serializes work per uuid key. Conversation turns and
// session filter applies each take the lock for their own id so
// concurrent requests on different ids never contend.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the lock for key is held. The returned func
// releases it; entries are removed once no goroutine holds or waits.
func (k *KeyedMutex) Lock(key uuid.UUID) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
