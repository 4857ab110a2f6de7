package lock

import (
	"context"
	"sync"
)

type memoryLocker[K comparable] struct {
	mu      sync.Mutex
	holders map[K]*held
}

type held struct {
	released chan struct{}
	release  func()
}

func (h *held) Unlock() {
	h.release()
}

func NewMemoryLocker[K comparable]() Locker[K] {
	return &memoryLocker[K]{holders: make(map[K]*held)}
}

func (m *memoryLocker[K]) Acquire(ctx context.Context, key K) (Lock, error) {
	for {
		m.mu.Lock()
		current, taken := m.holders[key]
		if !taken {
			h := &held{released: make(chan struct{})}
			h.release = func() {
				m.mu.Lock()
				delete(m.holders, key)
				m.mu.Unlock()
				close(h.released)
			}
			m.holders[key] = h
			m.mu.Unlock()
			return h, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-current.released:
		}
	}
}
