// Package cloud carries remote-change signals from the replication engine
// to the convergence loop.
package cloud

import (
	"context"
	"sync"
)

// Hub is an in-process change notifier. The replication engine calls
// Publish after it lands data locally.
type Hub struct {
	mu        sync.Mutex
	available bool
	nextID    int
	subs      map[int]chan struct{}
}

func NewHub(available bool) *Hub {
	return &Hub{available: available, subs: make(map[int]chan struct{})}
}

func (h *Hub) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available
}

func (h *Hub) SetAvailable(available bool) {
	h.mu.Lock()
	h.available = available
	h.mu.Unlock()
}

// Subscribe registers an independent subscription. It is released by the
// returned func or when ctx is done, whichever comes first.
func (h *Hub) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ch := make(chan struct{}, 1)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, release)

	return ch, func() {
		stop()
		release()
	}, nil
}

// Publish wakes every current subscriber. A subscriber with a pending
// signal is not signalled twice.
func (h *Hub) Publish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
