package identity

import (
	"sync"

	"github.com/google/uuid"
)

// Hub fans provider events out to subscribed listeners.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uuid.UUID]Listener
}

func NewHub() *Hub {
	return &Hub{
		listeners: make(map[uuid.UUID]Listener),
	}
}

// Subscribe registers listener and returns a disposer that is safe to call more than once.
func (h *Hub) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	id := uuid.New()

	h.mu.Lock()
	h.listeners[id] = listener
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers the event to every listener. Listeners run on the caller's
// goroutine with the hub unlocked, so they may call back into the provider.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
