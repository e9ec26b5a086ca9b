// Package events provides typed publish/subscribe registries owned by the
// component that creates them.
package events

import "sync"

// Handler receives published events.
type Handler[T any] func(T)

type subscription[T any] struct {
	id      uint64
	handler Handler[T]
}

// Registry keeps an ordered set of handlers for one event type.
type Registry[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []subscription[T]
}

// NewRegistry constructs an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Subscribe registers handler and returns a function that removes it.
// The returned function is safe to call more than once.
func (r *Registry[T]) Subscribe(handler Handler[T]) func() {
	if r == nil || handler == nil {
		return func() {}
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers = append(r.handlers, subscription[T]{id: id, handler: handler})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

// Publish delivers evt to every handler in registration order on the
// caller's goroutine. Handlers added or removed during delivery take effect
// on the next Publish.
func (r *Registry[T]) Publish(evt T) {
	if r == nil {
		return
	}
	r.mu.RLock()
	snapshot := make([]subscription[T], len(r.handlers))
	copy(snapshot, r.handlers)
	r.mu.RUnlock()

	for _, sub := range snapshot {
		sub.handler(evt)
	}
}

// Len reports the number of registered handlers.
func (r *Registry[T]) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.handlers {
		if sub.id == id {
			r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
			return
		}
	}
}
