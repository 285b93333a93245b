// Package signal provides a minimal broadcast value for store state.
// A Value holds the latest state and fans every replacement out to all
// current subscribers. Unlike an event bus there is no queue: delivery is
// synchronous, so a subscriber has seen the new state before the mutation
// that triggered it returns, and a new subscriber is called immediately
// with the current value.
package signal

import "sync"

// Value is a broadcast container for a single piece of state.
// The zero value is not usable; construct with New.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[int]func(T)
	nextID  int
}

// New creates a Value seeded with the initial state.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the value and notifies all subscribers before returning.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	v.current = next
	subs := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// Subscribe registers fn and invokes it immediately with the current
// value. The returned function cancels the subscription.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	current := v.current
	v.mu.Unlock()

	fn(current)

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
