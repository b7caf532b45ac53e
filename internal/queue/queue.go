package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// Push appends items to the back of the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Pop removes and returns the front item. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]T, 0)
}

// Drain returns all items in order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}

// Pending is a FIFO of keys in which a key waits at most once. Pushing a key
// that is already waiting is a no-op.
type Pending[K comparable] struct {
	mu      sync.Mutex
	order   []K
	waiting map[K]struct{}
}

// NewPending creates an empty Pending queue.
func NewPending[K comparable]() *Pending[K] {
	return &Pending[K]{waiting: make(map[K]struct{})}
}

// Push enqueues key and reports whether it was not already waiting.
func (p *Pending[K]) Push(key K) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.waiting[key]; ok {
		return false
	}
	p.waiting[key] = struct{}{}
	p.order = append(p.order, key)
	return true
}

// Drain returns the waiting keys in arrival order and empties the queue.
func (p *Pending[K]) Drain() []K {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.order
	p.order = nil
	clear(p.waiting)
	return out
}

// Len returns the number of waiting keys.
func (p *Pending[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Clear drops every waiting key.
func (p *Pending[K]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = nil
	clear(p.waiting)
}
